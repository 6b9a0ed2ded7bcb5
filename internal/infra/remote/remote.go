// Package remote wraps the external adapters (content catalog, metadata
// provider) with the resilience layer they need at the HTTP boundary: a
// circuit breaker that sheds load when the collaborator is failing, and a
// rate limiter that keeps outbound lookups inside the provider's quota.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls the resilience wrappers.
type Config struct {
	// BreakerMaxFailures trips the circuit after this many consecutive
	// failures.
	BreakerMaxFailures uint32

	// BreakerTimeout is how long the circuit stays open before probing.
	BreakerTimeout time.Duration

	// RatePerSecond caps outbound provider lookups; zero disables
	// limiting.
	RatePerSecond float64

	// Burst is the limiter burst size.
	Burst int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
		RatePerSecond:      10,
		Burst:              20,
	}
}

func newBreaker(name string, cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
	})
}

// ─── Metadata Provider Wrapper ──────────────────────────────────────────────

// Provider wraps a MetadataProvider with breaker and limiter.
type Provider struct {
	inner   domain.MetadataProvider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewProvider wraps a metadata provider.
func NewProvider(inner domain.MetadataProvider, cfg Config) *Provider {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Provider{
		inner:   inner,
		breaker: newBreaker("metadata-provider", cfg),
		limiter: limiter,
	}
}

// Lookup fetches metadata through the breaker, waiting on the limiter
// first.
func (p *Provider) Lookup(ctx context.Context, content domain.Content) (*domain.ContentMeta, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Lookup(ctx, content)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	meta, _ := result.(*domain.ContentMeta)
	return meta, nil
}

// ─── Content Catalog Wrapper ────────────────────────────────────────────────

// Catalog wraps a ContentCatalog with a circuit breaker.
type Catalog struct {
	inner   domain.ContentCatalog
	breaker *gobreaker.CircuitBreaker
}

// NewCatalog wraps a content catalog.
func NewCatalog(inner domain.ContentCatalog, cfg Config) *Catalog {
	return &Catalog{
		inner:   inner,
		breaker: newBreaker("content-catalog", cfg),
	}
}

// Libraries lists libraries through the breaker.
func (c *Catalog) Libraries(ctx context.Context) ([]string, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.inner.Libraries(ctx)
	})
	if err != nil {
		return nil, catalogErr(err)
	}
	libraries, _ := result.([]string)
	return libraries, nil
}

// Items lists a library's assets through the breaker.
func (c *Catalog) Items(ctx context.Context, libraryID string) ([]domain.Content, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.inner.Items(ctx, libraryID)
	})
	if err != nil {
		return nil, catalogErr(err)
	}
	items, _ := result.([]domain.Content)
	return items, nil
}

func catalogErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return err
}
