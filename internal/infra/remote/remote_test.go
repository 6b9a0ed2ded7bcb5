package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// flakyProvider fails until the failure budget is exhausted.
type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Lookup(ctx context.Context, content domain.Content) (*domain.ContentMeta, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("boom")
	}
	return &domain.ContentMeta{Genres: []string{"drama"}}, nil
}

func testConfig() Config {
	return Config{
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Minute,
		RatePerSecond:      0, // no limiting in tests
	}
}

func TestProvider_PassThrough(t *testing.T) {
	provider := NewProvider(&flakyProvider{}, testConfig())
	meta, err := provider.Lookup(context.Background(), domain.Content{ID: "c1"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if meta == nil || len(meta.Genres) != 1 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestProvider_BreakerOpensAfterFailures(t *testing.T) {
	inner := &flakyProvider{failures: 100}
	provider := NewProvider(inner, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := provider.Lookup(ctx, domain.Content{ID: "c1"}); err == nil {
			t.Fatal("expected inner failure")
		}
	}

	// The circuit is open now: calls shed without touching the inner
	// provider, surfaced as a dependency error.
	callsBefore := inner.calls
	_, err := provider.Lookup(ctx, domain.Content{ID: "c1"})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if inner.calls != callsBefore {
		t.Errorf("inner called while circuit open")
	}
}

// downCatalog always fails.
type downCatalog struct{ calls int }

func (c *downCatalog) Libraries(ctx context.Context) ([]string, error) {
	c.calls++
	return nil, errors.New("connection refused")
}

func (c *downCatalog) Items(ctx context.Context, libraryID string) ([]domain.Content, error) {
	c.calls++
	return nil, errors.New("connection refused")
}

func TestCatalog_BreakerShedsLoad(t *testing.T) {
	inner := &downCatalog{}
	catalog := NewCatalog(inner, testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		catalog.Libraries(ctx)
	}
	callsBefore := inner.calls
	if _, err := catalog.Items(ctx, "lib1"); !errors.Is(err, domain.ErrCatalogUnavailable) {
		t.Fatalf("err = %v, want ErrCatalogUnavailable", err)
	}
	if inner.calls != callsBefore {
		t.Error("inner called while circuit open")
	}
}
