// Package runner drives long-running generation and scoring runs as
// background jobs: fetch the pool, enrich metadata, generate, push to the
// channel sink, persist history — reporting structured progress through
// the job coordinator at every step.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/airgrid-tv/airgrid/internal/app/jobs"
	"github.com/airgrid-tv/airgrid/internal/app/programming"
	"github.com/airgrid-tv/airgrid/internal/domain"
	"github.com/airgrid-tv/airgrid/internal/infra/observability"
	"github.com/airgrid-tv/airgrid/internal/infra/remote"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls runner behavior.
type Config struct {
	// SuggestTimeout bounds each suggestion (LLM) call.
	SuggestTimeout time.Duration

	// Remote configures the breaker and rate limiter wrapped around the
	// catalog and metadata-provider adapters.
	Remote remote.Config

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SuggestTimeout: 2 * time.Minute,
		Remote:         remote.DefaultConfig(),
		Now:            time.Now,
	}
}

// ProfileResolver looks a profile up by ID.
type ProfileResolver func(id string) (*domain.Profile, error)

// ─── Service ────────────────────────────────────────────────────────────────

// Service owns the worker goroutines behind programming jobs. External
// collaborators are optional: a nil sink skips the push, a nil history
// store skips persistence, a nil suggester disables AI improvement.
type Service struct {
	cfg         Config
	coordinator *jobs.Coordinator
	generator   *programming.Generator

	catalog  domain.ContentCatalog
	provider domain.MetadataProvider
	cache    domain.MetadataCache
	sink     domain.ChannelSink
	suggest  domain.Suggester
	history  domain.HistoryStore

	profiles ProfileResolver
	log      zerolog.Logger
}

// New creates a runner service.
func New(cfg Config, coordinator *jobs.Coordinator, generator *programming.Generator, profiles ProfileResolver, log zerolog.Logger) *Service {
	if cfg.SuggestTimeout <= 0 {
		cfg.SuggestTimeout = 2 * time.Minute
	}
	if cfg.Remote == (remote.Config{}) {
		cfg.Remote = remote.DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		cfg:         cfg,
		coordinator: coordinator,
		generator:   generator,
		profiles:    profiles,
		log:         log,
	}
}

// SetCatalog wires the content catalog adapter. Every catalog call goes
// through the circuit breaker.
func (s *Service) SetCatalog(c domain.ContentCatalog) {
	if c == nil {
		s.catalog = nil
		return
	}
	s.catalog = remote.NewCatalog(c, s.cfg.Remote)
}

// SetProvider wires the metadata provider adapter. Lookups pass the
// circuit breaker and the outbound rate limiter.
func (s *Service) SetProvider(p domain.MetadataProvider) {
	if p == nil {
		s.provider = nil
		return
	}
	s.provider = remote.NewProvider(p, s.cfg.Remote)
}

// SetCache wires the metadata cache.
func (s *Service) SetCache(c domain.MetadataCache) { s.cache = c }

// SetSink wires the channel sink adapter.
func (s *Service) SetSink(sink domain.ChannelSink) { s.sink = sink }

// SetSuggester wires the suggestion adapter.
func (s *Service) SetSuggester(sg domain.Suggester) { s.suggest = sg }

// SetHistory wires the history store.
func (s *Service) SetHistory(h domain.HistoryStore) { s.history = h }

// ─── Programming Runs ───────────────────────────────────────────────────────

// runSteps are the structured progress steps of a programming run.
func runSteps() []domain.ProgressStep {
	return []domain.ProgressStep{
		{ID: "fetch", Label: "Fetch content", Status: domain.StepPending},
		{ID: "enrich", Label: "Enrich metadata", Status: domain.StepPending},
		{ID: "generate", Label: "Generate schedule", Status: domain.StepPending},
		{ID: "publish", Label: "Publish to channel", Status: domain.StepPending},
		{ID: "persist", Label: "Save result", Status: domain.StepPending},
	}
}

// StartProgramming validates the request, creates the job and launches
// the worker goroutine. The returned job ID can be watched on the event
// stream.
func (s *Service) StartProgramming(req domain.ProgrammingRequest) (string, error) {
	req.Normalize()
	if req.ProfileID == "" {
		return "", fmt.Errorf("%w: profile id required", domain.ErrInvalidRequest)
	}
	prof, err := s.profiles(req.ProfileID)
	if err != nil {
		return "", err
	}
	if s.catalog == nil {
		return "", domain.ErrCatalogUnavailable
	}

	kind := domain.JobProgramming
	if req.PreviewOnly {
		kind = domain.JobPreview
	}
	total := req.Iterations
	jobID := s.coordinator.CreateJob(kind, fmt.Sprintf("Programming %s", req.ChannelID), jobs.CreateOptions{
		ChannelID:       req.ChannelID,
		ProfileID:       req.ProfileID,
		TotalIterations: &total,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.coordinator.RegisterCancel(jobID, cancel)

	go s.runProgramming(ctx, jobID, req, prof)
	return jobID, nil
}

// runProgramming is the worker: it never publishes partially — either the
// job completes with a full result or it fails with a diagnostic.
func (s *Service) runProgramming(ctx context.Context, jobID string, req domain.ProgrammingRequest, prof *domain.Profile) {
	if s.coordinator.IsCancelled(jobID) {
		return
	}
	if err := s.coordinator.StartJob(jobID); err != nil {
		return
	}
	s.coordinator.SetSteps(jobID, runSteps())
	started := s.cfg.Now()

	fail := func(err error) {
		if errors.Is(err, domain.ErrRunCancelled) || ctx.Err() != nil {
			// Cancellation already transitioned the job; discard partial
			// state silently.
			observability.GenerationRuns.WithLabelValues("cancelled").Inc()
			return
		}
		observability.GenerationRuns.WithLabelValues("failed").Inc()
		s.coordinator.Fail(jobID, err.Error())
	}

	// Fetch.
	s.coordinator.UpdateStepStatus(jobID, "fetch", domain.StepRunning, "")
	pool, err := s.fetchPool(ctx, prof)
	if err != nil {
		s.coordinator.UpdateStepStatus(jobID, "fetch", domain.StepFailed, err.Error())
		fail(err)
		return
	}
	s.coordinator.UpdateStepStatus(jobID, "fetch", domain.StepCompleted, fmt.Sprintf("%d items", len(pool)))

	// Enrich.
	s.coordinator.UpdateStepStatus(jobID, "enrich", domain.StepRunning, "")
	pool, err = s.enrich(ctx, pool, req.CacheMode)
	if err != nil {
		s.coordinator.UpdateStepStatus(jobID, "enrich", domain.StepFailed, err.Error())
		fail(err)
		return
	}
	s.coordinator.UpdateStepStatus(jobID, "enrich", domain.StepCompleted, "")

	// Generate.
	s.coordinator.UpdateStepStatus(jobID, "generate", domain.StepRunning, "")
	cfg := programming.Config{
		DurationHours:    req.DurationDays * 24,
		Iterations:       req.Iterations,
		Randomness:       req.Randomness,
		ReplaceForbidden: req.ReplaceForbidden,
		ImproveBest:      req.ImproveBest,
	}
	if req.StartDatetime != nil {
		cfg.Start = *req.StartDatetime
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}

	result, err := s.generator.Generate(ctx, pool, prof, cfg, func(iteration, totalIterations int, bestScore float64) {
		pct := float64(iteration) / float64(totalIterations) * 100
		best := bestScore
		iter := iteration
		s.coordinator.UpdateProgress(jobID, pct,
			fmt.Sprintf("iteration %d/%d", iteration, totalIterations),
			jobs.Progress{BestScore: &best, CurrentIteration: &iter})
	})
	if err != nil {
		s.coordinator.UpdateStepStatus(jobID, "generate", domain.StepFailed, err.Error())
		fail(err)
		return
	}
	s.coordinator.UpdateStepStatus(jobID, "generate", domain.StepCompleted,
		fmt.Sprintf("%d programs, score %.1f", len(result.Programs), result.AverageScore))
	if result.ReplacedCount > 0 {
		observability.GenerationReplacements.WithLabelValues("forbidden").Add(float64(result.ReplacedCount))
	}
	if result.ImprovedCount > 0 {
		observability.GenerationReplacements.WithLabelValues("improved").Add(float64(result.ImprovedCount))
	}

	aiResponse := s.maybeSuggest(ctx, req, result)

	// Publish.
	if req.PreviewOnly || s.sink == nil {
		detail := "skipped (preview)"
		if !req.PreviewOnly {
			detail = "skipped (no channel sink)"
		}
		s.coordinator.UpdateStepStatus(jobID, "publish", domain.StepCompleted, detail)
	} else {
		s.coordinator.UpdateStepStatus(jobID, "publish", domain.StepRunning, "")
		if err := s.sink.Push(ctx, req.ChannelID, result.Programs); err != nil {
			s.coordinator.UpdateStepStatus(jobID, "publish", domain.StepFailed, err.Error())
			fail(fmt.Errorf("%w: %v", domain.ErrSinkUnavailable, err))
			return
		}
		s.coordinator.UpdateStepStatus(jobID, "publish", domain.StepCompleted, "")
	}

	// Persist.
	if req.PreviewOnly || s.history == nil {
		detail := "skipped (preview)"
		if !req.PreviewOnly {
			detail = "skipped (no history store)"
		}
		s.coordinator.UpdateStepStatus(jobID, "persist", domain.StepCompleted, detail)
	} else {
		s.coordinator.UpdateStepStatus(jobID, "persist", domain.StepRunning, "")
		stored := &domain.StoredResult{
			ID:               uuid.NewString(),
			ChannelID:        req.ChannelID,
			ProfileID:        req.ProfileID,
			Programs:         result.Programs,
			TotalScore:       result.TotalScore,
			AverageScore:     result.AverageScore,
			TotalDurationMin: result.TotalDurationMinutes(),
			Iteration:        result.Iteration,
			CreatedAt:        s.cfg.Now(),
			AllIterations:    result.AllIterations,
			TotalIterations:  req.Iterations,
			TimeBlocks:       prof.TimeBlocks,
			AIResponse:       aiResponse,
		}
		if err := s.history.SaveResult(ctx, stored); err != nil {
			s.coordinator.UpdateStepStatus(jobID, "persist", domain.StepFailed, err.Error())
			fail(err)
			return
		}
		s.coordinator.UpdateStepStatus(jobID, "persist", domain.StepCompleted, stored.ID)
	}

	observability.GenerationRuns.WithLabelValues("completed").Inc()
	observability.GenerationDuration.Observe(s.cfg.Now().Sub(started).Seconds())
	observability.GenerationBestScore.Observe(result.AverageScore)
	s.coordinator.Complete(jobID, result)
}

// fetchPool collects the profile's libraries from the catalog.
func (s *Service) fetchPool(ctx context.Context, prof *domain.Profile) ([]domain.ContentItem, error) {
	libraries := prof.Libraries
	if len(libraries) == 0 {
		all, err := s.catalog.Libraries(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
		}
		libraries = all
	}

	var pool []domain.ContentItem
	for _, lib := range libraries {
		items, err := s.catalog.Items(ctx, lib)
		if err != nil {
			return nil, fmt.Errorf("%w: library %s: %v", domain.ErrCatalogUnavailable, lib, err)
		}
		for _, c := range items {
			pool = append(pool, domain.ContentItem{Content: c})
		}
	}
	if len(pool) == 0 {
		return nil, domain.ErrEmptyPool
	}
	return pool, nil
}

// enrich resolves metadata for the pool according to the cache mode.
// Missing metadata is never fatal: the affected item scores neutrally.
func (s *Service) enrich(ctx context.Context, pool []domain.ContentItem, mode domain.CacheMode) ([]domain.ContentItem, error) {
	if mode == domain.CacheNone || mode == domain.CachePlexOnly {
		return pool, nil
	}

	useCache := s.cache != nil && mode != domain.CacheTmdbOnly
	useProvider := s.provider != nil && mode != domain.CacheOnly
	writeBack := useCache && (mode == domain.CacheFull || mode == domain.CacheEnrich)

	for i := range pool {
		if err := ctx.Err(); err != nil {
			return nil, domain.ErrRunCancelled
		}
		key := pool[i].Key()

		if useCache {
			meta, err := s.cache.Get(ctx, key)
			switch {
			case err == nil && meta != nil:
				observability.CacheLookups.WithLabelValues("hit").Inc()
				pool[i].Meta = meta
				continue
			case errors.Is(err, domain.ErrCacheMiss):
				observability.CacheLookups.WithLabelValues("miss").Inc()
			case err != nil:
				observability.CacheLookups.WithLabelValues("error").Inc()
				s.log.Warn().Err(err).Str("key", key).Msg("metadata cache read failed")
			}
		}

		if useProvider {
			meta, err := s.provider.Lookup(ctx, pool[i].Content)
			if err != nil {
				result := "error"
				if errors.Is(err, domain.ErrProviderUnavailable) {
					result = "open"
				}
				observability.ProviderLookups.WithLabelValues(result).Inc()
				s.log.Warn().Err(err).Str("title", pool[i].Content.Title).Msg("metadata lookup failed")
				continue
			}
			observability.ProviderLookups.WithLabelValues("ok").Inc()
			if meta != nil {
				pool[i].Meta = meta
				if writeBack {
					if err := s.cache.Put(ctx, key, meta); err != nil {
						s.log.Warn().Err(err).Str("key", key).Msg("metadata cache write failed")
					}
				}
			}
		}
	}
	return pool, nil
}

// maybeSuggest asks the suggestion adapter for a post-hoc improvement
// note. Failures are logged and ignored; the run result stands either
// way.
func (s *Service) maybeSuggest(ctx context.Context, req domain.ProgrammingRequest, result *domain.ProgrammingResult) string {
	if !req.AIImprove || s.suggest == nil {
		return ""
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.SuggestTimeout)
	defer cancel()

	response, err := s.suggest.Suggest(callCtx, req.AIPrompt, result)
	if err != nil {
		s.log.Warn().Err(err).Msg("suggestion call failed")
		return ""
	}
	return response
}

// ─── Scoring Runs ───────────────────────────────────────────────────────────

// ScorePlaylist evaluates an externally supplied playlist against a
// profile, producing per-program breakdowns suitable for audit. The
// playlist order is taken as-is; programs run back to back from start.
func (s *Service) ScorePlaylist(playlist []domain.ContentItem, prof *domain.Profile, start time.Time) (*domain.ProgrammingResult, error) {
	return s.generator.Evaluate(playlist, prof, start)
}
