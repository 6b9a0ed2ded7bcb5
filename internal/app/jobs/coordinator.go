// Package jobs implements the background-job coordinator: job lifecycle
// (pending → running → completed/failed/cancelled), structured multi-step
// progress, and a fan-out broadcast to streaming subscribers.
//
// Every mutating operation broadcasts exactly one event. Subscribers are
// isolated: each owns a bounded buffered channel written to without
// blocking; a subscriber whose buffer fills is dropped so a slow client
// can never stall a mutator.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/airgrid-tv/airgrid/internal/domain"
	"github.com/airgrid-tv/airgrid/internal/infra/observability"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config controls coordinator behavior.
type Config struct {
	// SubscriberBuffer is the per-subscriber event buffer. A subscriber
	// that falls this far behind is dropped.
	SubscriberBuffer int

	// MaxJobs bounds the retained job set; the oldest terminal jobs are
	// evicted past this limit.
	MaxJobs int

	// Now is an injectable clock for testing.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SubscriberBuffer: 64,
		MaxJobs:          200,
		Now:              time.Now,
	}
}

// ─── Subscriber ─────────────────────────────────────────────────────────────

// Subscriber is one streaming client of the job event feed.
type Subscriber struct {
	ch     chan domain.JobEvent
	closed bool
}

// Events returns the subscriber's event channel. The channel is closed
// when the subscriber unsubscribes or is dropped for falling behind.
func (s *Subscriber) Events() <-chan domain.JobEvent { return s.ch }

// ─── Coordinator ────────────────────────────────────────────────────────────

// Coordinator owns the job map and the subscriber fan-out. The job map
// and subscriber list are mutated under a single mutex.
type Coordinator struct {
	mu          sync.Mutex
	cfg         Config
	jobs        map[string]*domain.Job
	cancels     map[string]context.CancelFunc
	subscribers map[*Subscriber]struct{}
	log         zerolog.Logger
}

// New creates a job coordinator.
func New(cfg Config, log zerolog.Logger) *Coordinator {
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 64
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 200
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Coordinator{
		cfg:         cfg,
		jobs:        make(map[string]*domain.Job),
		cancels:     make(map[string]context.CancelFunc),
		subscribers: make(map[*Subscriber]struct{}),
		log:         log,
	}
}

// ─── Subscription ───────────────────────────────────────────────────────────

// Subscribe registers a streaming client. The first event on the channel
// is a jobs_state snapshot taken atomically with the registration, so no
// later event can precede it.
func (c *Coordinator) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan domain.JobEvent, c.cfg.SubscriberBuffer)}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[sub] = struct{}{}
	c.deliverLocked(sub, domain.JobEvent{Type: domain.EventJobsState, Jobs: c.snapshotLocked()})
	c.log.Debug().Int("subscribers", len(c.subscribers)).Msg("job stream subscriber added")
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (c *Coordinator) Unsubscribe(sub *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(sub)
}

// SubscriberCount returns the number of attached subscribers.
func (c *Coordinator) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}

func (c *Coordinator) removeLocked(sub *Subscriber) {
	if _, ok := c.subscribers[sub]; !ok {
		return
	}
	delete(c.subscribers, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// deliverLocked enqueues one event for one subscriber without blocking.
// A full buffer drops the subscriber.
func (c *Coordinator) deliverLocked(sub *Subscriber, event domain.JobEvent) {
	select {
	case sub.ch <- event:
	default:
		c.log.Warn().Msg("job stream subscriber too slow, dropping")
		c.removeLocked(sub)
	}
}

// broadcastLocked fans an event out to every subscriber.
func (c *Coordinator) broadcastLocked(event domain.JobEvent) {
	for sub := range c.subscribers {
		c.deliverLocked(sub, event)
	}
}

func (c *Coordinator) snapshotLocked() []*domain.Job {
	jobs := make([]*domain.Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// ─── Job Lifecycle ──────────────────────────────────────────────────────────

// CreateOptions carries the optional metadata of a new job.
type CreateOptions struct {
	ChannelID       string
	ProfileID       string
	TotalIterations *int
}

// CreateJob registers a pending job and broadcasts job_created.
func (c *Coordinator) CreateJob(kind domain.JobKind, title string, opts CreateOptions) string {
	job := &domain.Job{
		ID:              uuid.NewString(),
		Kind:            kind,
		Status:          domain.JobPending,
		Title:           title,
		ChannelID:       opts.ChannelID,
		ProfileID:       opts.ProfileID,
		TotalIterations: opts.TotalIterations,
		CreatedAt:       c.cfg.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs[job.ID] = job
	c.evictLocked()
	observability.JobsActive.Inc()
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobCreated, Job: job.Clone()})
	c.log.Info().Str("job", job.ID).Str("title", title).Msg("job created")
	return job.ID
}

// finishLocked records the metrics of a transition into a terminal
// status. Only previously-active jobs count, so a late Complete or Fail
// after a cancel can't double-account.
func finishLocked(wasTerminal bool, status domain.JobStatus) {
	if wasTerminal {
		return
	}
	observability.JobsActive.Dec()
	observability.JobsCompleted.WithLabelValues(string(status)).Inc()
}

// evictLocked drops the oldest terminal jobs past the retention bound.
func (c *Coordinator) evictLocked() {
	if len(c.jobs) <= c.cfg.MaxJobs {
		return
	}
	terminal := make([]*domain.Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		if job.Status.Terminal() {
			terminal = append(terminal, job)
		}
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})
	for _, job := range terminal {
		if len(c.jobs) <= c.cfg.MaxJobs {
			break
		}
		delete(c.jobs, job.ID)
		delete(c.cancels, job.ID)
	}
}

// RegisterCancel attaches the worker's cancel function so Cancel can
// signal a running job. The worker polls its context between iterations.
func (c *Coordinator) RegisterCancel(id string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels[id] = cancel
}

// StartJob transitions pending → running and broadcasts job_started.
func (c *Coordinator) StartJob(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	now := c.cfg.Now()
	job.Status = domain.JobRunning
	job.StartedAt = &now
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobStarted, Job: job.Clone()})
	c.log.Info().Str("job", id).Msg("job started")
	return nil
}

// SetSteps replaces the job's progress steps and broadcasts job_progress.
func (c *Coordinator) SetSteps(id string, steps []domain.ProgressStep) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Steps = append([]domain.ProgressStep(nil), steps...)
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobProgress, Job: job.Clone()})
	return nil
}

// UpdateStepStatus updates one step's status (and detail, when non-empty)
// and broadcasts job_progress.
func (c *Coordinator) UpdateStepStatus(id, stepID string, status domain.StepStatus, detail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	for i := range job.Steps {
		if job.Steps[i].ID == stepID {
			job.Steps[i].Status = status
			if detail != "" {
				job.Steps[i].Detail = detail
			}
			break
		}
	}
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobProgress, Job: job.Clone()})
	return nil
}

// Progress carries the optional counters of a progress update.
type Progress struct {
	BestScore        *float64
	CurrentIteration *int
	TotalIterations  *int
}

// UpdateProgress sets the job's progress percentage and counters and
// broadcasts job_progress.
func (c *Coordinator) UpdateProgress(id string, pct float64, currentStep string, extra Progress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	job.Progress = pct
	if currentStep != "" {
		job.CurrentStep = currentStep
	}
	if extra.BestScore != nil {
		job.BestScore = extra.BestScore
	}
	if extra.CurrentIteration != nil {
		job.CurrentIteration = extra.CurrentIteration
	}
	if extra.TotalIterations != nil {
		job.TotalIterations = extra.TotalIterations
	}
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobProgress, Job: job.Clone()})
	return nil
}

// Complete marks the job completed with an optional result payload and
// broadcasts job_completed.
func (c *Coordinator) Complete(id string, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	wasTerminal := job.Status.Terminal()
	now := c.cfg.Now()
	job.Status = domain.JobCompleted
	job.Progress = 100
	job.CompletedAt = &now
	if result != nil {
		job.Result = result
	}
	delete(c.cancels, id)
	finishLocked(wasTerminal, domain.JobCompleted)
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobCompleted, Job: job.Clone()})
	c.log.Info().Str("job", id).Msg("job completed")
	return nil
}

// Fail marks the job failed with a diagnostic and broadcasts job_failed.
func (c *Coordinator) Fail(id, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	wasTerminal := job.Status.Terminal()
	now := c.cfg.Now()
	job.Status = domain.JobFailed
	job.CompletedAt = &now
	job.ErrorMessage = message
	delete(c.cancels, id)
	finishLocked(wasTerminal, domain.JobFailed)
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobFailed, Job: job.Clone()})
	c.log.Error().Str("job", id).Str("error", message).Msg("job failed")
	return nil
}

// Cancel transitions a pending or running job to cancelled, signals its
// worker, and broadcasts job_cancelled. Returns false for unknown or
// already-terminal jobs.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	job, ok := c.jobs[id]
	if !ok || job.Status.Terminal() {
		c.mu.Unlock()
		return false
	}
	now := c.cfg.Now()
	job.Status = domain.JobCancelled
	job.CompletedAt = &now
	cancel := c.cancels[id]
	delete(c.cancels, id)
	finishLocked(false, domain.JobCancelled)
	c.broadcastLocked(domain.JobEvent{Type: domain.EventJobCancelled, Job: job.Clone()})
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.log.Info().Str("job", id).Msg("job cancelled")
	return true
}

// ─── Queries ────────────────────────────────────────────────────────────────

// GetJob returns a copy of the job, or nil when unknown.
func (c *Coordinator) GetJob(id string) *domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs[id].Clone()
}

// IsCancelled reports whether the job has been cancelled.
func (c *Coordinator) IsCancelled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	return ok && job.Status == domain.JobCancelled
}

// ListActive returns the pending and running jobs, newest first.
func (c *Coordinator) ListActive() []*domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	var active []*domain.Job
	for _, job := range c.jobs {
		if job.Status == domain.JobPending || job.Status == domain.JobRunning {
			active = append(active, job.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})
	return active
}

// ListRecent returns up to limit jobs, newest first.
func (c *Coordinator) ListRecent(limit int) []*domain.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	jobs := c.snapshotLocked()
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// ClearTerminal removes completed, failed and cancelled jobs and
// broadcasts a fresh jobs_state snapshot.
func (c *Coordinator) ClearTerminal() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, job := range c.jobs {
		if job.Status.Terminal() {
			delete(c.jobs, id)
			delete(c.cancels, id)
			removed++
		}
	}
	if removed > 0 {
		c.broadcastLocked(domain.JobEvent{Type: domain.EventJobsState, Jobs: c.snapshotLocked()})
		c.log.Info().Int("removed", removed).Msg("terminal jobs cleared")
	}
	return removed
}

// CleanupOlder removes jobs whose completion predates the cutoff.
func (c *Coordinator) CleanupOlder(maxAge time.Duration) int {
	cutoff := c.cfg.Now().Add(-maxAge)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, job := range c.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(c.jobs, id)
			delete(c.cancels, id)
			removed++
		}
	}
	if removed > 0 {
		c.log.Info().Int("removed", removed).Msg("old jobs cleaned up")
		c.broadcastLocked(domain.JobEvent{Type: domain.EventJobsState, Jobs: c.snapshotLocked()})
	}
	return removed
}
