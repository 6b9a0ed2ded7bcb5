package domain

import "time"

// ─── Jobs ───────────────────────────────────────────────────────────────────

// JobKind classifies a background job.
type JobKind string

const (
	JobProgramming JobKind = "programming"
	JobScoring     JobKind = "scoring"
	JobSync        JobKind = "sync"
	JobPreview     JobKind = "preview"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}

// StepStatus is the state of one progress step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// ProgressStep is a labeled phase of a long-running job, shown to
// streaming clients.
type ProgressStep struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// Job is a background task owned by the job coordinator. It is mutated
// only through coordinator operations.
type Job struct {
	ID     string    `json:"id"`
	Kind   JobKind   `json:"type"`
	Status JobStatus `json:"status"`
	Title  string    `json:"title"`

	Progress    float64 `json:"progress"`
	CurrentStep string  `json:"current_step,omitempty"`

	BestScore        *float64 `json:"best_score,omitempty"`
	CurrentIteration *int     `json:"current_iteration,omitempty"`
	TotalIterations  *int     `json:"total_iterations,omitempty"`

	Steps []ProgressStep `json:"steps,omitempty"`

	ChannelID string `json:"channel_id,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`
	Result       any    `json:"result,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to subscribers: the steps
// slice is copied, the result payload is shared (treated as immutable once
// attached).
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if len(j.Steps) > 0 {
		cp.Steps = make([]ProgressStep, len(j.Steps))
		copy(cp.Steps, j.Steps)
	}
	return &cp
}

// ─── Job Events ─────────────────────────────────────────────────────────────

// EventType identifies a job stream event.
type EventType string

const (
	EventJobsState    EventType = "jobs_state"
	EventJobCreated   EventType = "job_created"
	EventJobStarted   EventType = "job_started"
	EventJobProgress  EventType = "job_progress"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventJobCancelled EventType = "job_cancelled"
)

// JobEvent is one frame of the job stream. jobs_state events carry the
// full snapshot; all others carry the affected job.
type JobEvent struct {
	Type EventType `json:"type"`
	Job  *Job      `json:"job,omitempty"`
	Jobs []*Job    `json:"jobs,omitempty"`
}
