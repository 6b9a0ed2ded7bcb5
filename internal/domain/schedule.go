package domain

import "time"

// ─── Scheduled Programs ─────────────────────────────────────────────────────

// ReplacementReason records why a program was swapped in by a
// post-processing pass.
type ReplacementReason string

const (
	ReplacedForbidden  ReplacementReason = "forbidden"
	ReplacedImproved   ReplacementReason = "improved"
	ReplacedAIImproved ReplacementReason = "ai_improved"
)

// ScheduledProgram is one slot of a generated schedule. Times are
// wall-clock local; block boundaries are defined in local time.
type ScheduledProgram struct {
	Content Content      `json:"content"`
	Meta    *ContentMeta `json:"meta,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	BlockName string `json:"block_name"`
	Position  int    `json:"position"`

	Score *ScoringResult `json:"score"`

	IsReplacement     bool              `json:"is_replacement,omitempty"`
	ReplacementReason ReplacementReason `json:"replacement_reason,omitempty"`
	ReplacedTitle     string            `json:"replaced_title,omitempty"`
}

// DurationMinutes returns the slot length in fractional minutes.
func (p *ScheduledProgram) DurationMinutes() float64 {
	return p.Content.DurationMinutes()
}

// ─── Programming Result ─────────────────────────────────────────────────────

// ProgrammingResult is one complete candidate schedule. The best result
// additionally carries every iteration in AllIterations, sorted by total
// score descending, with post-processing passes prepended.
type ProgrammingResult struct {
	Programs     []*ScheduledProgram `json:"programs"`
	TotalScore   float64             `json:"total_score"`
	AverageScore float64             `json:"average_score"`

	Iteration int   `json:"iteration"`
	Seed      int64 `json:"seed"`

	ForbiddenCount int `json:"forbidden_count"`

	AllIterations []*ProgrammingResult `json:"all_iterations,omitempty"`

	IsOptimized bool `json:"is_optimized,omitempty"`
	IsImproved  bool `json:"is_improved,omitempty"`

	OriginalBestIteration int     `json:"original_best_iteration,omitempty"`
	OriginalBestScore     float64 `json:"original_best_score,omitempty"`

	ReplacedCount int `json:"replaced_count,omitempty"`
	ImprovedCount int `json:"improved_count,omitempty"`
}

// TotalDurationMinutes sums the program runtimes.
func (r *ProgrammingResult) TotalDurationMinutes() float64 {
	var total float64
	for _, p := range r.Programs {
		total += p.DurationMinutes()
	}
	return total
}

// ─── Run Requests ───────────────────────────────────────────────────────────

// CacheMode selects how metadata enrichment uses the cache.
type CacheMode string

const (
	CacheNone     CacheMode = "none"
	CachePlexOnly CacheMode = "plex_only"
	CacheTmdbOnly CacheMode = "tmdb_only"
	CacheOnly     CacheMode = "cache_only"
	CacheFull     CacheMode = "full"
	CacheEnrich   CacheMode = "enrich_cache"
)

// ProgrammingRequest is the language-neutral input for a generation run.
type ProgrammingRequest struct {
	ChannelID string `json:"channel_id"`
	ProfileID string `json:"profile_id"`

	Iterations int     `json:"iterations"`
	Randomness float64 `json:"randomness"` // [0,1]

	CacheMode CacheMode `json:"cache_mode,omitempty"`

	PreviewOnly     bool `json:"preview_only,omitempty"`
	ReplaceForbidden bool `json:"replace_forbidden,omitempty"`
	ImproveBest     bool `json:"improve_best,omitempty"`

	DurationDays  int        `json:"duration_days"`
	StartDatetime *time.Time `json:"start_datetime,omitempty"` // local, default now

	Seed *int64 `json:"seed,omitempty"`

	AIImprove bool   `json:"ai_improve,omitempty"`
	AIPrompt  string `json:"ai_prompt,omitempty"`
	AIModel   string `json:"ai_model,omitempty"`
}

// Normalize fills defaults and clamps ranges in place.
func (r *ProgrammingRequest) Normalize() {
	if r.Iterations < 1 {
		r.Iterations = 10
	}
	if r.Randomness < 0 {
		r.Randomness = 0
	}
	if r.Randomness > 1 {
		r.Randomness = 1
	}
	if r.DurationDays < 1 {
		r.DurationDays = 1
	}
	if r.DurationDays > 30 {
		r.DurationDays = 30
	}
	if r.CacheMode == "" {
		r.CacheMode = CacheFull
	}
}

// ─── Persisted Results ──────────────────────────────────────────────────────

// StoredResult is the persisted layout for a completed run.
type StoredResult struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	ProfileID string `json:"profile_id"`

	Programs         []*ScheduledProgram `json:"programs"`
	TotalScore       float64             `json:"total_score"`
	AverageScore     float64             `json:"average_score"`
	TotalDurationMin float64             `json:"total_duration_min"`
	Iteration        int                 `json:"iteration"`

	CreatedAt time.Time `json:"created_at"`

	AllIterations   []*ProgrammingResult `json:"all_iterations,omitempty"`
	TotalIterations int                  `json:"total_iterations"`
	TimeBlocks      []TimeBlock          `json:"time_blocks,omitempty"`

	AIResponse string `json:"ai_response,omitempty"`
}
