package domain

import "strings"

// ─── M/F/P Policy ───────────────────────────────────────────────────────────

// MFPPolicy configures the point deltas applied by the uniform
// mandatory/forbidden/preferred rule evaluator. Block-level policy
// overrides profile-level, which overrides the built-in defaults.
type MFPPolicy struct {
	MandatoryMatchedBonus    float64 `yaml:"mandatory_matched_bonus" json:"mandatory_matched_bonus"`
	MandatoryMissedPenalty   float64 `yaml:"mandatory_missed_penalty" json:"mandatory_missed_penalty"`
	ForbiddenDetectedPenalty float64 `yaml:"forbidden_detected_penalty" json:"forbidden_detected_penalty"`
	PreferredMatchedBonus    float64 `yaml:"preferred_matched_bonus" json:"preferred_matched_bonus"`
}

// DefaultMFPPolicy returns the built-in point policy.
func DefaultMFPPolicy() MFPPolicy {
	return MFPPolicy{
		MandatoryMatchedBonus:    10,
		MandatoryMissedPenalty:   -40,
		ForbiddenDetectedPenalty: -400,
		PreferredMatchedBonus:    20,
	}
}

// ─── Per-Criterion Rules ────────────────────────────────────────────────────

// CriterionRules is an M/F/P rule set attached to a single criterion.
// Penalty/bonus overrides are optional; nil falls back to the MFPPolicy.
type CriterionRules struct {
	MandatoryValues  []string `yaml:"mandatory_values,omitempty" json:"mandatory_values,omitempty"`
	MandatoryPenalty *float64 `yaml:"mandatory_penalty,omitempty" json:"mandatory_penalty,omitempty"`
	ForbiddenValues  []string `yaml:"forbidden_values,omitempty" json:"forbidden_values,omitempty"`
	ForbiddenPenalty *float64 `yaml:"forbidden_penalty,omitempty" json:"forbidden_penalty,omitempty"`
	PreferredValues  []string `yaml:"preferred_values,omitempty" json:"preferred_values,omitempty"`
	PreferredBonus   *float64 `yaml:"preferred_bonus,omitempty" json:"preferred_bonus,omitempty"`
}

// Empty reports whether the rule set carries no values at all.
func (r *CriterionRules) Empty() bool {
	return r == nil ||
		(len(r.MandatoryValues) == 0 && len(r.ForbiddenValues) == 0 && len(r.PreferredValues) == 0)
}

// ─── Time Blocks ────────────────────────────────────────────────────────────

// TimeBlock is a named [start, end) window of the broadcast day with its
// own selection criteria. A block whose end is not after its start wraps
// past midnight (overnight block).
type TimeBlock struct {
	Name     string        `yaml:"name" json:"name"`
	Start    string        `yaml:"start_time" json:"start_time"` // "HH:MM"
	End      string        `yaml:"end_time" json:"end_time"`     // "HH:MM"
	Criteria BlockCriteria `yaml:"criteria" json:"criteria"`
}

// BlockCriteria enumerates the per-block selection options. Everything is
// optional; zero values mean "no constraint".
type BlockCriteria struct {
	PreferredTypes []string `yaml:"preferred_types,omitempty" json:"preferred_types,omitempty"`
	AllowedTypes   []string `yaml:"allowed_types,omitempty" json:"allowed_types,omitempty"`
	ExcludedTypes  []string `yaml:"excluded_types,omitempty" json:"excluded_types,omitempty"`

	PreferredGenres []string `yaml:"preferred_genres,omitempty" json:"preferred_genres,omitempty"`
	AllowedGenres   []string `yaml:"allowed_genres,omitempty" json:"allowed_genres,omitempty"`
	ForbiddenGenres []string `yaml:"forbidden_genres,omitempty" json:"forbidden_genres,omitempty"`

	MinDurationMin float64 `yaml:"min_duration_min,omitempty" json:"min_duration_min,omitempty"`
	MaxDurationMin float64 `yaml:"max_duration_min,omitempty" json:"max_duration_min,omitempty"`

	MaxAgeRating string `yaml:"max_age_rating,omitempty" json:"max_age_rating,omitempty"`

	MinTmdbRating       float64 `yaml:"min_tmdb_rating,omitempty" json:"min_tmdb_rating,omitempty"`
	PreferredTmdbRating float64 `yaml:"preferred_tmdb_rating,omitempty" json:"preferred_tmdb_rating,omitempty"`
	MinVoteCount        int     `yaml:"min_vote_count,omitempty" json:"min_vote_count,omitempty"`

	ExcludeKeywords []string `yaml:"exclude_keywords,omitempty" json:"exclude_keywords,omitempty"`
	IncludeKeywords []string `yaml:"include_keywords,omitempty" json:"include_keywords,omitempty"`

	ForbiddenKeywords []string `yaml:"forbidden_keywords,omitempty" json:"forbidden_keywords,omitempty"`
	PreferredKeywords []string `yaml:"preferred_keywords,omitempty" json:"preferred_keywords,omitempty"`
	ForbiddenStudios  []string `yaml:"forbidden_studios,omitempty" json:"forbidden_studios,omitempty"`
	PreferredStudios  []string `yaml:"preferred_studios,omitempty" json:"preferred_studios,omitempty"`

	TypeRules     *CriterionRules `yaml:"type_rules,omitempty" json:"type_rules,omitempty"`
	DurationRules *CriterionRules `yaml:"duration_rules,omitempty" json:"duration_rules,omitempty"`
	GenreRules    *CriterionRules `yaml:"genre_rules,omitempty" json:"genre_rules,omitempty"`
	TimingRules   *CriterionRules `yaml:"timing_rules,omitempty" json:"timing_rules,omitempty"`
	StrategyRules *CriterionRules `yaml:"strategy_rules,omitempty" json:"strategy_rules,omitempty"`
	AgeRules      *CriterionRules `yaml:"age_rules,omitempty" json:"age_rules,omitempty"`
	RatingRules   *CriterionRules `yaml:"rating_rules,omitempty" json:"rating_rules,omitempty"`
	FilterRules   *CriterionRules `yaml:"filter_rules,omitempty" json:"filter_rules,omitempty"`
	BonusRules    *CriterionRules `yaml:"bonus_rules,omitempty" json:"bonus_rules,omitempty"`

	MFPPolicy            *MFPPolicy         `yaml:"mfp_policy,omitempty" json:"mfp_policy,omitempty"`
	CriterionMultipliers map[string]float64 `yaml:"criterion_multipliers,omitempty" json:"criterion_multipliers,omitempty"`
}

// RulesFor returns the per-criterion rule set for the named criterion,
// or nil when none is configured.
func (c *BlockCriteria) RulesFor(criterion string) *CriterionRules {
	if c == nil {
		return nil
	}
	switch criterion {
	case "type":
		return c.TypeRules
	case "duration":
		return c.DurationRules
	case "genre":
		return c.GenreRules
	case "timing":
		return c.TimingRules
	case "strategy":
		return c.StrategyRules
	case "age":
		return c.AgeRules
	case "rating":
		return c.RatingRules
	case "filter":
		return c.FilterRules
	case "bonus":
		return c.BonusRules
	}
	return nil
}

// ─── Global M/F/P Criteria ──────────────────────────────────────────────────

// MandatoryRules are profile-wide requirements every program should meet.
type MandatoryRules struct {
	ContentIDs     []string `yaml:"content_ids,omitempty" json:"content_ids,omitempty"`
	MinDurationMin float64  `yaml:"min_duration_min,omitempty" json:"min_duration_min,omitempty"`
	MinTmdbRating  float64  `yaml:"min_tmdb_rating,omitempty" json:"min_tmdb_rating,omitempty"`
	RequiredGenres []string `yaml:"required_genres,omitempty" json:"required_genres,omitempty"`
}

// ForbiddenRules are profile-wide exclusions.
type ForbiddenRules struct {
	ContentIDs []string `yaml:"content_ids,omitempty" json:"content_ids,omitempty"`
	Types      []string `yaml:"types,omitempty" json:"types,omitempty"`
	Keywords   []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Genres     []string `yaml:"genres,omitempty" json:"genres,omitempty"`
}

// PreferredRules are profile-wide soft preferences.
type PreferredRules struct {
	ContentIDs []string `yaml:"content_ids,omitempty" json:"content_ids,omitempty"`
	Genres     []string `yaml:"genres,omitempty" json:"genres,omitempty"`
	Keywords   []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// GlobalCriteria bundles profile-level rules that apply outside any block,
// plus the block-independent defaults for type, duration, age, rating and
// keyword handling.
type GlobalCriteria struct {
	Mandatory MandatoryRules `yaml:"mandatory,omitempty" json:"mandatory,omitempty"`
	Forbidden ForbiddenRules `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`
	Preferred PreferredRules `yaml:"preferred,omitempty" json:"preferred,omitempty"`

	AllowedTypes []string `yaml:"allowed_types,omitempty" json:"allowed_types,omitempty"`

	AllowedGenres   []string `yaml:"allowed_genres,omitempty" json:"allowed_genres,omitempty"`
	PreferredGenres []string `yaml:"preferred_genres,omitempty" json:"preferred_genres,omitempty"`
	ForbiddenGenres []string `yaml:"forbidden_genres,omitempty" json:"forbidden_genres,omitempty"`

	MinDurationMin float64 `yaml:"min_duration_min,omitempty" json:"min_duration_min,omitempty"`
	MaxDurationMin float64 `yaml:"max_duration_min,omitempty" json:"max_duration_min,omitempty"`

	MaxAgeRating string `yaml:"max_age_rating,omitempty" json:"max_age_rating,omitempty"`

	MinTmdbRating       float64 `yaml:"min_tmdb_rating,omitempty" json:"min_tmdb_rating,omitempty"`
	PreferredTmdbRating float64 `yaml:"preferred_tmdb_rating,omitempty" json:"preferred_tmdb_rating,omitempty"`
	MinVoteCount        int     `yaml:"min_vote_count,omitempty" json:"min_vote_count,omitempty"`

	ExcludeKeywords []string `yaml:"exclude_keywords,omitempty" json:"exclude_keywords,omitempty"`
	IncludeKeywords []string `yaml:"include_keywords,omitempty" json:"include_keywords,omitempty"`

	ForbiddenKeywords []string `yaml:"forbidden_keywords,omitempty" json:"forbidden_keywords,omitempty"`
	PreferredKeywords []string `yaml:"preferred_keywords,omitempty" json:"preferred_keywords,omitempty"`
	ForbiddenStudios  []string `yaml:"forbidden_studios,omitempty" json:"forbidden_studios,omitempty"`
	PreferredStudios  []string `yaml:"preferred_studios,omitempty" json:"preferred_studios,omitempty"`
}

// ─── Strategies & Enhanced Criteria ─────────────────────────────────────────

// FillerInsertion configures the filler strategy.
type FillerInsertion struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Types   []string `yaml:"types,omitempty" json:"types,omitempty"`
}

// StrategyBonuses toggles contextual bonuses.
type StrategyBonuses struct {
	HolidayBonus bool `yaml:"holiday_bonus" json:"holiday_bonus"`
}

// Strategies are profile-wide programming strategy flags.
type Strategies struct {
	MaintainSequence bool            `yaml:"maintain_sequence" json:"maintain_sequence"`
	MaximizeVariety  bool            `yaml:"maximize_variety" json:"maximize_variety"`
	MarathonMode     bool            `yaml:"marathon_mode" json:"marathon_mode"`
	FillerInsertion  FillerInsertion `yaml:"filler_insertion" json:"filler_insertion"`
	Bonuses          StrategyBonuses `yaml:"bonuses" json:"bonuses"`
}

// FillerTypes returns the configured filler types, defaulting to trailer.
func (s Strategies) FillerTypes() []string {
	if len(s.FillerInsertion.Types) > 0 {
		return s.FillerInsertion.Types
	}
	return []string{"trailer"}
}

// KeywordsSafety flags dangerous/safe title and metadata keywords.
type KeywordsSafety struct {
	Enabled                bool     `yaml:"enabled" json:"enabled"`
	SafeKeywords           []string `yaml:"safe_keywords,omitempty" json:"safe_keywords,omitempty"`
	DangerousKeywords      []string `yaml:"dangerous_keywords,omitempty" json:"dangerous_keywords,omitempty"`
	SafeBonusPoints        float64  `yaml:"safe_bonus_points,omitempty" json:"safe_bonus_points,omitempty"`
	DangerousPenaltyPoints float64  `yaml:"dangerous_penalty_points,omitempty" json:"dangerous_penalty_points,omitempty"`
}

// CollectionsFranchises boosts preferred collections.
type CollectionsFranchises struct {
	Enabled               bool     `yaml:"enabled" json:"enabled"`
	PreferredCollections  []string `yaml:"preferred_collections,omitempty" json:"preferred_collections,omitempty"`
	CollectionBonusPoints float64  `yaml:"collection_bonus_points,omitempty" json:"collection_bonus_points,omitempty"`
}

// CastCrew boosts preferred actors.
type CastCrew struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	PreferredActors   []string `yaml:"preferred_actors,omitempty" json:"preferred_actors,omitempty"`
	PopularActorBonus float64  `yaml:"popular_actor_bonus,omitempty" json:"popular_actor_bonus,omitempty"`
}

// EducationalValue boosts educational keywords.
type EducationalValue struct {
	Enabled             bool     `yaml:"enabled" json:"enabled"`
	EducationalKeywords []string `yaml:"educational_keywords,omitempty" json:"educational_keywords,omitempty"`
	BonusPoints         float64  `yaml:"bonus_points,omitempty" json:"bonus_points,omitempty"`
}

// EnhancedCriteria are additional fixed-point adjustments configured on
// the profile, outside the weighted criterion system.
type EnhancedCriteria struct {
	KeywordsSafety        KeywordsSafety        `yaml:"keywords_safety" json:"keywords_safety"`
	CollectionsFranchises CollectionsFranchises `yaml:"collections_franchises" json:"collections_franchises"`
	CastCrew              CastCrew              `yaml:"cast_crew" json:"cast_crew"`
	EducationalValue      EducationalValue      `yaml:"educational_value" json:"educational_value"`
}

// ─── Profile ────────────────────────────────────────────────────────────────

// Profile is the user-authored configuration driving generation and scoring.
// Profiles are trees of value types; evaluators receive rule sets and
// content tokens, never a back-reference into the profile.
type Profile struct {
	ID        string   `yaml:"id,omitempty" json:"id,omitempty"`
	Name      string   `yaml:"name" json:"name"`
	Libraries []string `yaml:"libraries,omitempty" json:"libraries,omitempty"`

	TimeBlocks []TimeBlock `yaml:"time_blocks" json:"time_blocks"`

	Criteria GlobalCriteria `yaml:"mandatory_forbidden_criteria" json:"mandatory_forbidden_criteria"`

	// ScoringWeights maps criterion weight keys to 0-100 weights applied
	// percentage-style. Missing keys fall back to per-criterion defaults.
	ScoringWeights map[string]float64 `yaml:"scoring_weights,omitempty" json:"scoring_weights,omitempty"`

	CriterionMultipliers map[string]float64 `yaml:"criterion_multipliers,omitempty" json:"criterion_multipliers,omitempty"`

	MFPPolicy *MFPPolicy `yaml:"mfp_policy,omitempty" json:"mfp_policy,omitempty"`

	Strategies       Strategies       `yaml:"strategies" json:"strategies"`
	EnhancedCriteria EnhancedCriteria `yaml:"enhanced_criteria" json:"enhanced_criteria"`
}

// Weight returns the scoring weight for a weight key, or the given default
// when the profile does not configure one.
func (p *Profile) Weight(key string, def float64) float64 {
	if p == nil || p.ScoringWeights == nil {
		return def
	}
	if w, ok := p.ScoringWeights[key]; ok {
		return w
	}
	return def
}

// Multiplier resolves the criterion multiplier: block-level first, then
// profile-level, then 1.0.
func (p *Profile) Multiplier(criterion string, block *TimeBlock) float64 {
	if block != nil && block.Criteria.CriterionMultipliers != nil {
		if m, ok := block.Criteria.CriterionMultipliers[criterion]; ok {
			return m
		}
	}
	if p != nil && p.CriterionMultipliers != nil {
		if m, ok := p.CriterionMultipliers[criterion]; ok {
			return m
		}
	}
	return 1.0
}

// PolicyFor resolves the M/F/P policy field-wise: block-level overrides
// profile-level overrides built-in defaults. Unset (zero) fields fall
// through to the next level.
func (p *Profile) PolicyFor(block *TimeBlock) MFPPolicy {
	policy := DefaultMFPPolicy()
	apply := func(src *MFPPolicy) {
		if src == nil {
			return
		}
		if src.MandatoryMatchedBonus != 0 {
			policy.MandatoryMatchedBonus = src.MandatoryMatchedBonus
		}
		if src.MandatoryMissedPenalty != 0 {
			policy.MandatoryMissedPenalty = src.MandatoryMissedPenalty
		}
		if src.ForbiddenDetectedPenalty != 0 {
			policy.ForbiddenDetectedPenalty = src.ForbiddenDetectedPenalty
		}
		if src.PreferredMatchedBonus != 0 {
			policy.PreferredMatchedBonus = src.PreferredMatchedBonus
		}
	}
	if p != nil {
		apply(p.MFPPolicy)
	}
	if block != nil {
		apply(block.Criteria.MFPPolicy)
	}
	return policy
}

// BlockByName returns the profile's time block with the given name.
func (p *Profile) BlockByName(name string) *TimeBlock {
	if p == nil {
		return nil
	}
	for i := range p.TimeBlocks {
		if p.TimeBlocks[i].Name == name {
			return &p.TimeBlocks[i]
		}
	}
	return nil
}

// ContainsFold reports whether values contains s, case-insensitively.
func ContainsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
