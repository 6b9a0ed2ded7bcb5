package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine orchestrates the nine criteria and aggregates a weighted total,
// then applies global forbidden/mandatory rules and the keyword
// multiplier to produce a ScoringResult.
type Engine struct {
	criteria []*Criterion
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the clock used by recency and seasonal logic.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a scoring engine with the full criterion registry.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		criteria: []*Criterion{
			TypeCriterion,
			DurationCriterion,
			GenreCriterion,
			TimingCriterion,
			StrategyCriterion,
			AgeCriterion,
			RatingCriterion,
			FilterCriterion,
			BonusCriterion,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CriterionNames returns the registered criterion names in evaluation
// order.
func (e *Engine) CriterionNames() []string {
	names := make([]string, len(e.criteria))
	for i, c := range e.criteria {
		names[i] = c.Name
	}
	return names
}

// Score calculates the complete score for one content item at one
// position.
func (e *Engine) Score(content domain.Content, meta *domain.ContentMeta, profile *domain.Profile, block *domain.TimeBlock, ctx *Context) *domain.ScoringResult {
	in := Input{
		Content: content,
		Meta:    meta,
		Profile: profile,
		Block:   block,
		Context: ctx,
		Now:     e.now(),
	}

	results := make(map[string]*domain.CriterionResult, len(e.criteria))
	outcomes := map[string]domain.RuleOutcome{}
	for _, c := range e.criteria {
		r := c.Evaluate(in)
		results[c.Name] = r
		if r.RuleOutcome != nil {
			outcomes[c.Name] = *r.RuleOutcome
		}
	}

	weightedTotal := weightedTotalOf(results)

	forbidden := e.checkForbidden(content, meta, profile, block)

	// Elevate per-criterion forbidden outcomes to schedule-level
	// violations. Bonus outcomes stay criterion-local: its forbidden
	// categories are inferred from derived buckets, not hard exclusions.
	for _, c := range e.criteria {
		if c.Name == "bonus" {
			continue
		}
		outcome, ok := outcomes[c.Name]
		if !ok || outcome.Type != domain.RuleForbidden {
			continue
		}
		forbidden = append(forbidden, domain.ForbiddenViolation{
			Rule:      fmt.Sprintf("forbidden_%s_rule", c.Name),
			Value:     strings.Join(outcome.Values, ", "),
			Message:   fmt.Sprintf("content has forbidden %s: %s", c.Name, strings.Join(outcome.Values, ", ")),
			Criterion: c.Name,
			Penalty:   outcome.Delta,
		})
	}

	penalties := e.checkMandatory(content, meta, profile)

	final := weightedTotal
	if len(forbidden) > 0 {
		final = 0
	} else {
		for _, p := range penalties {
			final -= p.Penalty
		}
	}

	multiplier, match := e.keywordMultiplier(content, profile, block)
	if multiplier != domain.KeywordNeutralMultiplier {
		final *= multiplier
	}
	final = clamp(final, 0, 100)

	var bonuses []string
	if br := results["bonus"]; br != nil && br.Details != nil {
		if applied, ok := br.Details["bonuses_applied"].([]string); ok {
			bonuses = applied
		}
	}

	return &domain.ScoringResult{
		TotalScore:          final,
		WeightedTotal:       weightedTotal,
		Criteria:            results,
		ForbiddenViolations: forbidden,
		MandatoryPenalties:  penalties,
		BonusesApplied:      bonuses,
		KeywordMultiplier:   multiplier,
		KeywordMatch:        match,
		RuleOutcomes:        outcomes,
	}
}

// Evaluate runs a single registered criterion by name.
func (e *Engine) Evaluate(name string, content domain.Content, meta *domain.ContentMeta, profile *domain.Profile, block *domain.TimeBlock, ctx *Context) *domain.CriterionResult {
	for _, c := range e.criteria {
		if c.Name == name {
			return c.Evaluate(Input{
				Content: content,
				Meta:    meta,
				Profile: profile,
				Block:   block,
				Context: ctx,
				Now:     e.now(),
			})
		}
	}
	return nil
}

// weightedTotalOf normalizes the multiplied weighted scores to 0-100.
// Skipped criteria are excluded from both numerator and denominator; an
// empty denominator yields the neutral 50. Summation runs in sorted key
// order so repeated runs accumulate identically.
func weightedTotalOf(results map[string]*domain.CriterionResult) float64 {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var totalWeight, multipliedSum float64
	for _, name := range names {
		r := results[name]
		if r.Skipped {
			continue
		}
		totalWeight += r.Weight * r.Multiplier
		multipliedSum += r.MultipliedWeightedScore
	}
	if totalWeight <= 0 {
		return 50
	}
	return multipliedSum / totalWeight * 100
}

// RecomputeTotals refreshes WeightedTotal and TotalScore from the current
// criterion results, re-applying the stored mandatory penalties and
// keyword multiplier. Used after post-processing swaps a criterion result
// in place (e.g. the timing recalculation).
func (e *Engine) RecomputeTotals(result *domain.ScoringResult) {
	result.WeightedTotal = weightedTotalOf(result.Criteria)

	if len(result.ForbiddenViolations) > 0 {
		result.TotalScore = 0
		return
	}
	adjusted := result.WeightedTotal
	for _, p := range result.MandatoryPenalties {
		adjusted -= p.Penalty
	}
	if result.KeywordMultiplier != 0 && result.KeywordMultiplier != domain.KeywordNeutralMultiplier {
		adjusted *= result.KeywordMultiplier
	}
	result.TotalScore = clamp(adjusted, 0, 100)
}

// ─── Global Forbidden Rules ─────────────────────────────────────────────────

func (e *Engine) checkForbidden(content domain.Content, meta *domain.ContentMeta, profile *domain.Profile, block *domain.TimeBlock) []domain.ForbiddenViolation {
	var violations []domain.ForbiddenViolation
	forbidden := &profile.Criteria.Forbidden

	if key := content.Key(); key != "" && domain.ContainsFold(forbidden.ContentIDs, key) {
		violations = append(violations, domain.ForbiddenViolation{
			Rule:    "forbidden_content_id",
			Value:   key,
			Message: fmt.Sprintf("content %s is forbidden", key),
		})
	}

	contentType := content.TypeLower()
	if domain.ContainsFold(forbidden.Types, contentType) {
		violations = append(violations, domain.ForbiddenViolation{
			Rule:    "forbidden_type",
			Value:   contentType,
			Message: fmt.Sprintf("content type %q is forbidden", contentType),
		})
	}

	title := strings.ToLower(content.Title)
	for _, kw := range forbidden.Keywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			violations = append(violations, domain.ForbiddenViolation{
				Rule:    "forbidden_keyword_in_title",
				Value:   kw,
				Message: fmt.Sprintf("title contains forbidden keyword %q", kw),
			})
		}
	}

	if meta != nil {
		genres := meta.GenresLower()
		for _, g := range genres {
			if domain.ContainsFold(forbidden.Genres, g) {
				violations = append(violations, domain.ForbiddenViolation{
					Rule:    "forbidden_genre",
					Value:   g,
					Message: fmt.Sprintf("content has forbidden genre %q", g),
				})
			}
		}

		if block != nil && len(block.Criteria.ForbiddenGenres) > 0 {
			for _, g := range genres {
				if !domain.ContainsFold(block.Criteria.ForbiddenGenres, g) {
					continue
				}
				duplicate := false
				for _, v := range violations {
					if v.Rule == "forbidden_genre" && v.Value == g {
						duplicate = true
						break
					}
				}
				if !duplicate {
					violations = append(violations, domain.ForbiddenViolation{
						Rule:    "forbidden_genre_block",
						Value:   g,
						Message: fmt.Sprintf("content has genre %q forbidden in time block", g),
					})
				}
			}
		}
	}

	return violations
}

// ─── Global Mandatory Rules ─────────────────────────────────────────────────

// Default penalties for unmet profile-wide mandatory rules.
const (
	minDurationPenalty   = 15.0
	minRatingPenalty     = 10.0
	requiredGenrePenalty = 20.0
)

func (e *Engine) checkMandatory(content domain.Content, meta *domain.ContentMeta, profile *domain.Profile) []domain.MandatoryPenalty {
	var penalties []domain.MandatoryPenalty
	mandatory := &profile.Criteria.Mandatory

	if mandatory.MinDurationMin > 0 {
		durationMin := content.DurationMinutes()
		if durationMin < mandatory.MinDurationMin {
			penalties = append(penalties, domain.MandatoryPenalty{
				Rule:    "mandatory_min_duration",
				Penalty: minDurationPenalty,
				Message: fmt.Sprintf("duration %.1fmin below minimum %.0fmin", durationMin, mandatory.MinDurationMin),
			})
		}
	}

	if mandatory.MinTmdbRating > 0 {
		rating := 0.0
		if meta != nil && meta.Rating != nil {
			rating = *meta.Rating
		}
		if rating < mandatory.MinTmdbRating {
			penalties = append(penalties, domain.MandatoryPenalty{
				Rule:    "mandatory_min_rating",
				Penalty: minRatingPenalty,
				Message: fmt.Sprintf("rating %.1f below minimum %.1f", rating, mandatory.MinTmdbRating),
			})
		}
	}

	if len(mandatory.RequiredGenres) > 0 && meta != nil {
		found := false
		for _, g := range meta.GenresLower() {
			if domain.ContainsFold(mandatory.RequiredGenres, g) {
				found = true
				break
			}
		}
		if !found {
			penalties = append(penalties, domain.MandatoryPenalty{
				Rule:    "mandatory_genre_missing",
				Penalty: requiredGenrePenalty,
				Message: fmt.Sprintf("missing required genre from %s", strings.Join(mandatory.RequiredGenres, ", ")),
			})
		}
	}

	return penalties
}

// ─── Keyword Multiplier ─────────────────────────────────────────────────────

// keywordMultiplier resolves the whole-score multiplier from title
// substring matches: exclude hits halve the score, include hits boost it
// ten percent, exclusion always wins. The profile's dangerous keywords
// are merged into the exclusion list.
func (e *Engine) keywordMultiplier(content domain.Content, profile *domain.Profile, block *domain.TimeBlock) (float64, string) {
	title := strings.ToLower(content.Title)
	if title == "" {
		return domain.KeywordNeutralMultiplier, ""
	}

	var exclude, include []string
	if block != nil {
		exclude = lowerAll(block.Criteria.ExcludeKeywords)
		include = lowerAll(block.Criteria.IncludeKeywords)
	} else {
		exclude = lowerAll(profile.Criteria.ExcludeKeywords)
		include = lowerAll(profile.Criteria.IncludeKeywords)
	}

	if ks := profile.EnhancedCriteria.KeywordsSafety; len(ks.DangerousKeywords) > 0 {
		exclude = append(exclude, lowerAll(ks.DangerousKeywords)...)
	}

	for _, kw := range exclude {
		if strings.Contains(title, kw) {
			return domain.KeywordExcludeMultiplier, "exclude"
		}
	}
	for _, kw := range include {
		if strings.Contains(title, kw) {
			return domain.KeywordIncludeMultiplier, "include"
		}
	}
	return domain.KeywordNeutralMultiplier, ""
}
