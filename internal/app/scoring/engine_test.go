package scoring

import (
	"testing"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func testEngine() *Engine {
	return NewEngine(WithClock(func() time.Time { return testNow }))
}

// weightsOnly builds a profile whose scoring weights are zero except the
// given entries.
func weightsOnly(entries map[string]float64) map[string]float64 {
	weights := map[string]float64{
		"type": 0, "duration": 0, "genre": 0, "timing": 0, "strategy": 0,
		"age": 0, "rating": 0, "filter": 0, "bonus": 0,
	}
	for k, v := range entries {
		weights[k] = v
	}
	return weights
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestEngine_CriterionRegistry(t *testing.T) {
	names := testEngine().CriterionNames()
	want := []string{"type", "duration", "genre", "timing", "strategy", "age", "rating", "filter", "bonus"}
	if len(names) != len(want) {
		t.Fatalf("criteria = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("criterion %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestEngine_WeightedAggregation(t *testing.T) {
	// Only the type criterion carries weight: total equals its score.
	profile := &domain.Profile{
		ScoringWeights: weightsOnly(map[string]float64{"type": 50}),
	}
	block := &domain.TimeBlock{Criteria: domain.BlockCriteria{PreferredTypes: []string{"movie"}}}

	result := testEngine().Score(movie("a", 90), nil, profile, block, nil)
	if result.WeightedTotal != 100 {
		t.Errorf("WeightedTotal = %.2f, want 100", result.WeightedTotal)
	}
	if result.TotalScore != 100 {
		t.Errorf("TotalScore = %.2f, want 100", result.TotalScore)
	}
	if len(result.Criteria) != 9 {
		t.Errorf("criteria count = %d, want 9", len(result.Criteria))
	}
}

func TestEngine_ZeroWeightsDefaultNeutral(t *testing.T) {
	profile := &domain.Profile{ScoringWeights: weightsOnly(nil)}
	result := testEngine().Score(movie("a", 90), nil, profile, nil, nil)
	if result.WeightedTotal != 50 {
		t.Errorf("WeightedTotal = %.2f, want neutral 50", result.WeightedTotal)
	}
}

func TestEngine_ForbiddenGenreZeroesScore(t *testing.T) {
	profile := &domain.Profile{
		ScoringWeights: weightsOnly(map[string]float64{"type": 20}),
		Criteria: domain.GlobalCriteria{
			Forbidden: domain.ForbiddenRules{Genres: []string{"horror"}},
		},
	}
	meta := &domain.ContentMeta{Genres: []string{"Horror"}}

	result := testEngine().Score(movie("a", 90), meta, profile, nil, nil)
	if result.TotalScore != 0 {
		t.Errorf("TotalScore = %.2f, want 0", result.TotalScore)
	}
	if !result.Forbidden() {
		t.Fatal("expected a forbidden violation")
	}
	if result.ForbiddenViolations[0].Rule != "forbidden_genre" {
		t.Errorf("rule = %q, want forbidden_genre", result.ForbiddenViolations[0].Rule)
	}
}

func TestEngine_AgeCeilingElevatesToForbidden(t *testing.T) {
	profile := &domain.Profile{ScoringWeights: weightsOnly(map[string]float64{"type": 20})}
	block := &domain.TimeBlock{Criteria: domain.BlockCriteria{MaxAgeRating: "PG-13"}}
	meta := &domain.ContentMeta{AgeRating: "18"}

	result := testEngine().Score(movie("a", 90), meta, profile, block, nil)
	if result.TotalScore != 0 {
		t.Errorf("TotalScore = %.2f, want 0", result.TotalScore)
	}
	found := false
	for _, v := range result.ForbiddenViolations {
		if v.Rule == "forbidden_age_rule" {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %+v, want forbidden_age_rule", result.ForbiddenViolations)
	}
}

func TestEngine_BonusForbiddenStaysLocal(t *testing.T) {
	// Bonus-category forbidden outcomes apply their penalty but are not
	// elevated to schedule-level violations.
	content := movie("a", 90)
	content.Year = testNow.Year()
	profile := &domain.Profile{ScoringWeights: weightsOnly(map[string]float64{"type": 20})}
	block := &domain.TimeBlock{Criteria: domain.BlockCriteria{
		BonusRules: &domain.CriterionRules{ForbiddenValues: []string{"recent"}},
	}}

	result := testEngine().Score(content, &domain.ContentMeta{}, profile, block, nil)
	if result.Forbidden() {
		t.Errorf("bonus forbidden outcome escalated: %+v", result.ForbiddenViolations)
	}
	if outcome, ok := result.RuleOutcomes["bonus"]; !ok || outcome.Type != domain.RuleForbidden {
		t.Errorf("bonus outcome = %+v, want forbidden recorded locally", result.RuleOutcomes["bonus"])
	}
}

func TestEngine_MandatoryPenalties(t *testing.T) {
	profile := &domain.Profile{
		ScoringWeights: weightsOnly(map[string]float64{"type": 100}),
		Criteria: domain.GlobalCriteria{
			Mandatory: domain.MandatoryRules{MinDurationMin: 120},
		},
	}
	block := &domain.TimeBlock{Criteria: domain.BlockCriteria{PreferredTypes: []string{"movie"}}}

	result := testEngine().Score(movie("a", 90), nil, profile, block, nil)
	if len(result.MandatoryPenalties) != 1 {
		t.Fatalf("penalties = %+v, want 1", result.MandatoryPenalties)
	}
	if result.TotalScore != 85 { // 100 − 15
		t.Errorf("TotalScore = %.2f, want 85", result.TotalScore)
	}
	if result.MandatoryMet() {
		t.Error("MandatoryMet should be false")
	}
}

func TestEngine_KeywordMultiplierPriority(t *testing.T) {
	// A title matching both exclude and include keywords halves the
	// score: exclusion wins.
	profile := &domain.Profile{
		ScoringWeights: weightsOnly(map[string]float64{"type": 100}),
		Criteria: domain.GlobalCriteria{
			ExcludeKeywords: []string{"nightmare"},
			IncludeKeywords: []string{"family"},
		},
	}
	content := movie("Family Nightmare", 90)

	result := testEngine().Score(content, nil, profile, nil, nil)
	if result.KeywordMultiplier != domain.KeywordExcludeMultiplier {
		t.Errorf("KeywordMultiplier = %.1f, want 0.5", result.KeywordMultiplier)
	}
	if result.KeywordMatch != "exclude" {
		t.Errorf("KeywordMatch = %q, want exclude", result.KeywordMatch)
	}
	if result.TotalScore != result.WeightedTotal*0.5 {
		t.Errorf("TotalScore = %.2f, want %.2f", result.TotalScore, result.WeightedTotal*0.5)
	}
}

func TestEngine_DangerousKeywordsMergeIntoExclude(t *testing.T) {
	profile := &domain.Profile{
		ScoringWeights: weightsOnly(map[string]float64{"type": 100}),
		EnhancedCriteria: domain.EnhancedCriteria{
			KeywordsSafety: domain.KeywordsSafety{DangerousKeywords: []string{"massacre"}},
		},
	}
	result := testEngine().Score(movie("The Massacre", 90), nil, profile, nil, nil)
	if result.KeywordMultiplier != domain.KeywordExcludeMultiplier {
		t.Errorf("KeywordMultiplier = %.1f, want 0.5", result.KeywordMultiplier)
	}
}

func TestEngine_RecomputeTotals_SkippedWeightDropped(t *testing.T) {
	// The weighted total must not change with the timing weight once the
	// timing result is skipped: its weight leaves the denominator.
	score := func(timingWeight float64) *domain.ScoringResult {
		profile := &domain.Profile{
			ScoringWeights: weightsOnly(map[string]float64{"type": 10, "timing": timingWeight}),
		}
		block := &domain.TimeBlock{Criteria: domain.BlockCriteria{PreferredTypes: []string{"movie"}}}
		engine := testEngine()
		result := engine.Score(movie("a", 90), nil, profile, block, nil)
		result.Criteria["timing"] = &domain.CriterionResult{Name: "timing", Multiplier: 1, Skipped: true}
		engine.RecomputeTotals(result)
		return result
	}

	a, b := score(10), score(20)
	if a.WeightedTotal != b.WeightedTotal {
		t.Errorf("WeightedTotal changed with skipped timing weight: %.2f vs %.2f", a.WeightedTotal, b.WeightedTotal)
	}
	if a.TotalScore != b.TotalScore {
		t.Errorf("TotalScore changed with skipped timing weight: %.2f vs %.2f", a.TotalScore, b.TotalScore)
	}
	if a.WeightedTotal != 100 { // only type remains, preferred movie = 100
		t.Errorf("WeightedTotal = %.2f, want 100", a.WeightedTotal)
	}
}

func TestEngine_MultiplierScalesWeight(t *testing.T) {
	profile := &domain.Profile{
		ScoringWeights:       weightsOnly(map[string]float64{"type": 10, "genre": 10}),
		CriterionMultipliers: map[string]float64{"genre": 2},
	}
	block := &domain.TimeBlock{Criteria: domain.BlockCriteria{
		PreferredTypes: []string{"movie"},
		AllowedGenres:  []string{"drama"},
	}}
	meta := &domain.ContentMeta{Genres: []string{"drama"}}

	result := testEngine().Score(movie("a", 90), meta, profile, block, nil)
	genre := result.Criteria["genre"]
	if genre.Multiplier != 2 {
		t.Fatalf("genre multiplier = %.1f, want 2", genre.Multiplier)
	}
	// weighted total = (type·10 + genre·10·2) / (10 + 20) · 100⁻¹ scale.
	want := (100*10.0/100 + 85*10.0/100*2) / 30 * 100
	if diff := result.WeightedTotal - want; diff < -0.01 || diff > 0.01 {
		t.Errorf("WeightedTotal = %.2f, want %.2f", result.WeightedTotal, want)
	}
}
