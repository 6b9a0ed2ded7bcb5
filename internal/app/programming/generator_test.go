package programming

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return testNow }
}

func testGenerator() *Generator {
	engine := scoring.NewEngine(scoring.WithClock(fixedClock()))
	return NewGenerator(engine,
		WithLocation(time.UTC),
		WithClock(fixedClock()),
	)
}

func item(id string, durationMin int, genres ...string) domain.ContentItem {
	it := domain.ContentItem{
		Content: domain.Content{
			ID:             id,
			Title:          id,
			Type:           domain.TypeMovie,
			DurationMillis: int64(durationMin) * 60000,
		},
	}
	if len(genres) > 0 {
		it.Meta = &domain.ContentMeta{Genres: genres}
	}
	return it
}

func ratedItem(id string, durationMin int, rating float64) domain.ContentItem {
	it := item(id, durationMin)
	it.Meta = &domain.ContentMeta{Rating: &rating}
	return it
}

func fullDayProfile(weights map[string]float64) *domain.Profile {
	return &domain.Profile{
		Name: "test",
		TimeBlocks: []domain.TimeBlock{
			{Name: "all_day", Start: "00:00", End: "23:59"},
		},
		ScoringWeights: weights,
	}
}

func zeroWeightsExcept(entries map[string]float64) map[string]float64 {
	weights := map[string]float64{
		"type": 0, "duration": 0, "genre": 0, "timing": 0, "strategy": 0,
		"age": 0, "rating": 0, "filter": 0, "bonus": 0,
	}
	for k, v := range entries {
		weights[k] = v
	}
	return weights
}

func programIDs(result *domain.ProgrammingResult) []string {
	ids := make([]string, len(result.Programs))
	for i, p := range result.Programs {
		ids[i] = p.Content.ID
	}
	return ids
}

// ─── Single Block, Deterministic (S1) ───────────────────────────────────────

func TestGenerate_SingleBlockDeterministic(t *testing.T) {
	pool := []domain.ContentItem{
		item("m1", 90),
		item("m2", 90),
		item("horror", 100, "horror"),
		item("m3", 110),
		item("m4", 120),
		item("m5", 60),
	}
	profile := fullDayProfile(zeroWeightsExcept(map[string]float64{
		"type": 20, "genre": 20, "duration": 10,
	}))
	profile.Criteria.Forbidden.Genres = []string{"horror"}

	start := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	result, err := testGenerator().Generate(context.Background(), pool, profile, Config{
		Start:      start,
		Iterations: 1,
		Randomness: 0,
		Seed:       1,
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(result.Programs) != 5 {
		t.Fatalf("programs = %d, want 5", len(result.Programs))
	}
	for _, p := range result.Programs {
		if p.Content.ID == "horror" {
			t.Error("forbidden horror content was scheduled")
		}
	}
	if total := result.TotalDurationMinutes(); total != 470 {
		t.Errorf("total duration = %.0f, want 470", total)
	}

	// Coverage: the first program starts at the start instant, every
	// later program starts when its predecessor ends.
	if !result.Programs[0].StartTime.Equal(start) {
		t.Errorf("first start = %v, want %v", result.Programs[0].StartTime, start)
	}
	for i := 1; i < len(result.Programs); i++ {
		if !result.Programs[i].StartTime.Equal(result.Programs[i-1].EndTime) {
			t.Errorf("program %d not contiguous", i)
		}
	}
	for i, p := range result.Programs {
		if p.Position != i {
			t.Errorf("position %d = %d", i, p.Position)
		}
	}
}

// ─── No Duplicates ──────────────────────────────────────────────────────────

func TestGenerate_NoDuplicateContent(t *testing.T) {
	pool := make([]domain.ContentItem, 0, 10)
	for i := 0; i < 10; i++ {
		pool = append(pool, ratedItem(string(rune('a'+i)), 60, float64(i)))
	}
	profile := fullDayProfile(zeroWeightsExcept(map[string]float64{"rating": 50}))

	result, err := testGenerator().Generate(context.Background(), pool, profile, Config{
		Start:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Iterations: 2,
		Randomness: 0.5,
		Seed:       7,
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	seen := map[string]bool{}
	for _, p := range result.Programs {
		if seen[p.Content.ID] {
			t.Errorf("duplicate content %q", p.Content.ID)
		}
		seen[p.Content.ID] = true
	}
}

// ─── Determinism ────────────────────────────────────────────────────────────

func TestGenerate_Deterministic(t *testing.T) {
	mkPool := func() []domain.ContentItem {
		return []domain.ContentItem{
			ratedItem("a", 90, 9), ratedItem("b", 60, 8.2), ratedItem("c", 110, 7.5),
			ratedItem("d", 45, 6.8), ratedItem("e", 120, 6.1), ratedItem("f", 75, 5.4),
			ratedItem("g", 100, 4.7), ratedItem("h", 80, 4.0),
		}
	}
	profile := fullDayProfile(zeroWeightsExcept(map[string]float64{"rating": 50, "type": 20}))
	cfg := Config{
		Start:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Iterations: 5,
		Randomness: 0.3,
		Seed:       42,
	}

	first, err := testGenerator().Generate(context.Background(), mkPool(), profile, cfg, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := testGenerator().Generate(context.Background(), mkPool(), profile, cfg, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	firstIDs, secondIDs := programIDs(first), programIDs(second)
	if len(firstIDs) != len(secondIDs) {
		t.Fatalf("program counts differ: %d vs %d", len(firstIDs), len(secondIDs))
	}
	for i := range firstIDs {
		if firstIDs[i] != secondIDs[i] {
			t.Errorf("program %d differs: %q vs %q", i, firstIDs[i], secondIDs[i])
		}
		a, b := first.Programs[i].Score.TotalScore, second.Programs[i].Score.TotalScore
		if a != b {
			t.Errorf("program %d score differs: %.4f vs %.4f", i, a, b)
		}
	}
	if first.TotalScore != second.TotalScore {
		t.Errorf("totals differ: %.4f vs %.4f", first.TotalScore, second.TotalScore)
	}
}

// ─── Randomness Limits ──────────────────────────────────────────────────────

func TestGenerate_ZeroRandomnessPicksBest(t *testing.T) {
	pool := []domain.ContentItem{
		ratedItem("low", 60, 4),
		ratedItem("top", 60, 9),
		ratedItem("mid", 60, 7),
	}
	profile := fullDayProfile(zeroWeightsExcept(map[string]float64{"rating": 100}))

	result, err := testGenerator().Generate(context.Background(), pool, profile, Config{
		Start:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Iterations: 1,
		Randomness: 0,
		Seed:       3,
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{"top", "mid", "low"}
	got := programIDs(result)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order = %v, want %v", got, want)
			break
		}
	}
}

func TestSelectWithRandomness_UniformAtOne(t *testing.T) {
	scored := []scoredItem{
		{item: item("a", 60), score: &domain.ScoringResult{TotalScore: 100}},
		{item: item("b", 60), score: &domain.ScoringResult{TotalScore: 50}},
		{item: item("c", 60), score: &domain.ScoringResult{TotalScore: 10}},
		{item: item("d", 60), score: &domain.ScoringResult{TotalScore: 0}},
	}
	rng := rand.New(rand.NewSource(1))
	counts := map[string]int{}
	const draws = 4000
	for i := 0; i < draws; i++ {
		picked := selectWithRandomness(scored, 1.0, rng)
		counts[picked.item.Content.ID]++
	}
	for id, count := range counts {
		if count < 850 || count > 1150 {
			t.Errorf("candidate %q drawn %d times, want ≈%d", id, count, draws/4)
		}
	}
}

func TestSelectWithRandomness_ZeroPicksTop(t *testing.T) {
	scored := []scoredItem{
		{item: item("low", 60), score: &domain.ScoringResult{TotalScore: 10}},
		{item: item("high", 60), score: &domain.ScoringResult{TotalScore: 90}},
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		if picked := selectWithRandomness(scored, 0, rng); picked.item.Content.ID != "high" {
			t.Fatalf("picked %q, want high", picked.item.Content.ID)
		}
	}
}

// ─── Overnight Block (S2) ───────────────────────────────────────────────────

func TestGenerate_OvernightBlock(t *testing.T) {
	profile := &domain.Profile{
		Name: "night",
		TimeBlocks: []domain.TimeBlock{
			{Name: "late_night", Start: "22:00", End: "02:00"},
		},
		ScoringWeights: zeroWeightsExcept(map[string]float64{"type": 20, "timing": 20}),
	}
	pool := []domain.ContentItem{
		item("p1", 70), item("p2", 70), item("p3", 70), item("p4", 70),
	}

	start := time.Date(2025, 1, 10, 22, 0, 0, 0, time.UTC)
	result, err := testGenerator().Generate(context.Background(), pool, profile, Config{
		Start:      start,
		Iterations: 1,
		Randomness: 0,
		Seed:       1,
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Programs) != 4 {
		t.Fatalf("programs = %d, want 4", len(result.Programs))
	}

	// All programs land in the overnight block, spanning midnight.
	for _, p := range result.Programs {
		if p.BlockName != "late_night" {
			t.Errorf("program %d block = %q", p.Position, p.BlockName)
		}
	}
	last := result.Programs[3]
	if last.StartTime.Day() == start.Day() {
		t.Error("expected the schedule to cross midnight")
	}

	timing := func(p *domain.ScheduledProgram) *domain.CriterionResult {
		return p.Score.Criteria["timing"]
	}

	if got := timing(result.Programs[0]).Details["is_first_in_block"]; got != true {
		t.Error("first program should carry is_first_in_block")
	}
	if got := timing(last).Details["is_last_in_block"]; got != true {
		t.Error("last program should carry is_last_in_block")
	}
	for _, idx := range []int{1, 2} {
		if !timing(result.Programs[idx]).Skipped {
			t.Errorf("interior program %d timing should be skipped", idx)
		}
	}

	// 22:00 + 4×70min ends 02:40: 40 minutes of overflow recorded.
	if got := timing(last).Details["overflow_minutes"]; got != 40.0 {
		t.Errorf("overflow_minutes = %v, want 40", got)
	}
}

// ─── Skipped Timing Accounting ──────────────────────────────────────────────

func TestGenerate_SkippedTimingWeightDropped(t *testing.T) {
	run := func(timingWeight float64) *domain.ProgrammingResult {
		pool := []domain.ContentItem{
			ratedItem("a", 60, 9), ratedItem("b", 60, 7), ratedItem("c", 60, 5),
		}
		profile := fullDayProfile(zeroWeightsExcept(map[string]float64{
			"rating": 100, "timing": timingWeight,
		}))
		result, err := testGenerator().Generate(context.Background(), pool, profile, Config{
			Start:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
			Iterations: 1,
			Randomness: 0,
			Seed:       1,
		}, nil)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return result
	}

	a, b := run(10), run(20)
	if len(a.Programs) != 3 || len(b.Programs) != 3 {
		t.Fatalf("programs = %d/%d, want 3", len(a.Programs), len(b.Programs))
	}
	middleA, middleB := a.Programs[1], b.Programs[1]
	if !middleA.Score.Criteria["timing"].Skipped {
		t.Fatal("middle program timing should be skipped")
	}
	if middleA.Score.WeightedTotal != middleB.Score.WeightedTotal {
		t.Errorf("middle WeightedTotal changed with timing weight: %.2f vs %.2f",
			middleA.Score.WeightedTotal, middleB.Score.WeightedTotal)
	}
}

// ─── Cancellation ───────────────────────────────────────────────────────────

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := []domain.ContentItem{item("a", 60)}
	profile := fullDayProfile(nil)
	_, err := testGenerator().Generate(ctx, pool, profile, Config{Iterations: 3, Seed: 1}, nil)
	if err != domain.ErrRunCancelled {
		t.Fatalf("err = %v, want ErrRunCancelled", err)
	}
}

// ─── Progress Reporting ─────────────────────────────────────────────────────

func TestGenerate_ProgressCallback(t *testing.T) {
	pool := []domain.ContentItem{item("a", 60), item("b", 60)}
	profile := fullDayProfile(nil)

	var calls []int
	_, err := testGenerator().Generate(context.Background(), pool, profile, Config{
		Start:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Iterations: 3,
		Seed:       1,
	}, func(iteration, total int, best float64) {
		calls = append(calls, iteration)
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(calls) != 3 || calls[0] != 1 || calls[2] != 3 {
		t.Errorf("progress calls = %v, want [1 2 3]", calls)
	}
}

// ─── Playlist Evaluation ────────────────────────────────────────────────────

func TestEvaluate_ExternalPlaylist(t *testing.T) {
	playlist := []domain.ContentItem{
		ratedItem("x", 60, 8), ratedItem("y", 45, 6), ratedItem("z", 90, 7),
	}
	profile := fullDayProfile(zeroWeightsExcept(map[string]float64{"rating": 50, "timing": 10}))

	start := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	result, err := testGenerator().Evaluate(playlist, profile, start)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Programs) != 3 {
		t.Fatalf("programs = %d, want 3", len(result.Programs))
	}
	// Order preserved, times contiguous.
	if got := programIDs(result); got[0] != "x" || got[1] != "y" || got[2] != "z" {
		t.Errorf("order = %v, want [x y z]", got)
	}
	if !result.Programs[1].StartTime.Equal(result.Programs[0].EndTime) {
		t.Error("playlist times not contiguous")
	}
	if !result.Programs[1].Score.Criteria["timing"].Skipped {
		t.Error("interior playlist program timing should be skipped")
	}
}

// ─── Empty Pool ─────────────────────────────────────────────────────────────

func TestGenerate_AllForbiddenPoolFails(t *testing.T) {
	pool := []domain.ContentItem{item("h1", 60, "horror"), item("h2", 60, "horror")}
	profile := fullDayProfile(nil)
	profile.Criteria.Forbidden.Genres = []string{"horror"}

	_, err := testGenerator().Generate(context.Background(), pool, profile, Config{Iterations: 1, Seed: 1}, nil)
	if err != domain.ErrEmptyPool {
		t.Fatalf("err = %v, want ErrEmptyPool", err)
	}
}
