package programming

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airgrid-tv/airgrid/internal/app/blocks"
	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Generator Configuration ────────────────────────────────────────────────

// Config parameterizes one generation run.
type Config struct {
	Start         time.Time
	DurationHours int
	Iterations    int
	Randomness    float64 // [0,1]: 0 = always best, 1 = uniform
	Seed          int64   // 0 picks a fresh seed

	ReplaceForbidden bool
	ImproveBest      bool
}

// normalize fills defaults and clamps ranges.
func (c *Config) normalize(now time.Time) {
	if c.Start.IsZero() {
		c.Start = now
	}
	if c.DurationHours <= 0 {
		c.DurationHours = 24
	}
	if c.Iterations < 1 {
		c.Iterations = 1
	}
	if c.Randomness < 0 {
		c.Randomness = 0
	}
	if c.Randomness > 1 {
		c.Randomness = 1
	}
	if c.Seed == 0 {
		c.Seed = rand.Int63n(1 << 31)
	}
}

// ProgressFunc receives progress after each completed iteration.
type ProgressFunc func(iteration, total int, bestScore float64)

// ─── Generator ──────────────────────────────────────────────────────────────

// Generator assembles candidate schedules by greedy weighted selection
// over N seeded iterations, keeps the best, and optionally refines it
// with the improve and replace-forbidden passes.
type Generator struct {
	engine *scoring.Engine
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLocation sets the zone block boundaries are interpreted in.
func WithLocation(loc *time.Location) GeneratorOption {
	return func(g *Generator) { g.loc = loc }
}

// WithClock injects the generator's clock.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the generator's logger.
func WithLogger(log zerolog.Logger) GeneratorOption {
	return func(g *Generator) { g.log = log }
}

// NewGenerator creates a generator around a scoring engine.
func NewGenerator(engine *scoring.Engine, opts ...GeneratorOption) *Generator {
	g := &Generator{
		engine: engine,
		loc:    time.Local,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the full generation: N iterations, best retention, then
// the optional passes. The context is polled at iteration boundaries and
// between passes; cancellation discards partial work.
func (g *Generator) Generate(ctx context.Context, pool []domain.ContentItem, profile *domain.Profile, cfg Config, onProgress ProgressFunc) (*domain.ProgrammingResult, error) {
	cfg.normalize(g.now())

	schedule, err := blocks.New(profile, g.loc)
	if err != nil {
		return nil, err
	}
	if ok, gaps := schedule.ValidateCoverage(); !ok {
		g.log.Warn().Strs("gaps", gaps).Msg("time blocks do not cover the full day")
	}

	filtered := filterForbidden(pool, profile)
	g.log.Info().
		Int("pool", len(pool)).
		Int("filtered_out", len(pool)-len(filtered)).
		Int64("seed", cfg.Seed).
		Msg("generation pool prepared")
	if len(filtered) == 0 {
		return nil, domain.ErrEmptyPool
	}

	mandatoryIDs := mandatoryContentIDs(profile)

	var best *domain.ProgrammingResult
	allResults := make([]*domain.ProgrammingResult, 0, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.ErrRunCancelled
		}

		iterSeed := cfg.Seed + int64(i)
		result := g.generateIteration(filtered, mandatoryIDs, profile, schedule, cfg, i+1, iterSeed)
		allResults = append(allResults, result)

		if best == nil || result.TotalScore > best.TotalScore {
			best = result
			g.log.Info().
				Int("iteration", i+1).
				Float64("total", result.TotalScore).
				Float64("avg", result.AverageScore).
				Msg("new best iteration")
		}
		if onProgress != nil {
			onProgress(i+1, cfg.Iterations, best.TotalScore)
		}
	}

	sort.SliceStable(allResults, func(i, j int) bool {
		return allResults[i].TotalScore > allResults[j].TotalScore
	})
	best.AllIterations = allResults

	originalBestIteration := best.Iteration
	originalBestScore := best.AverageScore

	if cfg.ImproveBest && len(allResults) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, domain.ErrRunCancelled
		}
		rng := rand.New(rand.NewSource(cfg.Seed + int64(cfg.Iterations)))
		improved := g.improveBest(best, allResults, profile, schedule, cfg.Randomness, rng, cfg.Iterations+1)
		if improved.IsImproved {
			improved.OriginalBestIteration = originalBestIteration
			improved.OriginalBestScore = originalBestScore
			allResults = append([]*domain.ProgrammingResult{improved}, allResults...)
			best = improved
			best.AllIterations = allResults
		}
	}

	if cfg.ReplaceForbidden {
		if err := ctx.Err(); err != nil {
			return nil, domain.ErrRunCancelled
		}
		nextIteration := cfg.Iterations + 1
		if best.IsImproved {
			nextIteration = cfg.Iterations + 2
		}
		optimized := g.replaceForbidden(best, allResults, filtered, profile, schedule, nextIteration)
		if optimized.IsOptimized {
			optimized.OriginalBestIteration = originalBestIteration
			optimized.OriginalBestScore = originalBestScore
			allResults = append([]*domain.ProgrammingResult{optimized}, allResults...)
			best = optimized
			best.AllIterations = allResults
		}
	}

	if best.IsOptimized || best.IsImproved {
		best.OriginalBestIteration = originalBestIteration
		best.OriginalBestScore = originalBestScore
	}
	return best, nil
}

// Evaluate scores an externally supplied, already-ordered playlist
// against a profile: programs run back to back from start, each scored
// with its block's criteria, then the block-assignment and timing
// post-processing runs so the breakdown matches a generated schedule's.
func (g *Generator) Evaluate(playlist []domain.ContentItem, profile *domain.Profile, start time.Time) (*domain.ProgrammingResult, error) {
	schedule, err := blocks.New(profile, g.loc)
	if err != nil {
		return nil, err
	}
	if len(playlist) == 0 {
		return nil, domain.ErrEmptyPool
	}
	if start.IsZero() {
		start = g.now()
	}

	currentTime := start
	currentBlockName := ""
	programs := make([]*domain.ScheduledProgram, 0, len(playlist))

	for position, item := range playlist {
		block := schedule.Locate(currentTime)
		var blockDef *domain.TimeBlock
		blockName := "Unknown"
		ctx := &scoring.Context{
			CurrentTime:     currentTime,
			IsScheduleStart: position == 0,
		}
		if block != nil {
			blockDef = block.Def
			blockName = block.Name
			ctx.BlockStart = schedule.BlockStart(currentTime, block)
			ctx.BlockEnd = schedule.BlockEnd(currentTime, block)
			ctx.IsFirstInBlock = block.Name != currentBlockName
			currentBlockName = block.Name
		}

		score := g.engine.Score(item.Content, item.Meta, profile, blockDef, ctx)
		program := &domain.ScheduledProgram{
			Content:   item.Content,
			Meta:      item.Meta,
			StartTime: currentTime,
			EndTime:   currentTime.Add(item.Content.Duration()),
			BlockName: blockName,
			Position:  position,
			Score:     score,
		}
		programs = append(programs, program)
		currentTime = program.EndTime
	}

	g.recalcBlockNames(programs, schedule)
	g.recalcTimingScores(programs, profile, schedule)

	total, avg := totals(programs)
	return &domain.ProgrammingResult{
		Programs:       programs,
		TotalScore:     total,
		AverageScore:   avg,
		Iteration:      1,
		ForbiddenCount: forbiddenCount(programs),
	}, nil
}

// ─── Single Iteration ───────────────────────────────────────────────────────

// scoredItem pairs a candidate with its scoring result.
type scoredItem struct {
	item  domain.ContentItem
	score *domain.ScoringResult
}

func (g *Generator) generateIteration(pool []domain.ContentItem, mandatoryIDs map[string]bool, profile *domain.Profile, schedule *blocks.Schedule, cfg Config, iteration int, seed int64) *domain.ProgrammingResult {
	rng := rand.New(rand.NewSource(seed))

	currentTime := cfg.Start
	endTime := cfg.Start.Add(time.Duration(cfg.DurationHours) * time.Hour)
	position := 0

	usedIDs := make(map[string]bool, len(mandatoryIDs))
	for id := range mandatoryIDs {
		usedIDs[id] = true
	}

	baseAvailable := make([]domain.ContentItem, 0, len(pool))
	for _, item := range pool {
		if !usedIDs[item.Key()] {
			baseAvailable = append(baseAvailable, item)
		}
	}

	var programs []*domain.ScheduledProgram
	currentBlockName := ""
	var blockFiltered []domain.ContentItem

	for currentTime.Before(endTime) && len(baseAvailable) > 0 {
		block := schedule.Locate(currentTime)
		var blockDef *domain.TimeBlock
		var blockStart, blockEnd time.Time
		isFirstInBlock := false
		if block != nil {
			blockDef = block.Def
			blockStart = schedule.BlockStart(currentTime, block)
			blockEnd = schedule.BlockEnd(currentTime, block)
			if block.Name != currentBlockName {
				isFirstInBlock = true
				currentBlockName = block.Name
				blockFiltered = prefilterForBlock(baseAvailable, blockDef, g.now())
				counts := prefilterTierCounts(baseAvailable, blockDef, g.now())
				g.log.Debug().
					Str("block", block.Name).
					Int("tier1", counts[1]).Int("tier2", counts[2]).
					Int("tier3", counts[3]).Int("tier4", counts[4]).
					Msg("block preselection")
				if len(blockFiltered) == 0 {
					g.log.Warn().Str("block", block.Name).Msg("empty preselection, using full pool")
					blockFiltered = append([]domain.ContentItem(nil), baseAvailable...)
				}
			}
		}

		scoringCtx := &scoring.Context{
			CurrentTime:     currentTime,
			BlockStart:      blockStart,
			BlockEnd:        blockEnd,
			IsFirstInBlock:  isFirstInBlock,
			IsScheduleStart: position == 0,
		}

		available := blockFiltered
		if len(available) == 0 {
			available = baseAvailable
		}

		// Forbidden candidates stay in the scored set: they remain
		// visible and, without the replace pass, may still be chosen.
		scored := make([]scoredItem, 0, len(available))
		for _, item := range available {
			score := g.engine.Score(item.Content, item.Meta, profile, blockDef, scoringCtx)
			scored = append(scored, scoredItem{item: item, score: score})
		}
		if len(scored) == 0 {
			break
		}

		selected := selectWithRandomness(scored, cfg.Randomness, rng)
		contentID := selected.item.Key()

		blockName := "Unknown"
		if block != nil {
			blockName = block.Name
		}
		program := &domain.ScheduledProgram{
			Content:   selected.item.Content,
			Meta:      selected.item.Meta,
			StartTime: currentTime,
			EndTime:   currentTime.Add(selected.item.Content.Duration()),
			BlockName: blockName,
			Position:  position,
			Score:     selected.score,
		}
		programs = append(programs, program)

		if selected.score.Forbidden() {
			g.log.Warn().
				Str("title", selected.item.Content.Title).
				Str("block", blockName).
				Int("position", position).
				Msg("forbidden content selected")
		}

		currentTime = program.EndTime
		position++
		usedIDs[contentID] = true
		baseAvailable = removeByKey(baseAvailable, contentID)
		blockFiltered = removeByKey(blockFiltered, contentID)
	}

	// Post-process: block names follow realized start times, then timing
	// is re-evaluated per block instance.
	g.recalcBlockNames(programs, schedule)
	g.recalcTimingScores(programs, profile, schedule)

	total, avg := totals(programs)
	return &domain.ProgrammingResult{
		Programs:     programs,
		TotalScore:   total,
		AverageScore: avg,
		Iteration:    iteration,
		Seed:         seed,
	}
}

// ─── Randomness-Weighted Selection ──────────────────────────────────────────

// selectWithRandomness picks from score-sorted candidates. With zero
// randomness (or a single candidate) the top scorer wins; otherwise each
// candidate's weight blends its relative score with a uniform floor:
// w = (score/max)*(1-r) + r.
func selectWithRandomness(scored []scoredItem, randomness float64, rng *rand.Rand) scoredItem {
	sorted := append([]scoredItem(nil), scored...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].score.Total() > sorted[j].score.Total()
	})

	if randomness <= 0 || len(sorted) == 1 {
		return sorted[0]
	}

	maxScore := sorted[0].score.Total()
	if maxScore < 1 {
		maxScore = 1
	}
	weights := make([]float64, len(sorted))
	var totalWeight float64
	for i, s := range sorted {
		w := s.score.Total()/maxScore*(1-randomness) + randomness
		weights[i] = w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return sorted[0]
	}

	r := rng.Float64()
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w / totalWeight
		if r <= cumulative {
			return sorted[i]
		}
	}
	return sorted[0]
}

// ─── Pool Helpers ───────────────────────────────────────────────────────────

// filterForbidden removes profile-level forbidden content from the pool.
func filterForbidden(pool []domain.ContentItem, profile *domain.Profile) []domain.ContentItem {
	forbidden := &profile.Criteria.Forbidden

	out := make([]domain.ContentItem, 0, len(pool))
	for _, item := range pool {
		if domain.ContainsFold(forbidden.ContentIDs, item.Key()) {
			continue
		}
		if domain.ContainsFold(forbidden.Types, item.Content.TypeLower()) {
			continue
		}
		if titleHasAny(item.Content.Title, forbidden.Keywords) {
			continue
		}
		if item.Meta != nil && genresIntersect(item.Meta.GenresLower(), forbidden.Genres) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func titleHasAny(title string, keywords []string) bool {
	lowered := strings.ToLower(title)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func genresIntersect(genres []string, forbidden []string) bool {
	for _, g := range genres {
		if domain.ContainsFold(forbidden, g) {
			return true
		}
	}
	return false
}

// mandatoryContentIDs returns the profile's mandatory content IDs.
func mandatoryContentIDs(profile *domain.Profile) map[string]bool {
	ids := map[string]bool{}
	for _, id := range profile.Criteria.Mandatory.ContentIDs {
		if id != "" {
			ids[id] = true
		}
	}
	return ids
}

func removeByKey(items []domain.ContentItem, key string) []domain.ContentItem {
	for i, item := range items {
		if item.Key() == key {
			return append(items[:i:i], items[i+1:]...)
		}
	}
	return items
}

func totals(programs []*domain.ScheduledProgram) (total, avg float64) {
	for _, p := range programs {
		total += p.Score.Total()
	}
	if len(programs) > 0 {
		avg = total / float64(len(programs))
	}
	return total, avg
}
