package programming

import (
	"math/rand"
	"sort"

	"github.com/airgrid-tv/airgrid/internal/app/blocks"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Improve Pass ───────────────────────────────────────────────────────────
// Swap programs in the best iteration with strictly better-scoring
// candidates drawn from the other iterations: same block, no forbidden
// violations, content not already used. Selection among candidates uses
// the same randomness-weighted rule as assembly.

// blockAlternative is a candidate program from another iteration.
type blockAlternative struct {
	program   *domain.ScheduledProgram
	iteration int
}

// alternativesByBlock indexes other iterations' programs by block name,
// sorted by score descending. When excludeForbidden is set, programs with
// forbidden violations are left out.
func alternativesByBlock(best *domain.ProgrammingResult, all []*domain.ProgrammingResult, excludeForbidden bool) map[string][]blockAlternative {
	byBlock := map[string][]blockAlternative{}
	for _, result := range all {
		if result.Iteration == best.Iteration {
			continue
		}
		for _, prog := range result.Programs {
			if excludeForbidden && prog.Score.Forbidden() {
				continue
			}
			byBlock[prog.BlockName] = append(byBlock[prog.BlockName], blockAlternative{
				program:   prog,
				iteration: result.Iteration,
			})
		}
	}
	for name := range byBlock {
		alternatives := byBlock[name]
		sort.SliceStable(alternatives, func(i, j int) bool {
			return alternatives[i].program.Score.Total() > alternatives[j].program.Score.Total()
		})
	}
	return byBlock
}

// usedKeys collects the content keys already present in a result.
func usedKeys(result *domain.ProgrammingResult) map[string]bool {
	used := make(map[string]bool, len(result.Programs))
	for _, prog := range result.Programs {
		used[prog.Content.Key()] = true
	}
	return used
}

// improveBest returns an improved copy of the best result, or the input
// unchanged (IsImproved false) when no improvement is possible.
func (g *Generator) improveBest(best *domain.ProgrammingResult, all []*domain.ProgrammingResult, profile *domain.Profile, schedule *blocks.Schedule, randomness float64, rng *rand.Rand, iteration int) *domain.ProgrammingResult {
	byBlock := alternativesByBlock(best, all, false)
	used := usedKeys(best)

	improved := 0
	newPrograms := append([]*domain.ScheduledProgram(nil), best.Programs...)

	for idx, current := range best.Programs {
		currentScore := current.Score.Total()
		currentKey := current.Content.Key()

		alternatives, ok := byBlock[current.BlockName]
		if !ok {
			continue
		}

		var candidates []blockAlternative
		for _, alt := range alternatives {
			altKey := alt.program.Content.Key()
			if altKey == "" || used[altKey] {
				continue
			}
			if alt.program.Score.Forbidden() {
				continue
			}
			if alt.program.Score.Total() > currentScore {
				candidates = append(candidates, alt)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		selected := selectAlternative(candidates, randomness, rng)
		alt := selected.program

		newPrograms[idx] = &domain.ScheduledProgram{
			Content:           alt.Content,
			Meta:              alt.Meta,
			StartTime:         current.StartTime,
			EndTime:           current.StartTime.Add(alt.Content.Duration()),
			BlockName:         current.BlockName,
			Position:          current.Position,
			Score:             alt.Score,
			IsReplacement:     true,
			ReplacementReason: domain.ReplacedImproved,
			ReplacedTitle:     current.Content.Title,
		}
		used[alt.Content.Key()] = true
		delete(used, currentKey)
		improved++

		g.log.Info().
			Str("replaced", current.Content.Title).
			Float64("old_score", currentScore).
			Str("with", alt.Content.Title).
			Float64("new_score", alt.Score.Total()).
			Int("from_iteration", selected.iteration).
			Msg("program improved")
	}

	if improved == 0 {
		g.log.Info().Msg("no improvements possible")
		return best
	}

	g.finishPass(newPrograms, profile, schedule)

	total, avg := totals(newPrograms)
	return &domain.ProgrammingResult{
		Programs:       newPrograms,
		TotalScore:     total,
		AverageScore:   avg,
		Iteration:      iteration,
		Seed:           best.Seed,
		ForbiddenCount: forbiddenCount(newPrograms),
		IsImproved:     true,
		ImprovedCount:  improved,
	}
}

// selectAlternative applies the randomness-weighted rule to score-sorted
// candidates.
func selectAlternative(candidates []blockAlternative, randomness float64, rng *rand.Rand) blockAlternative {
	if randomness <= 0 || len(candidates) == 1 {
		return candidates[0]
	}

	maxScore := candidates[0].program.Score.Total()
	if maxScore < 1 {
		maxScore = 1
	}
	weights := make([]float64, len(candidates))
	var totalWeight float64
	for i, c := range candidates {
		w := c.program.Score.Total()/maxScore*(1-randomness) + randomness
		weights[i] = w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return candidates[0]
	}

	r := rng.Float64()
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w / totalWeight
		if r <= cumulative {
			return candidates[i]
		}
	}
	return candidates[0]
}

// finishPass is the shared cycle after any replacement pass: consecutive
// timings, block reassignment, full rescore with the new blocks'
// criteria, then timing post-processing.
func (g *Generator) finishPass(programs []*domain.ScheduledProgram, profile *domain.Profile, schedule *blocks.Schedule) {
	recalcConsecutiveTimings(programs)
	g.recalcBlockNames(programs, schedule)
	g.recalcFullScores(programs, profile, schedule)
	g.recalcTimingScores(programs, profile, schedule)
}
