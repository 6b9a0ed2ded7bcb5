package programming

import (
	"time"

	"github.com/airgrid-tv/airgrid/internal/app/blocks"
	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Block Name Recalculation ───────────────────────────────────────────────

// recalcBlockNames reassigns each program's block from its realized start
// time. Durations shift slots during assembly, so the block a program was
// scheduled for may differ from the block its start time actually falls
// in; realized time is canonical.
func (g *Generator) recalcBlockNames(programs []*domain.ScheduledProgram, schedule *blocks.Schedule) {
	changes := 0
	for _, prog := range programs {
		oldName := prog.BlockName
		if block := schedule.Locate(prog.StartTime); block != nil {
			prog.BlockName = block.Name
		} else {
			prog.BlockName = "Unknown"
		}
		if prog.BlockName != oldName {
			changes++
			g.log.Info().
				Str("title", prog.Content.Title).
				Str("from", oldName).
				Str("to", prog.BlockName).
				Time("start", prog.StartTime).
				Msg("block reassigned")
		}
	}
	if changes > 0 {
		g.log.Info().Int("changes", changes).Msg("block names recalculated")
	}
}

// ─── Block Instance Grouping ────────────────────────────────────────────────

// newInstanceThreshold is how far backwards the start time must jump from
// the previous program's end before a same-named block counts as a new
// instance (multi-day wraparound).
const newInstanceThreshold = time.Hour

// blockInstances groups consecutive program indices into block instances.
// A new instance starts when the block name changes or when the start
// time jumps backwards significantly from the previous program's end —
// same-named blocks on different days must not merge.
func blockInstances(programs []*domain.ScheduledProgram) [][]int {
	var instances [][]int
	for idx, prog := range programs {
		newInstance := idx == 0
		if !newInstance {
			prev := programs[idx-1]
			if prog.BlockName != prev.BlockName {
				newInstance = true
			} else if prog.StartTime.Before(prev.EndTime.Add(-newInstanceThreshold)) {
				newInstance = true
			}
		}
		if newInstance {
			instances = append(instances, []int{idx})
		} else {
			last := len(instances) - 1
			instances[last] = append(instances[last], idx)
		}
	}
	return instances
}

// ─── Timing Recalculation ───────────────────────────────────────────────────

// recalcTimingScores re-evaluates the timing criterion per block instance:
// the first program gets IsFirstInBlock, the last IsLastInBlock, with
// absolute block boundaries rebuilt from the program's local date and the
// block's HH:MM definition. Interior programs receive a skipped timing
// result whose weight leaves the weighted-total denominator.
func (g *Generator) recalcTimingScores(programs []*domain.ScheduledProgram, profile *domain.Profile, schedule *blocks.Schedule) {
	if len(programs) == 0 {
		return
	}

	for _, indices := range blockInstances(programs) {
		firstIdx := indices[0]
		lastIdx := indices[len(indices)-1]

		block := schedule.BlockNamed(programs[firstIdx].BlockName)
		if block == nil {
			continue
		}

		first := programs[firstIdx]
		ctx := &scoring.Context{
			CurrentTime:     first.StartTime,
			BlockStart:      schedule.BlockStart(first.StartTime, block),
			BlockEnd:        schedule.BlockEnd(first.StartTime, block),
			IsFirstInBlock:  true,
			IsLastInBlock:   firstIdx == lastIdx,
			IsScheduleStart: firstIdx == 0,
		}
		g.updateTiming(first, g.engine.Evaluate("timing", first.Content, first.Meta, profile, block.Def, ctx))

		if lastIdx != firstIdx {
			last := programs[lastIdx]
			ctx := &scoring.Context{
				CurrentTime:    last.StartTime,
				BlockStart:     schedule.BlockStart(last.StartTime, block),
				BlockEnd:       schedule.BlockEnd(last.StartTime, block),
				IsFirstInBlock: false,
				IsLastInBlock:  true,
			}
			g.updateTiming(last, g.engine.Evaluate("timing", last.Content, last.Meta, profile, block.Def, ctx))
		}

		if len(indices) > 2 {
			for _, idx := range indices[1 : len(indices)-1] {
				g.updateTiming(programs[idx], skippedTimingResult())
			}
		}
	}
}

// skippedTimingResult marks an interior program's timing as inapplicable.
func skippedTimingResult() *domain.CriterionResult {
	return &domain.CriterionResult{
		Name:       "timing",
		Multiplier: 1,
		Skipped:    true,
		Details: map[string]any{
			"is_first_in_block": false,
			"is_last_in_block":  false,
			"skipped":           true,
		},
	}
}

// updateTiming swaps a program's timing result in and refreshes its
// totals with the engine's aggregation formula.
func (g *Generator) updateTiming(prog *domain.ScheduledProgram, timing *domain.CriterionResult) {
	if prog.Score == nil || timing == nil {
		return
	}
	prog.Score.Criteria["timing"] = timing
	g.engine.RecomputeTotals(prog.Score)
}

// ─── Consecutive Timing Recalculation ───────────────────────────────────────

// recalcConsecutiveTimings rebuilds start/end times after replacements:
// the first program keeps its start, every later program starts when its
// predecessor ends, and ends after its own duration.
func recalcConsecutiveTimings(programs []*domain.ScheduledProgram) {
	for idx, prog := range programs {
		if idx > 0 {
			prog.StartTime = programs[idx-1].EndTime
		}
		prog.EndTime = prog.StartTime.Add(prog.Content.Duration())
	}
}

// ─── Full Score Recalculation ───────────────────────────────────────────────

// recalcFullScores rescoring every program with its current block's
// criteria. Required after replacements shift programs between blocks so
// the new block's forbidden rules become visible to later passes.
func (g *Generator) recalcFullScores(programs []*domain.ScheduledProgram, profile *domain.Profile, schedule *blocks.Schedule) {
	for idx, prog := range programs {
		block := schedule.BlockNamed(prog.BlockName)
		var blockDef *domain.TimeBlock
		ctx := &scoring.Context{
			CurrentTime:     prog.StartTime,
			IsFirstInBlock:  prog.Position == 0,
			IsScheduleStart: idx == 0,
		}
		if block != nil {
			blockDef = block.Def
			ctx.BlockStart = schedule.BlockStart(prog.StartTime, block)
			ctx.BlockEnd = schedule.BlockEnd(prog.StartTime, block)
		}

		newScore := g.engine.Score(prog.Content, prog.Meta, profile, blockDef, ctx)

		if newScore.Forbidden() != prog.Score.Forbidden() {
			g.log.Info().
				Str("title", prog.Content.Title).
				Str("block", prog.BlockName).
				Bool("forbidden", newScore.Forbidden()).
				Msg("forbidden status changed after rescore")
		}
		prog.Score = newScore
	}
}

// forbiddenCount counts programs carrying forbidden violations.
func forbiddenCount(programs []*domain.ScheduledProgram) int {
	count := 0
	for _, p := range programs {
		if p.Score.Forbidden() {
			count++
		}
	}
	return count
}
