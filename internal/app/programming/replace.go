package programming

import (
	"github.com/airgrid-tv/airgrid/internal/app/blocks"
	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Replace-Forbidden Pass ─────────────────────────────────────────────────
// Substitute rule-violating programs in the best result. For each
// forbidden program, first try a non-forbidden same-block program from
// another iteration whose content is unused; failing that, fall back to
// the block-pre-filtered pool and take the highest-scoring clean item,
// rescored at the original slot time.

// replaceForbidden returns an optimized copy of the best result, or the
// input unchanged (IsOptimized false) when nothing could be replaced.
func (g *Generator) replaceForbidden(best *domain.ProgrammingResult, all []*domain.ProgrammingResult, pool []domain.ContentItem, profile *domain.Profile, schedule *blocks.Schedule, iteration int) *domain.ProgrammingResult {
	var forbiddenIdx []int
	for idx, prog := range best.Programs {
		if prog.Score.Forbidden() {
			forbiddenIdx = append(forbiddenIdx, idx)
		}
	}
	if len(forbiddenIdx) == 0 {
		g.log.Info().Msg("no forbidden programs to replace")
		return best
	}
	g.log.Info().Int("count", len(forbiddenIdx)).Msg("replacing forbidden programs")

	byBlock := alternativesByBlock(best, all, true)
	used := usedKeys(best)

	replaced := 0
	newPrograms := append([]*domain.ScheduledProgram(nil), best.Programs...)

	for _, idx := range forbiddenIdx {
		target := newPrograms[idx]
		targetKey := target.Content.Key()

		replacement := g.replacementFromIterations(target, byBlock, used)
		if replacement == nil {
			replacement = g.replacementFromPool(target, idx, newPrograms, pool, profile, schedule, used)
		}
		if replacement == nil {
			g.log.Warn().
				Str("title", target.Content.Title).
				Str("block", target.BlockName).
				Msg("no replacement found for forbidden program")
			continue
		}

		newPrograms[idx] = replacement
		used[replacement.Content.Key()] = true
		delete(used, targetKey)
		replaced++
	}

	if replaced == 0 {
		return best
	}
	g.log.Info().Int("replaced", replaced).Int("forbidden", len(forbiddenIdx)).Msg("forbidden replacement done")

	g.finishPass(newPrograms, profile, schedule)

	total, avg := totals(newPrograms)
	return &domain.ProgrammingResult{
		Programs:       newPrograms,
		TotalScore:     total,
		AverageScore:   avg,
		Iteration:      iteration,
		Seed:           best.Seed,
		ForbiddenCount: forbiddenCount(newPrograms),
		IsOptimized:    true,
		ReplacedCount:  replaced,
	}
}

// replacementFromIterations takes the best unused non-forbidden program
// from another iteration in the same block.
func (g *Generator) replacementFromIterations(target *domain.ScheduledProgram, byBlock map[string][]blockAlternative, used map[string]bool) *domain.ScheduledProgram {
	for _, alt := range byBlock[target.BlockName] {
		altKey := alt.program.Content.Key()
		if altKey == "" || used[altKey] {
			continue
		}
		g.log.Info().
			Str("replaced", target.Content.Title).
			Str("with", alt.program.Content.Title).
			Int("from_iteration", alt.iteration).
			Msg("forbidden program replaced from other iteration")
		return &domain.ScheduledProgram{
			Content:           alt.program.Content,
			Meta:              alt.program.Meta,
			StartTime:         target.StartTime,
			EndTime:           target.StartTime.Add(alt.program.Content.Duration()),
			BlockName:         target.BlockName,
			Position:          target.Position,
			Score:             alt.program.Score,
			IsReplacement:     true,
			ReplacementReason: domain.ReplacedForbidden,
			ReplacedTitle:     target.Content.Title,
		}
	}
	return nil
}

// replacementFromPool falls back to the block-pre-filtered pool: the
// highest-scoring unused item that scores clean at the original slot time.
func (g *Generator) replacementFromPool(target *domain.ScheduledProgram, idx int, programs []*domain.ScheduledProgram, pool []domain.ContentItem, profile *domain.Profile, schedule *blocks.Schedule, used map[string]bool) *domain.ScheduledProgram {
	blockDef := profile.BlockByName(target.BlockName)
	filtered := prefilterForBlock(pool, blockDef, g.now())

	var bestItem *domain.ContentItem
	var bestScore *domain.ScoringResult
	for i, item := range filtered {
		key := item.Key()
		if key == "" || used[key] {
			continue
		}

		block := schedule.Locate(target.StartTime)
		var scoreBlockDef *domain.TimeBlock
		ctx := &scoring.Context{
			CurrentTime:     target.StartTime,
			IsFirstInBlock:  idx == 0 || programs[idx-1].BlockName != target.BlockName,
			IsScheduleStart: idx == 0,
		}
		if block != nil {
			scoreBlockDef = block.Def
			ctx.BlockStart = schedule.BlockStart(target.StartTime, block)
			ctx.BlockEnd = schedule.BlockEnd(target.StartTime, block)
		}

		score := g.engine.Score(item.Content, item.Meta, profile, scoreBlockDef, ctx)
		if score.Forbidden() {
			continue
		}
		if bestScore == nil || score.Total() > bestScore.Total() {
			bestItem, bestScore = &filtered[i], score
		}
	}
	if bestItem == nil {
		return nil
	}

	g.log.Info().
		Str("replaced", target.Content.Title).
		Str("with", bestItem.Content.Title).
		Msg("forbidden program replaced from pre-filtered pool")
	return &domain.ScheduledProgram{
		Content:           bestItem.Content,
		Meta:              bestItem.Meta,
		StartTime:         target.StartTime,
		EndTime:           target.StartTime.Add(bestItem.Content.Duration()),
		BlockName:         target.BlockName,
		Position:          target.Position,
		Score:             bestScore,
		IsReplacement:     true,
		ReplacementReason: domain.ReplacedForbidden,
		ReplacedTitle:     target.Content.Title,
	}
}
