package scoring

import (
	"fmt"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// TimingCriterion scores how well content sits inside its block instance:
// overflow past the block end (last program), late start after the block
// start (first program), and time-of-day appropriateness for the content
// type. Interior programs are handled by post-processing, which replaces
// their timing result with a skipped one excluded from the weighted total.
var TimingCriterion = &Criterion{
	Name:          "timing",
	WeightKey:     "timing",
	DefaultWeight: 20,
	Eval:          evalTiming,
}

func evalTiming(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	details := timingDetails(in)
	score, _ := details["final_score"].(float64)

	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("timing"); !rules.Empty() && in.Block != nil {
		var adjustment float64
		adjustment, outcome = CheckRules(timingRuleTokens(in.Block), rules, in.policy(), MandatoryAny)
		score += adjustment
		details["final_score"] = clamp(score, 0, 100)
	}
	return score, outcome, details
}

// timingDetails computes the timing sub-scores and the audit details map.
func timingDetails(in Input) map[string]any {
	details := map[string]any{
		"is_first_in_block": false,
		"is_last_in_block":  false,
		"final_score":       50.0,
	}

	ctx := in.Context
	if ctx == nil || ctx.CurrentTime.IsZero() || ctx.BlockEnd.IsZero() {
		details["final_score"] = timeOfDayScore(in.Content, in.Block)
		return details
	}

	details["is_first_in_block"] = ctx.IsFirstInBlock
	details["is_last_in_block"] = ctx.IsLastInBlock

	if in.Content.DurationMillis <= 0 {
		return details
	}

	contentEnd := ctx.CurrentTime.Add(in.Content.Duration())

	// Overflow past the block end matters only for the last program of a
	// block instance.
	overflowScore := 100.0
	if ctx.IsLastInBlock {
		overflowMin := contentEnd.Sub(ctx.BlockEnd).Minutes()
		details["overflow_minutes"] = round1(overflowMin)
		if overflowMin > 0 {
			overflowScore = offsetPenaltyScore(overflowMin)
		}
	}

	// Late start after the block start matters only for the first program.
	lateStartScore := 100.0
	if ctx.IsFirstInBlock && !ctx.BlockStart.IsZero() {
		startOffsetMin := ctx.CurrentTime.Sub(ctx.BlockStart).Minutes()
		if startOffsetMin > 0 {
			details["late_start_minutes"] = round1(startOffsetMin)
			lateStartScore = offsetPenaltyScore(startOffsetMin)
		} else if startOffsetMin < 0 {
			details["early_start_minutes"] = round1(-startOffsetMin)
		}
	}

	todScore := timeOfDayScore(in.Content, in.Block)

	var final float64
	if ctx.IsFirstInBlock {
		final = overflowScore*0.4 + lateStartScore*0.3 + todScore*0.3
	} else {
		final = overflowScore*0.7 + todScore*0.3
	}
	details["final_score"] = clamp(final, 0, 100)
	return details
}

// offsetPenaltyScore maps a positive offset in minutes (overflow or late
// start) onto a piecewise-linear penalty curve:
// 0 -> 100, 30 -> ~75, 60 -> ~50, 120 -> ~25, 180+ -> 5.
func offsetPenaltyScore(offsetMin float64) float64 {
	switch {
	case offsetMin <= 0:
		return 100
	case offsetMin <= 30:
		return 100 - offsetMin*0.83
	case offsetMin <= 60:
		return 75 - (offsetMin-30)*0.83
	case offsetMin <= 120:
		return 50 - (offsetMin-60)*0.42
	case offsetMin <= 180:
		return 25 - (offsetMin-120)*0.33
	default:
		return 5
	}
}

// timeOfDayScore rates the content type against the block's start hour.
func timeOfDayScore(content domain.Content, block *domain.TimeBlock) float64 {
	if block == nil {
		return 75
	}
	startHour := blockStartHour(block)

	afternoon := startHour >= 12 && startHour < 18
	evening := startHour >= 18 && startHour < 22
	night := startHour >= 22 || startHour < 6

	switch content.TypeLower() {
	case "movie":
		switch {
		case evening:
			return 100
		case night:
			return 90
		case afternoon:
			return 70
		default:
			return 50
		}
	case "episode":
		if evening || afternoon {
			return 90
		}
		return 75
	case "trailer", "short":
		return 80
	}
	return 75
}

func blockStartHour(block *domain.TimeBlock) int {
	minute, err := parseBlockMinute(block.Start)
	if err != nil {
		return 12
	}
	return minute / 60
}

// timingRuleTokens categorizes the block's start hour for timing_rules:
// the day period plus the precise hour ("20h").
func timingRuleTokens(block *domain.TimeBlock) []string {
	hour := blockStartHour(block)
	var period string
	switch {
	case hour >= 6 && hour < 12:
		period = "morning"
	case hour >= 12 && hour < 18:
		period = "afternoon"
	case hour >= 18 && hour < 22:
		period = "evening"
	default:
		period = "night"
	}
	return []string{period, fmt.Sprintf("%dh", hour)}
}

func round1(v float64) float64 {
	if v < 0 {
		return -round1(-v)
	}
	return float64(int(v*10+0.5)) / 10
}
