package scoring

import (
	"fmt"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// DurationCriterion scores how well the content runtime fits the block's
// duration bounds: maximal at the midpoint of [min, max], decaying toward
// the edges, with proportional penalties outside the bounds.
var DurationCriterion = &Criterion{
	Name:          "duration",
	WeightKey:     "duration",
	DefaultWeight: 15,
	Eval:          evalDuration,
}

func evalDuration(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	score := durationFitScore(in)

	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("duration"); !rules.Empty() {
		tokens := durationRuleTokens(in.Content.DurationMillis)
		var adjustment float64
		adjustment, outcome = CheckRules(tokens, rules, in.policy(), MandatoryAny)
		score += adjustment
	}
	return score, outcome, nil
}

func durationFitScore(in Input) float64 {
	durationMin := in.Content.DurationMinutes()
	if durationMin <= 0 {
		return 0
	}

	minDuration, maxDuration := 1.0, 240.0
	if bc := in.blockCriteria(); bc != nil {
		if bc.MinDurationMin > 0 {
			minDuration = bc.MinDurationMin
		}
		if bc.MaxDurationMin > 0 {
			maxDuration = bc.MaxDurationMin
		}
	} else {
		if in.Profile.Criteria.MinDurationMin > 0 {
			minDuration = in.Profile.Criteria.MinDurationMin
		}
		if in.Profile.Criteria.MaxDurationMin > 0 {
			maxDuration = in.Profile.Criteria.MaxDurationMin
		}
	}

	if durationMin < minDuration {
		return clamp(durationMin/minDuration*50, 0, 100)
	}
	if durationMin > maxDuration {
		excess := durationMin - maxDuration
		penalty := excess / maxDuration * 100
		if penalty > 50 {
			penalty = 50
		}
		return 100 - penalty
	}

	// Inside the bounds: best at the midpoint, linear decay to 70 at the
	// edges.
	ideal := (minDuration + maxDuration) / 2
	halfRange := (maxDuration - minDuration) / 2
	if halfRange <= 0 {
		return 85
	}
	deviation := durationMin - ideal
	if deviation < 0 {
		deviation = -deviation
	}
	fit := 1 - deviation/halfRange
	return 70 + fit*30
}

// durationRuleTokens categorizes a runtime for duration_rules matching.
func durationRuleTokens(durationMillis int64) []string {
	durationMin := float64(durationMillis) / 60000.0
	var category string
	switch {
	case durationMin <= 30:
		category = "short"
	case durationMin <= 60:
		category = "medium"
	case durationMin <= 120:
		category = "long"
	default:
		category = "feature"
	}
	return []string{category, fmt.Sprintf("%dmin", int(durationMin))}
}
