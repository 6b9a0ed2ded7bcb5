package scoring

import "github.com/airgrid-tv/airgrid/internal/domain"

// StrategyCriterion applies small bonuses and penalties against the
// profile's programming strategy flags, plus optional per-criterion rules
// evaluated over tokens derived from the content's characteristics.
var StrategyCriterion = &Criterion{
	Name:          "strategy",
	WeightKey:     "strategy",
	DefaultWeight: 20,
	Eval:          evalStrategy,
}

func evalStrategy(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	score := strategyScore(in)

	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("strategy"); !rules.Empty() {
		var adjustment float64
		adjustment, outcome = CheckRules(strategyTokens(in), rules, in.policy(), MandatoryAll)
		score += adjustment
	}
	return score, outcome, nil
}

func strategyScore(in Input) float64 {
	strategies := in.Profile.Strategies
	if !strategies.MaintainSequence && !strategies.MaximizeVariety &&
		!strategies.MarathonMode && !strategies.FillerInsertion.Enabled {
		return 80
	}

	score := 100.0

	if strategies.MaintainSequence && in.Content.TypeLower() != "episode" {
		// Non-episode content breaks series order.
		score -= 5
	}

	if strategies.MaximizeVariety && in.Meta != nil && len(in.Meta.Genres) > 2 {
		score += 5
	}

	if strategies.MarathonMode && in.Meta != nil && len(in.Meta.Collections) > 0 {
		score += 10
	}

	if strategies.FillerInsertion.Enabled &&
		domain.ContainsFold(strategies.FillerTypes(), in.Content.TypeLower()) {
		score += 5
	}

	return score
}

// strategyTokens derives the content characteristics matched by
// strategy_rules: "filler" when the type is a configured filler type,
// "variety" for multi-genre content, "marathon" for collection members,
// plus the content type itself.
func strategyTokens(in Input) []string {
	var tokens []string

	contentType := in.Content.TypeLower()
	if domain.ContainsFold(in.Profile.Strategies.FillerTypes(), contentType) {
		tokens = append(tokens, "filler")
	}
	if in.Meta != nil {
		if len(in.Meta.Genres) >= 2 {
			tokens = append(tokens, "variety")
		}
		if len(in.Meta.Collections) > 0 {
			tokens = append(tokens, "marathon")
		}
	}
	if contentType != "" {
		tokens = append(tokens, contentType)
	}
	return tokens
}
