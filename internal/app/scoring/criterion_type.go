package scoring

import "github.com/airgrid-tv/airgrid/internal/domain"

// TypeCriterion scores how well the content type matches the block's type
// preferences, falling back to the profile-wide allowed/forbidden types.
var TypeCriterion = &Criterion{
	Name:          "type",
	WeightKey:     "type",
	DefaultWeight: 20,
	Eval:          evalType,
}

func evalType(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	score := typeScore(in)

	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("type"); !rules.Empty() {
		var adjustment float64
		adjustment, outcome = CheckRules([]string{string(in.Content.Type)}, rules, in.policy(), MandatoryAny)
		score += adjustment
	}
	return score, outcome, nil
}

func typeScore(in Input) float64 {
	contentType := in.Content.TypeLower()
	if contentType == "" {
		return 50
	}

	if bc := in.blockCriteria(); bc != nil {
		if domain.ContainsFold(bc.ExcludedTypes, contentType) {
			return 0
		}
		if len(bc.PreferredTypes) > 0 && domain.ContainsFold(bc.PreferredTypes, contentType) {
			return 100
		}
		if len(bc.AllowedTypes) > 0 && domain.ContainsFold(bc.AllowedTypes, contentType) {
			return 75
		}
	}

	criteria := &in.Profile.Criteria
	if domain.ContainsFold(criteria.Forbidden.Types, contentType) {
		return 0
	}
	if len(criteria.AllowedTypes) > 0 && !domain.ContainsFold(criteria.AllowedTypes, contentType) {
		return 25
	}
	return 75
}
