package scoring

import (
	"strings"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// FilterCriterion matches keywords and studios over the title, metadata
// keywords and studio list. Forbidden matches zero the criterion;
// preferred matches stack bonuses on a neutral base.
var FilterCriterion = &Criterion{
	Name:          "filter",
	WeightKey:     "filter",
	DefaultWeight: 20,
	Eval:          evalFilter,
}

// filterLists are the effective keyword/studio filters for a position.
type filterLists struct {
	forbiddenKeywords []string
	preferredKeywords []string
	forbiddenStudios  []string
	preferredStudios  []string
}

func gatherFilterLists(in Input) filterLists {
	var lists filterLists
	if bc := in.blockCriteria(); bc != nil {
		lists.forbiddenKeywords = lowerAll(bc.ForbiddenKeywords)
		lists.preferredKeywords = lowerAll(bc.PreferredKeywords)
		lists.forbiddenStudios = lowerAll(bc.ForbiddenStudios)
		lists.preferredStudios = lowerAll(bc.PreferredStudios)
		// filter_rules values also participate as keyword filters.
		if rules := bc.FilterRules; rules != nil {
			lists.forbiddenKeywords = append(lists.forbiddenKeywords, lowerAll(rules.ForbiddenValues)...)
			lists.preferredKeywords = append(lists.preferredKeywords, lowerAll(rules.PreferredValues)...)
		}
	} else {
		criteria := &in.Profile.Criteria
		lists.forbiddenKeywords = lowerAll(criteria.ForbiddenKeywords)
		lists.preferredKeywords = lowerAll(criteria.PreferredKeywords)
		lists.forbiddenStudios = lowerAll(criteria.ForbiddenStudios)
		lists.preferredStudios = lowerAll(criteria.PreferredStudios)
	}
	return lists
}

func lowerAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

func evalFilter(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	score := filterScore(in)

	// The rule outcome is reported for audit only; the score adjustment
	// is already folded into the keyword/studio matching above.
	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("filter"); !rules.Empty() && in.Meta != nil {
		tokens := append([]string{}, in.Meta.Keywords...)
		tokens = append(tokens, in.Meta.Studios...)
		tokens = append(tokens, strings.Fields(in.Content.Title)...)
		_, outcome = CheckRules(tokens, rules, in.policy(), MandatoryAll)
	}
	return score, outcome, nil
}

func filterScore(in Input) float64 {
	if in.Meta == nil {
		return 50
	}

	keywords := in.Meta.KeywordsLower()
	studios := in.Meta.StudiosLower()
	title := strings.ToLower(in.Content.Title)

	lists := gatherFilterLists(in)

	// Forbidden filters use substring matching and win outright.
	for _, kw := range keywords {
		for _, forbidden := range lists.forbiddenKeywords {
			if strings.Contains(kw, forbidden) {
				return 0
			}
		}
	}
	for _, forbidden := range lists.forbiddenKeywords {
		if strings.Contains(title, forbidden) {
			return 0
		}
	}
	for _, studio := range studios {
		for _, forbidden := range lists.forbiddenStudios {
			if strings.Contains(studio, forbidden) {
				return 0
			}
		}
	}

	score := 50.0

	// Preferred keyword matches stack: +5 each, capped at +50. Each
	// content keyword counts once; unmatched preferred keywords also get
	// a chance against the title.
	if len(lists.preferredKeywords) > 0 {
		matched := 0
		matchedPreferred := map[string]bool{}
		for _, kw := range keywords {
			for _, pref := range lists.preferredKeywords {
				if strings.Contains(kw, pref) {
					matched++
					matchedPreferred[pref] = true
					break
				}
			}
		}
		for _, pref := range lists.preferredKeywords {
			if !matchedPreferred[pref] && strings.Contains(title, pref) {
				matched++
			}
		}
		if matched > 0 {
			bonus := float64(matched) * 5
			if bonus > 50 {
				bonus = 50
			}
			score += bonus
		}
	}

	// Preferred studio matches: +10 each, capped at +20.
	if len(lists.preferredStudios) > 0 {
		matches := 0
		for _, studio := range studios {
			for _, pref := range lists.preferredStudios {
				if strings.Contains(studio, pref) {
					matches++
					break
				}
			}
		}
		if matches > 0 {
			bonus := float64(matches) * 10
			if bonus > 20 {
				bonus = 20
			}
			score += bonus
		}
	}

	return clamp(score, 0, 100)
}
