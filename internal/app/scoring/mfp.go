package scoring

import (
	"strings"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── M/F/P Rule Evaluator ───────────────────────────────────────────────────
// The uniform mandatory/forbidden/preferred check shared by every
// criterion. Priority is first-match-wins: forbidden beats mandatory
// beats preferred. Point deltas come from the rule set's own overrides
// when present, else from the effective MFPPolicy.

// MandatoryMode selects the mandatory-list semantics.
type MandatoryMode int

const (
	// MandatoryAll requires every listed value to appear among the
	// content tokens. Used by multi-token criteria (filter, strategy).
	MandatoryAll MandatoryMode = iota

	// MandatoryAny requires the content token set to intersect the
	// listed values. Used where content carries a single categorical
	// token (type, rating category, duration category, age, timing).
	MandatoryAny
)

// CheckRules evaluates lowercased content tokens against a rule set and
// returns the score adjustment plus the triggered outcome, if any.
func CheckRules(tokens []string, rules *domain.CriterionRules, policy domain.MFPPolicy, mode MandatoryMode) (float64, *domain.RuleOutcome) {
	if rules.Empty() {
		return 0, nil
	}

	lowered := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		lowered[strings.ToLower(t)] = true
	}

	// Forbidden — highest priority, first hit wins.
	for _, f := range rules.ForbiddenValues {
		if lowered[strings.ToLower(f)] {
			penalty := policy.ForbiddenDetectedPenalty
			if rules.ForbiddenPenalty != nil {
				penalty = *rules.ForbiddenPenalty
			}
			return penalty, &domain.RuleOutcome{Type: domain.RuleForbidden, Values: []string{f}, Delta: penalty}
		}
	}

	// Mandatory.
	if len(rules.MandatoryValues) > 0 {
		var matched, missing []string
		for _, m := range rules.MandatoryValues {
			if lowered[strings.ToLower(m)] {
				matched = append(matched, m)
			} else {
				missing = append(missing, m)
			}
		}

		missed := len(missing) > 0
		if mode == MandatoryAny {
			missed = len(matched) == 0
		}
		if missed {
			penalty := policy.MandatoryMissedPenalty
			if rules.MandatoryPenalty != nil {
				penalty = *rules.MandatoryPenalty
			}
			values := missing
			if mode == MandatoryAny {
				values = rules.MandatoryValues
			}
			return penalty, &domain.RuleOutcome{Type: domain.RuleMandatory, Values: values, Delta: penalty}
		}

		bonus := policy.MandatoryMatchedBonus
		values := rules.MandatoryValues
		if mode == MandatoryAny {
			values = matched
		}
		return bonus, &domain.RuleOutcome{Type: domain.RuleMandatory, Values: values, Delta: bonus}
	}

	// Preferred — bonus on first hit.
	for _, p := range rules.PreferredValues {
		if lowered[strings.ToLower(p)] {
			bonus := policy.PreferredMatchedBonus
			if rules.PreferredBonus != nil {
				bonus = *rules.PreferredBonus
			}
			return bonus, &domain.RuleOutcome{Type: domain.RulePreferred, Values: []string{p}, Delta: bonus}
		}
	}

	return 0, nil
}
