package scoring

import (
	"sort"
	"strings"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// GenreCriterion applies the unified genre M/F/P logic. Mandatory genres
// use set-inclusion semantics: at least one mandatory genre must appear in
// the content's genres, not all of them.
var GenreCriterion = &Criterion{
	Name:          "genre",
	WeightKey:     "genre",
	DefaultWeight: 25,
	Eval:          evalGenre,
}

// genreSets gathers the effective mandatory/forbidden/preferred genre sets
// from the block (allowed_genres act as mandatory, merged with genre_rules)
// or, without a block, from the profile-wide criteria.
func genreSets(in Input) (mandatory, forbidden, preferred map[string]bool) {
	mandatory = map[string]bool{}
	forbidden = map[string]bool{}
	preferred = map[string]bool{}

	add := func(set map[string]bool, values []string) {
		for _, v := range values {
			if v != "" {
				set[strings.ToLower(v)] = true
			}
		}
	}

	if bc := in.blockCriteria(); bc != nil {
		add(mandatory, bc.AllowedGenres)
		add(preferred, bc.PreferredGenres)
		add(forbidden, bc.ForbiddenGenres)
		if rules := bc.GenreRules; rules != nil {
			add(mandatory, rules.MandatoryValues)
			add(forbidden, rules.ForbiddenValues)
			add(preferred, rules.PreferredValues)
		}
	} else {
		criteria := &in.Profile.Criteria
		add(mandatory, criteria.AllowedGenres)
		add(preferred, criteria.PreferredGenres)
		add(forbidden, criteria.ForbiddenGenres)
	}
	return mandatory, forbidden, preferred
}

func intersect(genres []string, set map[string]bool) []string {
	var hits []string
	for _, g := range genres {
		if set[g] {
			hits = append(hits, g)
		}
	}
	return hits
}

func evalGenre(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	if in.Meta == nil {
		return 50, nil, nil
	}
	genres := in.Meta.GenresLower()
	if len(genres) == 0 {
		return 50, nil, nil
	}

	mandatory, forbidden, preferred := genreSets(in)
	policy := in.policy()

	forbiddenHits := intersect(genres, forbidden)
	if len(forbiddenHits) > 0 {
		return 0, &domain.RuleOutcome{
			Type:   domain.RuleForbidden,
			Values: forbiddenHits,
			Delta:  policy.ForbiddenDetectedPenalty,
		}, nil
	}

	score := 75.0
	var outcome *domain.RuleOutcome

	mandatoryHits := intersect(genres, mandatory)
	if len(mandatory) > 0 {
		if len(mandatoryHits) == 0 {
			// No mandatory genre present. Low base so other criteria can
			// still differentiate, plus a mandatory-missed outcome.
			score = 10
			outcome = &domain.RuleOutcome{
				Type:   domain.RuleMandatory,
				Values: setValues(mandatory),
				Delta:  policy.MandatoryMissedPenalty,
			}
		} else {
			score = 85
			outcome = &domain.RuleOutcome{
				Type:   domain.RuleMandatory,
				Values: mandatoryHits,
				Delta:  policy.MandatoryMatchedBonus,
			}
		}
	}

	preferredHits := intersect(genres, preferred)
	if len(preferredHits) > 0 {
		bonus := float64(len(preferredHits)) * 5
		if bonus > 15 {
			bonus = 15
		}
		score += bonus
		if outcome == nil {
			outcome = &domain.RuleOutcome{
				Type:   domain.RulePreferred,
				Values: preferredHits,
				Delta:  policy.PreferredMatchedBonus,
			}
		}
	}

	// Extra credit for matching more than one mandatory genre.
	if len(mandatoryHits) > 1 {
		extra := float64(len(mandatoryHits)-1) * 3
		if extra > 10 {
			extra = 10
		}
		score += extra
	}

	return score, outcome, nil
}

func setValues(set map[string]bool) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
