package scoring

import (
	"fmt"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// RatingCriterion scores the external audience rating against the block's
// minimum and preferred thresholds, with a confidence penalty when the
// vote count falls short of the configured minimum.
var RatingCriterion = &Criterion{
	Name:          "rating",
	WeightKey:     "rating",
	DefaultWeight: 20,
	Eval:          evalRating,
}

func evalRating(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	score := ratingScore(in)

	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("rating"); !rules.Empty() && in.Meta != nil && in.Meta.Rating != nil {
		var adjustment float64
		adjustment, outcome = CheckRules(ratingRuleTokens(*in.Meta.Rating), rules, in.policy(), MandatoryAny)
		score += adjustment
	}
	return score, outcome, nil
}

func ratingScore(in Input) float64 {
	if in.Meta == nil || in.Meta.Rating == nil {
		return 50
	}
	rating := *in.Meta.Rating
	voteCount := in.Meta.VoteCount

	minRating, preferredRating, minVotes := 0.0, 7.0, 0
	if bc := in.blockCriteria(); bc != nil {
		minRating = bc.MinTmdbRating
		if bc.PreferredTmdbRating > 0 {
			preferredRating = bc.PreferredTmdbRating
		}
		minVotes = bc.MinVoteCount
	} else {
		criteria := &in.Profile.Criteria
		minRating = criteria.MinTmdbRating
		if criteria.PreferredTmdbRating > 0 {
			preferredRating = criteria.PreferredTmdbRating
		}
		minVotes = criteria.MinVoteCount
	}

	// Too few votes reduces confidence in the rating, up to -30.
	confidencePenalty := 0.0
	if minVotes > 0 && voteCount < minVotes {
		confidencePenalty = float64(minVotes-voteCount) / float64(minVotes) * 30
		if confidencePenalty > 30 {
			confidencePenalty = 30
		}
	}

	if rating < minRating {
		base := minRating
		if base < 1 {
			base = 1
		}
		return clamp(rating/base*40-confidencePenalty, 0, 100)
	}

	if rating >= preferredRating {
		score := 100 - confidencePenalty
		if score < 70 {
			score = 70
		}
		return score
	}

	span := preferredRating - minRating
	if span > 0 {
		position := (rating - minRating) / span
		return clamp(50+position*40-confidencePenalty, 0, 100)
	}
	return 60 - confidencePenalty
}

// ratingRuleTokens categorizes a rating for rating_rules: the derived
// quality bucket plus the rating itself to one decimal.
func ratingRuleTokens(rating float64) []string {
	var category string
	switch {
	case rating >= 8.0:
		category = "excellent"
	case rating >= 7.0:
		category = "good"
	case rating >= 5.0:
		category = "average"
	default:
		category = "poor"
	}
	return []string{category, fmt.Sprintf("%.1f", rating)}
}
