package scoring

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// AgeCriterion checks the content's age rating against the block's (or
// profile's) maximum. Exceeding the maximum zeroes the criterion and emits
// a forbidden outcome, which the engine elevates to a schedule-level
// forbidden violation.
var AgeCriterion = &Criterion{
	Name:          "age",
	WeightKey:     "age",
	DefaultWeight: 20,
	Eval:          evalAge,
}

// ageExceededPenalty is the fixed delta attached to the synthetic
// forbidden outcome when the rating exceeds the block maximum.
const ageExceededPenalty = -200

// Age rating restriction levels. Level 0 = all ages through level 4 =
// adults only. Covers MPAA, US TV, CSA, BBFC and FSK labels plus common
// "not rated" variants.
var ageRatingLevels = map[string]int{
	// US / MPAA
	"g": 0, "pg": 1, "pg-13": 2, "r": 3, "nc-17": 4,
	// US TV
	"tv-g": 0, "tv-y": 0, "tv-y7": 0, "tv-pg": 1, "tv-14": 2, "tv-ma": 3,
	// French (CSA)
	"tp": 0, "tous publics": 0, "u": 0,
	"-10": 1, "+10": 1, "10+": 1, "10": 1,
	"-12": 2, "+12": 2, "12+": 2, "12": 2,
	"-16": 3, "+16": 3, "16+": 3, "16": 3,
	"-18": 4, "+18": 4, "18+": 4, "18": 4,
	// UK (BBFC)
	"uc": 0, "12a": 2, "15": 3,
	// German (FSK)
	"fsk 0": 0, "fsk 6": 1, "fsk 12": 2, "fsk 16": 3, "fsk 18": 4,
	"fsk0": 0, "fsk6": 1, "fsk12": 2, "fsk16": 3, "fsk18": 4,
	// Common variations
	"nr": 2, "unrated": 2, "not rated": 2,
}

var embeddedAge = regexp.MustCompile(`\b(\d{1,2})\b`)

// NormalizeRating strips country prefixes ("fr/U", "mpaa:pg-13") and
// lowercases the rating label.
func NormalizeRating(rating string) string {
	rating = strings.ToLower(strings.TrimSpace(rating))
	if rating == "" {
		return ""
	}
	if idx := strings.LastIndex(rating, "/"); idx >= 0 {
		rating = strings.TrimSpace(rating[idx+1:])
	}
	if idx := strings.LastIndex(rating, ":"); idx >= 0 {
		rating = strings.TrimSpace(rating[idx+1:])
	}
	return rating
}

// RatingLevel maps a rating label to its 0-4 restriction level. Unknown
// ratings parse an embedded age when possible and otherwise default to
// level 2 as a safe middle ground.
func RatingLevel(rating string) int {
	normalized := NormalizeRating(rating)
	if level, ok := ageRatingLevels[normalized]; ok {
		return level
	}

	if m := embeddedAge.FindString(normalized); m != "" {
		age, _ := strconv.Atoi(m)
		switch {
		case age <= 6:
			return 0
		case age <= 10:
			return 1
		case age <= 13:
			return 2
		case age <= 16:
			return 3
		default:
			return 4
		}
	}
	return 2
}

// maxAgeRating resolves the applicable ceiling: block-level first, then
// profile-level.
func maxAgeRating(in Input) string {
	if bc := in.blockCriteria(); bc != nil && bc.MaxAgeRating != "" {
		return bc.MaxAgeRating
	}
	return in.Profile.Criteria.MaxAgeRating
}

func evalAge(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	if in.Meta == nil || in.Meta.AgeRating == "" {
		return 75, nil, nil
	}
	contentRating := in.Meta.AgeRating

	maxRating := maxAgeRating(in)
	if maxRating == "" {
		return 80, nil, nil
	}

	contentLevel := RatingLevel(contentRating)
	maxLevel := RatingLevel(maxRating)

	if contentLevel > maxLevel {
		return 0, &domain.RuleOutcome{
			Type:   domain.RuleForbidden,
			Values: []string{contentRating},
			Delta:  ageExceededPenalty,
		}, nil
	}

	score := 100.0
	if contentLevel == maxLevel {
		score = 90
	}

	// Additional M/F/P rules matched against the raw rating, its
	// normalized form, and its level name.
	var outcome *domain.RuleOutcome
	if rules := in.rulesFor("age"); !rules.Empty() {
		var adjustment float64
		adjustment, outcome = CheckRules(ageRuleTokens(contentRating), rules, in.policy(), MandatoryAny)
		score += adjustment
	}
	return score, outcome, nil
}

var ageLevelNames = map[int]string{0: "G", 1: "PG", 2: "PG-13", 3: "R", 4: "NC-17"}

func ageRuleTokens(rating string) []string {
	tokens := []string{rating}
	if normalized := NormalizeRating(rating); normalized != strings.ToLower(rating) {
		tokens = append(tokens, normalized)
	}
	tokens = append(tokens, ageLevelNames[RatingLevel(rating)])
	return tokens
}
