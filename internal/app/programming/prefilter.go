// Package programming implements the schedule generator: block-aware
// pre-filtering of the content pool, N iterations of greedy assembly with
// randomness-weighted selection, post-processing of block assignment and
// first/last-in-block timing, and the optional improve and
// replace-forbidden passes.
package programming

import (
	"sort"
	"strings"
	"time"

	"github.com/airgrid-tv/airgrid/internal/app/scoring"
	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Block Pre-Filter ───────────────────────────────────────────────────────
// Before the greedy loop scores a block's candidates, the pool is
// classified into four tiers by M/F/P match so good candidates are seen
// first:
//
//	Tier 1: at least one preferred match, no mandatory misses, no forbidden
//	Tier 2: no preferred match, no mandatory misses, no forbidden
//	Tier 3: mandatory misses but no forbidden
//	Tier 4: forbidden violations
//
// Hard block constraints (max age rating, duration bounds) count as
// forbidden outcomes here.

// preselection is the tier classification of one pool item for a block.
type preselection struct {
	Tier               int
	Score              float64
	PreferredMatches   []string
	MandatoryMatches   []string
	MandatoryMisses    []string
	ForbiddenViolations []string
}

// mfpRuleSet is one criterion's extracted rule values, lowercased.
type mfpRuleSet struct {
	preferred []string
	mandatory []string
	forbidden []string
}

func newRuleSet(rules *domain.CriterionRules) mfpRuleSet {
	return mfpRuleSet{
		preferred: lowerValues(rules.PreferredValues),
		mandatory: lowerValues(rules.MandatoryValues),
		forbidden: lowerValues(rules.ForbiddenValues),
	}
}

func lowerValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

// extractRules collects the M/F/P rule sets declared on a block's
// criteria, keyed by criterion name. Legacy preferred/forbidden genre
// lists fold into the genre rules.
func extractRules(criteria *domain.BlockCriteria) map[string]mfpRuleSet {
	rules := map[string]mfpRuleSet{}

	add := func(name string, cr *domain.CriterionRules) {
		if !cr.Empty() {
			rules[name] = newRuleSet(cr)
		}
	}
	add("genre", criteria.GenreRules)
	add("bonus", criteria.BonusRules)
	add("rating", criteria.RatingRules)
	add("filter", criteria.FilterRules)
	add("age", criteria.AgeRules)
	add("type", criteria.TypeRules)
	add("duration", criteria.DurationRules)

	if len(criteria.PreferredGenres) > 0 || len(criteria.ForbiddenGenres) > 0 {
		genre := rules["genre"]
		genre.preferred = append(genre.preferred, lowerValues(criteria.PreferredGenres)...)
		genre.forbidden = append(genre.forbidden, lowerValues(criteria.ForbiddenGenres)...)
		rules["genre"] = genre
	}

	return rules
}

// prefilterForBlock orders the pool for a block, tier 1 first. An empty
// rule surface returns the pool unchanged.
func prefilterForBlock(pool []domain.ContentItem, block *domain.TimeBlock, now time.Time) []domain.ContentItem {
	if block == nil {
		return pool
	}
	criteria := &block.Criteria
	rules := extractRules(criteria)

	type classified struct {
		item domain.ContentItem
		pre  preselection
	}
	scored := make([]classified, 0, len(pool))
	for _, item := range pool {
		scored = append(scored, classified{
			item: item,
			pre:  evaluatePreselection(item, criteria, rules, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].pre.Tier != scored[j].pre.Tier {
			return scored[i].pre.Tier < scored[j].pre.Tier
		}
		return scored[i].pre.Score > scored[j].pre.Score
	})

	out := make([]domain.ContentItem, len(scored))
	for i, c := range scored {
		out[i] = c.item
	}
	return out
}

// prefilterTierCounts reports how many items landed in each tier, for
// logging.
func prefilterTierCounts(pool []domain.ContentItem, block *domain.TimeBlock, now time.Time) [5]int {
	var counts [5]int
	if block == nil {
		return counts
	}
	criteria := &block.Criteria
	rules := extractRules(criteria)
	for _, item := range pool {
		pre := evaluatePreselection(item, criteria, rules, now)
		counts[pre.Tier]++
	}
	return counts
}

// evaluatePreselection classifies one item against a block's rules.
func evaluatePreselection(item domain.ContentItem, criteria *domain.BlockCriteria, rules map[string]mfpRuleSet, now time.Time) preselection {
	var pre preselection
	content, meta := item.Content, item.Meta

	match := func(name string, tokens []string, anyMandatory bool) {
		rs, ok := rules[name]
		if !ok {
			return
		}
		tokenSet := map[string]bool{}
		for _, t := range tokens {
			tokenSet[strings.ToLower(t)] = true
		}
		for _, p := range rs.preferred {
			if tokenSet[p] {
				pre.PreferredMatches = append(pre.PreferredMatches, name+":"+p)
			}
		}
		matched := 0
		for _, m := range rs.mandatory {
			if tokenSet[m] {
				matched++
				pre.MandatoryMatches = append(pre.MandatoryMatches, name+":"+m)
			} else if !anyMandatory {
				pre.MandatoryMisses = append(pre.MandatoryMisses, name+":"+m)
			}
		}
		if anyMandatory && len(rs.mandatory) > 0 && matched == 0 {
			pre.MandatoryMisses = append(pre.MandatoryMisses, name+":required")
		}
		for _, f := range rs.forbidden {
			if tokenSet[f] {
				pre.ForbiddenViolations = append(pre.ForbiddenViolations, name+":"+f)
			}
		}
	}

	match("genre", meta.GenresLower(), true)
	match("bonus", bonusCategoryTokens(content, meta, now), true)
	match("rating", ratingCategoryTokens(meta), true)
	match("filter", filterTokens(content, meta), false)
	match("age", ageTokens(meta), true)
	match("type", []string{content.TypeLower()}, true)
	match("duration", durationCategoryTokens(content), true)

	// Hard block constraints count as forbidden.
	if criteria.MaxAgeRating != "" && meta != nil && meta.AgeRating != "" {
		if scoring.RatingLevel(meta.AgeRating) > scoring.RatingLevel(criteria.MaxAgeRating) {
			pre.ForbiddenViolations = append(pre.ForbiddenViolations,
				"age:exceeds_max("+meta.AgeRating+">"+criteria.MaxAgeRating+")")
		}
	}
	durationMin := content.DurationMinutes()
	if criteria.MinDurationMin > 0 && durationMin < criteria.MinDurationMin {
		pre.ForbiddenViolations = append(pre.ForbiddenViolations, "duration:below_min")
	}
	if criteria.MaxDurationMin > 0 && durationMin > criteria.MaxDurationMin {
		pre.ForbiddenViolations = append(pre.ForbiddenViolations, "duration:above_max")
	}

	switch {
	case len(pre.ForbiddenViolations) > 0:
		pre.Tier = 4
	case len(pre.PreferredMatches) > 0 && len(pre.MandatoryMisses) == 0:
		pre.Tier = 1
	case len(pre.MandatoryMisses) == 0:
		pre.Tier = 2
	default:
		pre.Tier = 3
	}

	pre.Score = float64(len(pre.PreferredMatches))*10 +
		float64(len(pre.MandatoryMatches))*5 -
		float64(len(pre.MandatoryMisses))*3
	return pre
}

// ─── Pre-Filter Tokens ──────────────────────────────────────────────────────

// bonusCategoryTokens derives the bonus buckets an item belongs to.
func bonusCategoryTokens(content domain.Content, meta *domain.ContentMeta, now time.Time) []string {
	var tokens []string
	if meta == nil {
		return tokens
	}
	if meta.Budget > 0 && meta.Revenue > meta.Budget*2 {
		tokens = append(tokens, "blockbuster")
	}
	if meta.VoteCount >= 5000 {
		tokens = append(tokens, "popular")
	}
	if len(meta.Collections) > 0 {
		tokens = append(tokens, "collection", "franchise")
	}
	if content.Year > 0 {
		age := now.Year() - content.Year
		if age <= 2 {
			tokens = append(tokens, "recent", "recency")
		} else if age <= 5 {
			tokens = append(tokens, "recent")
		}
		if age >= 20 {
			tokens = append(tokens, "old", "classic", "vintage")
		}
	}
	return tokens
}

func ratingCategoryTokens(meta *domain.ContentMeta) []string {
	if meta == nil || meta.Rating == nil {
		return nil
	}
	switch r := *meta.Rating; {
	case r >= 8.0:
		return []string{"excellent"}
	case r >= 7.0:
		return []string{"good"}
	case r >= 5.0:
		return []string{"average"}
	default:
		return []string{"poor"}
	}
}

// filterTokens is the searchable keyword surface: metadata keywords,
// studios, collections, and title words longer than three characters.
func filterTokens(content domain.Content, meta *domain.ContentMeta) []string {
	var tokens []string
	if meta != nil {
		tokens = append(tokens, meta.KeywordsLower()...)
		tokens = append(tokens, meta.StudiosLower()...)
		for _, c := range meta.Collections {
			tokens = append(tokens, strings.ToLower(c))
		}
	}
	for _, word := range strings.Fields(strings.ToLower(content.Title)) {
		if len(word) > 3 {
			tokens = append(tokens, word)
		}
	}
	return tokens
}

func ageTokens(meta *domain.ContentMeta) []string {
	if meta == nil || meta.AgeRating == "" {
		return nil
	}
	return []string{meta.AgeRating, scoring.NormalizeRating(meta.AgeRating)}
}

func durationCategoryTokens(content domain.Content) []string {
	durationMin := content.DurationMinutes()
	if durationMin <= 0 {
		return nil
	}
	switch {
	case durationMin < 60:
		return []string{"short"}
	case durationMin < 120:
		return []string{"standard"}
	case durationMin < 180:
		return []string{"long"}
	case durationMin < 240:
		return []string{"very_long"}
	default:
		return []string{"epic"}
	}
}
