package scoring

import (
	"fmt"
	"strings"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// BonusCriterion awards contextual bonuses: recency, classic age,
// box-office success, collection membership, popularity and seasonal
// content, each adjustable through the block's bonus_rules M/F/P set.
// Enhanced criteria from the profile add fixed-point adjustments on top.
var BonusCriterion = &Criterion{
	Name:          "bonus",
	WeightKey:     "bonus",
	DefaultWeight: 20,
	Eval:          evalBonus,
}

// Bonus category aliases used for bonus_rules matching.
var (
	categoryRecent      = []string{"recent", "recency"}
	categoryOld         = []string{"old", "classic", "vintage", "retro", "ancient"}
	categoryBlockbuster = []string{"blockbuster", "commercial", "success"}
	categoryCollection  = []string{"collection", "franchise"}
	categoryPopular     = []string{"popular", "trending"}
	categoryHoliday     = []string{"holiday", "seasonal", "christmas", "halloween"}
)

var holidayKeywords = []string{"christmas", "holiday", "thanksgiving", "halloween", "noel", "noël"}

// bonusEval accumulates the bonus computation state.
type bonusEval struct {
	in     Input
	rules  *domain.CriterionRules
	policy domain.MFPPolicy

	score   float64
	applied []string
	earned  []string

	forbiddenDetected []string
}

func evalBonus(in Input) (float64, *domain.RuleOutcome, map[string]any) {
	policy := in.policy()
	e := &bonusEval{
		in:     in,
		rules:  in.rulesFor("bonus"),
		policy: policy,
		score:  50,
	}

	if in.Meta != nil {
		e.releaseYearBonus()
		e.boxOfficeBonus()
		e.collectionBonus()
		e.popularityBonus()
		e.seasonalBonus()
		e.enhancedBonuses()
	}

	outcome := e.checkRules()

	details := map[string]any{
		"bonuses_applied":          e.applied,
		"bonus_categories_earned": e.earned,
	}
	return clamp(e.score, 0, 100), outcome, details
}

// forbiddenIn reports whether any alias of a category is forbidden by the
// bonus rules, and returns the matching aliases.
func (e *bonusEval) forbiddenIn(aliases []string) []string {
	if e.rules == nil {
		return nil
	}
	var hits []string
	for _, a := range aliases {
		if domain.ContainsFold(e.rules.ForbiddenValues, a) {
			hits = append(hits, a)
		}
	}
	return hits
}

func (e *bonusEval) preferredIn(aliases []string) bool {
	if e.rules == nil {
		return false
	}
	for _, a := range aliases {
		if domain.ContainsFold(e.rules.PreferredValues, a) {
			return true
		}
	}
	return false
}

func (e *bonusEval) preferredBonus() float64 {
	if e.rules != nil && e.rules.PreferredBonus != nil {
		return *e.rules.PreferredBonus
	}
	return e.policy.PreferredMatchedBonus
}

// scaledBonus derives a base bonus as a fraction of the preferred bonus.
func (e *bonusEval) scaledBonus(factor float64) float64 {
	return e.policy.PreferredMatchedBonus * factor
}

func (e *bonusEval) award(aliases []string, bonus float64, label string) {
	e.score += bonus
	e.applied = append(e.applied, fmt.Sprintf("%s: %+.0f", label, bonus))
	e.earned = append(e.earned, aliases...)
}

func (e *bonusEval) releaseYearBonus() {
	year := e.in.Content.Year
	if year <= 0 {
		return
	}
	age := e.in.Now.Year() - year

	switch {
	case age <= 2:
		if hits := e.forbiddenIn(categoryRecent); len(hits) > 0 {
			e.forbiddenDetected = append(e.forbiddenDetected, hits...)
			return
		}
		bonus := e.scaledBonus(0.5)
		if e.preferredIn(categoryRecent) {
			bonus = e.preferredBonus()
		}
		e.award(categoryRecent, bonus, fmt.Sprintf("recent release (%d)", year))
	case age <= 5:
		if hits := e.forbiddenIn(categoryRecent); len(hits) > 0 {
			e.forbiddenDetected = append(e.forbiddenDetected, hits...)
			return
		}
		bonus := e.scaledBonus(0.25)
		if e.preferredIn(categoryRecent) {
			bonus = e.preferredBonus()
		}
		e.award(categoryRecent, bonus, fmt.Sprintf("fairly recent (%d)", year))
	case age > 20:
		if hits := e.forbiddenIn(categoryOld); len(hits) > 0 {
			e.forbiddenDetected = append(e.forbiddenDetected, hits...)
			return
		}
		if e.preferredIn(categoryOld) {
			e.award(categoryOld, e.preferredBonus(), fmt.Sprintf("classic (%d)", year))
		}
		// Neither preferred nor forbidden: neutral.
	}
}

func (e *bonusEval) boxOfficeBonus() {
	budget, revenue := e.in.Meta.Budget, e.in.Meta.Revenue
	if budget <= 0 || revenue <= 0 {
		return
	}
	if len(e.forbiddenIn(categoryBlockbuster)) > 0 {
		return
	}
	preferred := e.preferredIn(categoryBlockbuster)

	switch {
	case revenue > budget*3:
		bonus := e.scaledBonus(0.4)
		if preferred {
			bonus = e.preferredBonus()
		}
		e.award(categoryBlockbuster, bonus, "blockbuster (3x+ return)")
	case revenue > budget*2:
		bonus := e.scaledBonus(0.25)
		if preferred {
			bonus = e.preferredBonus()
		}
		e.award(categoryBlockbuster, bonus, "commercial success (2x+ return)")
	case revenue > budget:
		bonus := e.scaledBonus(0.15)
		if preferred {
			bonus = e.preferredBonus()
		}
		e.award(categoryBlockbuster, bonus, "profitable")
	}
}

func (e *bonusEval) collectionBonus() {
	collections := e.in.Meta.Collections
	if len(collections) == 0 {
		return
	}
	if len(e.forbiddenIn(categoryCollection)) > 0 {
		return
	}

	var bonus float64
	if e.preferredIn(categoryCollection) {
		bonus = e.preferredBonus()
	} else {
		bonus = float64(len(collections)) * e.scaledBonus(0.15)
		if limit := e.scaledBonus(0.3); bonus > limit {
			bonus = limit
		}
	}
	names := collections
	if len(names) > 2 {
		names = names[:2]
	}
	e.award(categoryCollection, bonus, fmt.Sprintf("collection (%s)", strings.Join(names, ", ")))
}

func (e *bonusEval) popularityBonus() {
	votes := e.in.Meta.VoteCount
	if len(e.forbiddenIn(categoryPopular)) > 0 {
		return
	}
	preferred := e.preferredIn(categoryPopular)

	switch {
	case votes > 10000:
		bonus := e.scaledBonus(0.3)
		if preferred {
			bonus = e.preferredBonus()
		}
		e.award(categoryPopular, bonus, fmt.Sprintf("very popular (%d votes)", votes))
	case votes > 5000:
		bonus := e.scaledBonus(0.15)
		if preferred {
			bonus = e.preferredBonus()
		}
		e.award(categoryPopular, bonus, fmt.Sprintf("popular (%d votes)", votes))
	}
}

func (e *bonusEval) seasonalBonus() {
	if !e.in.Profile.Strategies.Bonuses.HolidayBonus {
		return
	}
	if len(e.forbiddenIn(categoryHoliday)) > 0 {
		return
	}

	matched := false
	for _, kw := range e.in.Meta.KeywordsLower() {
		for _, holiday := range holidayKeywords {
			if strings.Contains(kw, holiday) {
				matched = true
				break
			}
		}
		if matched {
			break
		}
	}
	if !matched {
		return
	}

	switch e.in.Now.Month() {
	case 10, 11, 12:
		bonus := e.scaledBonus(0.4)
		if e.preferredIn(categoryHoliday) {
			bonus = e.preferredBonus()
		}
		e.award(categoryHoliday, bonus, "seasonal content")
	}
}

// enhancedBonuses applies the profile's enhanced-criteria fixed points:
// keyword safety, preferred collections, preferred actors, educational
// keywords.
func (e *bonusEval) enhancedBonuses() {
	enhanced := e.in.Profile.EnhancedCriteria
	meta := e.in.Meta

	if ks := enhanced.KeywordsSafety; ks.Enabled {
		keywords := meta.KeywordsLower()
		safe := lowerAll(ks.SafeKeywords)
		dangerous := lowerAll(ks.DangerousKeywords)

		for _, kw := range keywords {
			if containsAny(kw, safe) {
				bonus := ks.SafeBonusPoints
				if bonus == 0 {
					bonus = 5
				}
				e.score += bonus
				e.applied = append(e.applied, fmt.Sprintf("safe keyword: %+.0f", bonus))
				break
			}
		}
		for _, kw := range keywords {
			if containsAny(kw, dangerous) {
				penalty := ks.DangerousPenaltyPoints
				if penalty == 0 {
					penalty = -100
				}
				e.score += penalty
				e.applied = append(e.applied, fmt.Sprintf("dangerous keyword: %.0f", penalty))
				break
			}
		}
	}

	if cf := enhanced.CollectionsFranchises; cf.Enabled {
		preferred := lowerAll(cf.PreferredCollections)
		for _, coll := range lowerAll(meta.Collections) {
			if containsEither(coll, preferred) {
				bonus := cf.CollectionBonusPoints
				if bonus == 0 {
					bonus = 10
				}
				e.score += bonus
				e.applied = append(e.applied, fmt.Sprintf("preferred collection: %+.0f", bonus))
				break
			}
		}
	}

	if cc := enhanced.CastCrew; cc.Enabled {
		preferred := lowerAll(cc.PreferredActors)
		cast := lowerAll(meta.Cast)
		if len(cast) > 5 {
			cast = cast[:5]
		}
		for _, actor := range cast {
			if containsEither(actor, preferred) {
				bonus := cc.PopularActorBonus
				if bonus == 0 {
					bonus = 3
				}
				e.score += bonus
				e.applied = append(e.applied, fmt.Sprintf("preferred actor: %+.0f", bonus))
				break
			}
		}
	}

	if ev := enhanced.EducationalValue; ev.Enabled {
		eduKeywords := lowerAll(ev.EducationalKeywords)
		for _, kw := range meta.KeywordsLower() {
			if containsAny(kw, eduKeywords) {
				bonus := ev.BonusPoints
				if bonus == 0 {
					bonus = 5
				}
				e.score += bonus
				e.applied = append(e.applied, fmt.Sprintf("educational content: %+.0f", bonus))
				break
			}
		}
	}
}

// checkRules resolves the M/F/P outcome for the earned categories:
// detected forbidden categories apply the forbidden penalty; configured
// mandatory categories must all be earned; preferred matches are reported
// (their bonus was already applied per category).
func (e *bonusEval) checkRules() *domain.RuleOutcome {
	if len(e.forbiddenDetected) > 0 {
		penalty := e.policy.ForbiddenDetectedPenalty
		if e.rules != nil && e.rules.ForbiddenPenalty != nil {
			penalty = *e.rules.ForbiddenPenalty
		}
		e.score += penalty
		e.applied = append(e.applied,
			fmt.Sprintf("forbidden category (%s): %.0f", strings.Join(e.forbiddenDetected, ", "), penalty))
		return &domain.RuleOutcome{Type: domain.RuleForbidden, Values: e.forbiddenDetected, Delta: penalty}
	}

	if e.rules == nil {
		return nil
	}

	if len(e.rules.MandatoryValues) > 0 {
		var missing []string
		for _, m := range e.rules.MandatoryValues {
			if !domain.ContainsFold(e.earned, m) {
				missing = append(missing, m)
			}
		}
		if len(missing) > 0 {
			penalty := e.policy.MandatoryMissedPenalty
			if e.rules.MandatoryPenalty != nil {
				penalty = *e.rules.MandatoryPenalty
			}
			e.score += penalty
			e.applied = append(e.applied,
				fmt.Sprintf("required bonus missing (%s): %.0f", strings.Join(missing, ", "), penalty))
			return &domain.RuleOutcome{Type: domain.RuleMandatory, Values: missing, Delta: penalty}
		}
	}

	if len(e.rules.PreferredValues) > 0 {
		var matched []string
		for _, p := range e.rules.PreferredValues {
			if domain.ContainsFold(e.earned, p) {
				matched = append(matched, p)
			}
		}
		if len(matched) > 0 {
			return &domain.RuleOutcome{Type: domain.RulePreferred, Values: matched, Delta: e.preferredBonus()}
		}
	}
	return nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// containsEither matches when either string contains the other, the loose
// matching used for collection and actor names.
func containsEither(s string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(s, n) || strings.Contains(n, s) {
			return true
		}
	}
	return false
}
