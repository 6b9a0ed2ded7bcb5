// Package scoring implements the multi-criterion scoring engine: the
// uniform mandatory/forbidden/preferred rule evaluator, the nine scoring
// criteria, and the weighted-aggregation engine that combines them.
package scoring

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Scoring Context ────────────────────────────────────────────────────────

// Context carries the timing information for scoring one content item at a
// specific schedule position. Zero times mean "unknown".
type Context struct {
	CurrentTime time.Time // when the content would start
	BlockStart  time.Time // absolute start of the containing block instance
	BlockEnd    time.Time // absolute end of the containing block instance

	IsFirstInBlock  bool
	IsLastInBlock   bool
	IsScheduleStart bool
}

// ─── Criterion Inputs ───────────────────────────────────────────────────────

// Input bundles everything a criterion may inspect. Now is the injectable
// clock used by recency and seasonal logic.
type Input struct {
	Content domain.Content
	Meta    *domain.ContentMeta
	Profile *domain.Profile
	Block   *domain.TimeBlock
	Context *Context
	Now     time.Time
}

// blockCriteria returns the block criteria, or nil without a block.
func (in Input) blockCriteria() *domain.BlockCriteria {
	if in.Block == nil {
		return nil
	}
	return &in.Block.Criteria
}

// rulesFor returns the block's per-criterion rule set for a name.
func (in Input) rulesFor(name string) *domain.CriterionRules {
	return in.blockCriteria().RulesFor(name)
}

// policy resolves the effective M/F/P policy.
func (in Input) policy() domain.MFPPolicy {
	return in.Profile.PolicyFor(in.Block)
}

// ─── Criterion ──────────────────────────────────────────────────────────────

// EvalFunc produces the raw score and optional rule outcome for a
// criterion. Details may be nil.
type EvalFunc func(in Input) (score float64, outcome *domain.RuleOutcome, details map[string]any)

// Criterion is one scoring rule. A fixed name, a weight key resolved
// against the profile's scoring weights, a default weight, and a pure
// evaluation function. Inheritance is replaced by this function type;
// registration is the static list owned by the engine.
type Criterion struct {
	Name          string
	WeightKey     string
	DefaultWeight float64
	Eval          EvalFunc
}

// Evaluate runs the criterion and wraps the raw score in a CriterionResult:
// the score clamped to [0,100], weight and multiplier resolved, and the
// weighted products computed.
func (c *Criterion) Evaluate(in Input) *domain.CriterionResult {
	score, outcome, details := c.Eval(in)
	weight := in.Profile.Weight(c.WeightKey, c.DefaultWeight)
	multiplier := in.Profile.Multiplier(c.Name, in.Block)

	clamped := clamp(score, 0, 100)
	weighted := clamped * weight / 100.0
	return &domain.CriterionResult{
		Name:                    c.Name,
		Score:                   clamped,
		Weight:                  weight,
		WeightedScore:           weighted,
		Multiplier:              multiplier,
		MultipliedWeightedScore: weighted * multiplier,
		Details:                 details,
		RuleOutcome:             outcome,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseBlockMinute parses a block boundary "HH:MM" into minutes since
// midnight.
func parseBlockMinute(v string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad block time %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad block hour %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad block minute %q", v)
	}
	return h*60 + m, nil
}
