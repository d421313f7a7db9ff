package stats

import (
	"fmt"
	"strconv"
)

// Op identifies a criterion comparison operator.
type Op string

// Supported criterion operators.
const (
	OpEqual          Op = "equal"
	OpNotEqual       Op = "not_equal"
	OpGreaterThan    Op = "greater_than"
	OpGreaterOrEqual Op = "greater_than_or_equal"
	OpLessThan       Op = "less_than"
	OpLessOrEqual    Op = "less_than_or_equal"
	OpWithin         Op = "within"
)

// opAliases maps accepted operator spellings to canonical forms.
var opAliases = map[string]Op{
	"equal":                 OpEqual,
	"equals":                OpEqual,
	"eq":                    OpEqual,
	"not_equal":             OpNotEqual,
	"not_equals":            OpNotEqual,
	"ne":                    OpNotEqual,
	"greater_than":          OpGreaterThan,
	"gt":                    OpGreaterThan,
	"greater_than_or_equal": OpGreaterOrEqual,
	"gte":                   OpGreaterOrEqual,
	"less_than":             OpLessThan,
	"lt":                    OpLessThan,
	"less_than_or_equal":    OpLessOrEqual,
	"lte":                   OpLessOrEqual,
	"within":                OpWithin,
	"between":               OpWithin,
}

// ParseOp resolves an operator spelling to its canonical form.
func ParseOp(s string) (Op, error) {
	op, ok := opAliases[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
	}

	return op, nil
}

// Criterion is a pass/fail bound on one statistic of one measurement.
// The zero value is not usable; construct with NewCriterion or
// NewRangeCriterion.
type Criterion struct {
	stat  string
	op    Op
	bound float64
	lo    float64
	hi    float64
}

// NewCriterion creates a single-bound criterion such as "max <= 25".
// Operator aliases (lte, gt, ...) are accepted.
func NewCriterion(stat string, op Op, bound float64) (Criterion, error) {
	if stat == "" {
		return Criterion{}, fmt.Errorf("%w: criterion statistic", ErrEmptyName)
	}

	parsed, err := ParseOp(string(op))
	if err != nil {
		return Criterion{}, err
	}

	if parsed == OpWithin {
		return Criterion{}, fmt.Errorf("%w: %q takes two bounds, use NewRangeCriterion", ErrUnknownOp, op)
	}

	return Criterion{stat: stat, op: parsed, bound: bound}, nil
}

// NewRangeCriterion creates an inclusive "within [lo, hi]" criterion.
func NewRangeCriterion(stat string, lo, hi float64) (Criterion, error) {
	if stat == "" {
		return Criterion{}, fmt.Errorf("%w: criterion statistic", ErrEmptyName)
	}

	if lo > hi {
		return Criterion{}, fmt.Errorf("%w: [%s, %s]", ErrInvalidBounds, formatValue(lo), formatValue(hi))
	}

	return Criterion{stat: stat, op: OpWithin, lo: lo, hi: hi}, nil
}

// Stat returns the statistic name the criterion gates on.
func (c Criterion) Stat() string {
	return c.stat
}

// Operator returns the canonical comparison operator.
func (c Criterion) Operator() Op {
	return c.op
}

// Expected renders the configured bound for reports, e.g. "<= 25" or
// "within [10, 20]".
func (c Criterion) Expected() string {
	switch c.op {
	case OpEqual:
		return "== " + formatValue(c.bound)
	case OpNotEqual:
		return "!= " + formatValue(c.bound)
	case OpGreaterThan:
		return "> " + formatValue(c.bound)
	case OpGreaterOrEqual:
		return ">= " + formatValue(c.bound)
	case OpLessThan:
		return "< " + formatValue(c.bound)
	case OpLessOrEqual:
		return "<= " + formatValue(c.bound)
	case OpWithin:
		return fmt.Sprintf("within [%s, %s]", formatValue(c.lo), formatValue(c.hi))
	default:
		return string(c.op)
	}
}

// Check reports whether the actual value satisfies the bound.
func (c Criterion) Check(actual float64) bool {
	switch c.op {
	case OpEqual:
		return actual == c.bound
	case OpNotEqual:
		return actual != c.bound
	case OpGreaterThan:
		return actual > c.bound
	case OpGreaterOrEqual:
		return actual >= c.bound
	case OpLessThan:
		return actual < c.bound
	case OpLessOrEqual:
		return actual <= c.bound
	case OpWithin:
		return actual >= c.lo && actual <= c.hi
	default:
		return false
	}
}

// formatValue renders a float without trailing zero noise.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
