package stats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reducer folds a stream of raw samples into one named statistic.
// Value reports false until at least one sample has been observed, so
// partial results stay well formed when a pipe aborts early.
type Reducer interface {
	Name() string
	Observe(v float64)
	Value() (float64, bool)
}

// ParseReducer builds a reducer from a statistic name: "max", "min",
// "mean", or "pN" for the N-th percentile (e.g. "p90", "p99.9").
func ParseReducer(name string) (Reducer, error) {
	switch name {
	case "max":
		return NewMax(), nil
	case "min":
		return NewMin(), nil
	case "mean":
		return NewMean(), nil
	}

	if strings.HasPrefix(name, "p") {
		if p, err := strconv.ParseFloat(name[1:], 64); err == nil {
			return NewPercentile(p)
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownReducer, name)
}

// DefaultReducers returns the base statistic set: max, min, mean, p50,
// p90 and p99.
func DefaultReducers() []Reducer {
	p50, _ := NewPercentile(50)
	p90, _ := NewPercentile(90)
	p99, _ := NewPercentile(99)

	return []Reducer{NewMax(), NewMin(), NewMean(), p50, p90, p99}
}

type maxReducer struct {
	max   float64
	count int
}

// NewMax returns a running-maximum reducer named "max".
func NewMax() Reducer {
	return &maxReducer{}
}

func (r *maxReducer) Name() string {
	return "max"
}

func (r *maxReducer) Observe(v float64) {
	if r.count == 0 || v > r.max {
		r.max = v
	}

	r.count++
}

func (r *maxReducer) Value() (float64, bool) {
	return r.max, r.count > 0
}

type minReducer struct {
	min   float64
	count int
}

// NewMin returns a running-minimum reducer named "min".
func NewMin() Reducer {
	return &minReducer{}
}

func (r *minReducer) Name() string {
	return "min"
}

func (r *minReducer) Observe(v float64) {
	if r.count == 0 || v < r.min {
		r.min = v
	}

	r.count++
}

func (r *minReducer) Value() (float64, bool) {
	return r.min, r.count > 0
}

type meanReducer struct {
	sum   float64
	count int
}

// NewMean returns an arithmetic-mean reducer named "mean".
func NewMean() Reducer {
	return &meanReducer{}
}

func (r *meanReducer) Name() string {
	return "mean"
}

func (r *meanReducer) Observe(v float64) {
	r.sum += v
	r.count++
}

func (r *meanReducer) Value() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}

	return r.sum / float64(r.count), true
}

type percentileReducer struct {
	name    string
	p       float64
	samples []float64
}

// NewPercentile returns a reducer for the p-th percentile, 0 < p < 100.
// The statistic is named after the percentile, e.g. "p90" or "p99.9".
func NewPercentile(p float64) (Reducer, error) {
	if p <= 0 || p >= 100 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPercentile, formatValue(p))
	}

	return &percentileReducer{
		name: "p" + formatValue(p),
		p:    p,
	}, nil
}

func (r *percentileReducer) Name() string {
	return r.name
}

func (r *percentileReducer) Observe(v float64) {
	r.samples = append(r.samples, v)
}

// Value computes the percentile over a sorted copy, so observation
// order never affects the result.
func (r *percentileReducer) Value() (float64, bool) {
	if len(r.samples) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(r.samples))
	copy(sorted, r.samples)
	sort.Float64s(sorted)

	index := int(float64(len(sorted)-1) * r.p / 100)

	return sorted[index], true
}
