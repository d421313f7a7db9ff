package stats

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Consumer accumulates named statistics for exactly one measurement
// from a sequence of raw samples. Reducer state is mutated only by the
// core's sequential pipe loop, so no locking is needed.
type Consumer struct {
	log logrus.FieldLogger

	measurement *Measurement
	reducers    map[string]Reducer
	order       []string
	direct      map[string]float64
	directOrder []string
	samples     int
}

// NewConsumer creates a consumer producing the given statistics. With
// no reducers the default set (max, min, mean, p50, p90, p99) is used.
func NewConsumer(log logrus.FieldLogger, reducers ...Reducer) *Consumer {
	if len(reducers) == 0 {
		reducers = DefaultReducers()
	}

	c := &Consumer{
		log:      log.WithField("component", "consumer"),
		reducers: make(map[string]Reducer, len(reducers)),
		order:    make([]string, 0, len(reducers)),
		direct:   make(map[string]float64),
	}

	for _, r := range reducers {
		if _, ok := c.reducers[r.Name()]; ok {
			c.log.WithField("statistic", r.Name()).Warn("duplicate reducer ignored")
			continue
		}

		c.reducers[r.Name()] = r
		c.order = append(c.order, r.Name())
	}

	return c
}

// Bind attaches the measurement definition. It must be called exactly
// once, before the first sample arrives.
func (c *Consumer) Bind(m *Measurement) error {
	if m == nil {
		return ErrNilMeasurement
	}

	if c.measurement != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, c.measurement.Name())
	}

	c.measurement = m

	return nil
}

// Bound reports whether a measurement has been attached.
func (c *Consumer) Bound() bool {
	return c.measurement != nil
}

// Measurement returns the bound measurement, or nil before Bind.
func (c *Consumer) Measurement() *Measurement {
	return c.measurement
}

// Consume feeds one raw sample into every reducer. Non-finite samples
// corrupt reducer state irrecoverably and are rejected.
func (c *Consumer) Consume(v float64) error {
	if c.measurement == nil {
		return ErrNotBound
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidSampleError{Value: v}
	}

	for _, name := range c.order {
		c.reducers[name].Observe(v)
	}

	c.samples++

	return nil
}

// ConsumeStat records an auxiliary statistic directly, outside the
// reducer set, for diagnostic metrics reported alongside the bound
// measurement. Later calls overwrite earlier values for the same name.
func (c *Consumer) ConsumeStat(stat string, v float64) error {
	if c.measurement == nil {
		return ErrNotBound
	}

	if stat == "" {
		return fmt.Errorf("%w: statistic name", ErrEmptyName)
	}

	if _, ok := c.reducers[stat]; ok {
		return fmt.Errorf("%w: %q", ErrReservedStatistic, stat)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InvalidSampleError{Value: v}
	}

	if _, ok := c.direct[stat]; !ok {
		c.directOrder = append(c.directOrder, stat)
	}

	c.direct[stat] = v

	return nil
}

// Samples returns how many raw samples have been consumed.
func (c *Consumer) Samples() int {
	return c.samples
}

// HasStatistic reports whether the consumer can produce the named
// statistic, regardless of how many samples arrived.
func (c *Consumer) HasStatistic(stat string) bool {
	if _, ok := c.reducers[stat]; ok {
		return true
	}

	_, ok := c.direct[stat]

	return ok
}

// Statistics lists producible statistic names in registration order,
// reducers first.
func (c *Consumer) Statistics() []string {
	out := make([]string, 0, len(c.order)+len(c.directOrder))
	out = append(out, c.order...)
	out = append(out, c.directOrder...)

	return out
}

// Results returns the reduced value per statistic. Reducers that have
// seen no samples are omitted, so a partial answer after an early abort
// is still well formed.
func (c *Consumer) Results() map[string]float64 {
	out := make(map[string]float64, len(c.reducers)+len(c.direct))

	for name, r := range c.reducers {
		if v, ok := r.Value(); ok {
			out[name] = v
		}
	}

	for name, v := range c.direct {
		out[name] = v
	}

	return out
}
