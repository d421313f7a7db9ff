package stats

import "fmt"

// Measurement declares a named, unit-tagged metric and its pass
// criteria. A measurement with no criteria submits statistics but never
// fails a run. Immutable after creation.
type Measurement struct {
	name     string
	unit     string
	criteria []Criterion
	tags     map[string]string
}

// NewMeasurement creates a measurement definition. Criteria statistic
// names are validated at evaluation time, once the consumer's reducers
// are known.
func NewMeasurement(name, unit string, criteria []Criterion, tags map[string]string) (*Measurement, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: measurement name", ErrEmptyName)
	}

	m := &Measurement{
		name:     name,
		unit:     unit,
		criteria: make([]Criterion, len(criteria)),
		tags:     make(map[string]string, len(tags)),
	}

	copy(m.criteria, criteria)

	for k, v := range tags {
		m.tags[k] = v
	}

	return m, nil
}

// Name returns the measurement name.
func (m *Measurement) Name() string {
	return m.name
}

// Unit returns the display unit.
func (m *Measurement) Unit() string {
	return m.unit
}

// Criteria returns a copy of the pass criteria in declaration order.
func (m *Measurement) Criteria() []Criterion {
	out := make([]Criterion, len(m.criteria))
	copy(out, m.criteria)

	return out
}

// Tags returns a copy of the free-form metadata tags.
func (m *Measurement) Tags() map[string]string {
	out := make(map[string]string, len(m.tags))
	for k, v := range m.tags {
		out[k] = v
	}

	return out
}
