package suite

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	errBaselineTargetInvalid = errors.New("baseline target must be finite")
	errBaselineDeltaNegative = errors.New("baseline delta_pct must not be negative")
)

// Baseline is one recorded reference value with an allowed drift.
type Baseline struct {
	Target   float64 `yaml:"target"`
	DeltaPct float64 `yaml:"delta_pct"`
}

// Bounds returns the acceptance window around the target, ordered so
// lo <= hi regardless of the target's sign.
func (b Baseline) Bounds() (lo, hi float64) {
	a := b.Target * (1 - b.DeltaPct/100)
	z := b.Target * (1 + b.DeltaPct/100)

	return math.Min(a, z), math.Max(a, z)
}

// BaselineSet maps exercise → tag → measurement → stat to a baseline.
type BaselineSet map[string]map[string]map[string]map[string]Baseline

// LoadBaselines reads and validates a baseline file.
func LoadBaselines(path string) (BaselineSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: baseline paths come from the operator
	if err != nil {
		return nil, fmt.Errorf("reading baseline file: %w", err)
	}

	var set BaselineSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	if err := set.validate(); err != nil {
		return nil, fmt.Errorf("validating baselines %s: %w", path, err)
	}

	return set, nil
}

// Lookup finds the baseline for one criterion, reporting false when no
// entry exists at any level of the key.
func (s BaselineSet) Lookup(exercise, tag, measurement, stat string) (Baseline, bool) {
	tags, ok := s[exercise]
	if !ok {
		return Baseline{}, false
	}

	measurements, ok := tags[tag]
	if !ok {
		return Baseline{}, false
	}

	stats, ok := measurements[measurement]
	if !ok {
		return Baseline{}, false
	}

	baseline, ok := stats[stat]

	return baseline, ok
}

func (s BaselineSet) validate() error {
	for exercise, tags := range s {
		for tag, measurements := range tags {
			for measurement, stats := range measurements {
				for stat, baseline := range stats {
					key := fmt.Sprintf("%s/%s/%s/%s", exercise, tag, measurement, stat)

					if math.IsNaN(baseline.Target) || math.IsInf(baseline.Target, 0) {
						return fmt.Errorf("%w: %s", errBaselineTargetInvalid, key)
					}

					if baseline.DeltaPct < 0 {
						return fmt.Errorf("%w: %s", errBaselineDeltaNegative, key)
					}
				}
			}
		}
	}

	return nil
}
