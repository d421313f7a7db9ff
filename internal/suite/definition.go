// Package suite loads YAML exercise definitions and assembles them into
// runnable measurement cores. A definition declares what to measure
// (workload commands, sample sources, pass criteria) as opposed to how
// the pipeline executes it (see stats.Core).
package suite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/perfgate/internal/metrics"
	"github.com/ethpandaops/perfgate/internal/stats"
)

var (
	errSuiteNameRequired       = errors.New("suite name is required")
	errIterationsRequired      = errors.New("iterations must be at least 1")
	errNoPipes                 = errors.New("suite must define at least one pipe")
	errPipeTagRequired         = errors.New("pipe tag is required")
	errWorkloadRequired        = errors.New("pipe workload is required")
	errCommandRequired         = errors.New("command must not be empty")
	errSampleRequired          = errors.New("pipe sample is required")
	errUnknownSampleSource     = errors.New("unknown sample source")
	errMetricsPathRequired     = errors.New("metrics_file sample requires a path")
	errMetricsFieldRequired    = errors.New("metrics_file sample requires a field")
	errMeasurementRequired     = errors.New("pipe measurement is required")
	errMeasurementNameRequired = errors.New("measurement name is required")
	errCriterionStatRequired   = errors.New("criterion stat is required")
	errCriterionShapeInvalid   = errors.New("criterion needs exactly one of op+bound, op within+lo+hi, or baseline")
	errAuxNameRequired         = errors.New("auxiliary stat name is required")
	errAuxFieldRequired        = errors.New("auxiliary stat field is required")
	errAuxNeedsMetricsFile     = errors.New("auxiliary stats require a metrics_file sample source")
)

// Sample sources supported by command workloads.
const (
	// SourceDuration samples the workload's wall-clock runtime in
	// milliseconds.
	SourceDuration = "duration_ms"
	// SourceStdout parses the sample from the workload's stdout,
	// either the whole output as a float or a gjson field of it.
	SourceStdout = "stdout"
	// SourceMetricsFile drains the NDJSON metrics channel the workload
	// appends to and extracts a configured field.
	SourceMetricsFile = "metrics_file"
)

// Definition is a complete runnable exercise: the execution parameters
// plus one entry per pipe.
type Definition struct {
	Name        string            `yaml:"name"`
	Iterations  int               `yaml:"iterations"`
	CooldownMS  int               `yaml:"cooldown_ms"`
	Parallelism int               `yaml:"parallelism"`
	Custom      map[string]string `yaml:"custom"`
	Pipes       []*PipeDef        `yaml:"pipes"`
}

// PipeDef wires one workload to one measurement under a unique tag.
type PipeDef struct {
	Tag          string          `yaml:"tag"`
	Workload     *CommandDef     `yaml:"workload"`
	Precondition *CommandDef     `yaml:"precondition"`
	Sample       *SampleDef      `yaml:"sample"`
	Measurement  *MeasurementDef `yaml:"measurement"`
	Stats        []*AuxStatDef   `yaml:"stats"`
}

// CommandDef describes an external command invocation.
type CommandDef struct {
	Command   []string          `yaml:"command"`
	Env       map[string]string `yaml:"env"`
	Dir       string            `yaml:"dir"`
	TimeoutMS int               `yaml:"timeout_ms"`
}

// SampleDef selects how the raw sample is derived from a workload run.
type SampleDef struct {
	Source string  `yaml:"source"`
	Path   string  `yaml:"path"`
	Field  string  `yaml:"field"`
	Scale  float64 `yaml:"scale"`
	Select string  `yaml:"select"`
}

// MeasurementDef mirrors stats.Measurement plus the reducer set to
// register. An empty Reducers list means the default set.
type MeasurementDef struct {
	Name     string            `yaml:"name"`
	Unit     string            `yaml:"unit"`
	Tags     map[string]string `yaml:"tags"`
	Reducers []string          `yaml:"reducers"`
	Criteria []*CriterionDef   `yaml:"criteria"`
}

// CriterionDef is one pass/fail rule in YAML form. Exactly one shape
// applies: op+bound for single-bound predicates, op "within"+lo+hi for
// ranges, or baseline for bounds resolved against a baseline file.
type CriterionDef struct {
	Stat     string   `yaml:"stat"`
	Op       string   `yaml:"op"`
	Bound    *float64 `yaml:"bound"`
	Lo       *float64 `yaml:"lo"`
	Hi       *float64 `yaml:"hi"`
	Baseline bool     `yaml:"baseline"`
}

// AuxStatDef extracts one diagnostic statistic from the metrics
// channel after each iteration. Auxiliary stats never gate the run
// unless a criterion names them.
type AuxStatDef struct {
	Name   string  `yaml:"name"`
	Field  string  `yaml:"field"`
	Scale  float64 `yaml:"scale"`
	Select string  `yaml:"select"`
}

// Loader loads and validates suite definition files.
type Loader interface {
	Load(path string) (*Definition, error)
	Discover(dir string) ([]string, error)
}

type loader struct {
	log logrus.FieldLogger
}

// NewLoader creates a suite definition loader.
func NewLoader(log logrus.FieldLogger) Loader {
	return &loader{
		log: log.WithField("component", "suite_loader"),
	}
}

// Load reads, parses and validates a single suite file.
func (l *loader) Load(path string) (*Definition, error) {
	l.log.WithField("path", path).Debug("Loading suite definition")

	data, err := os.ReadFile(path) //nolint:gosec // G304: suite paths come from the operator
	if err != nil {
		return nil, fmt.Errorf("reading suite file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}

	if err := validateDefinition(&def); err != nil {
		return nil, fmt.Errorf("validating suite %s: %w", path, err)
	}

	return &def, nil
}

// Discover lists the suite files in a directory, sorted by name.
func (l *loader) Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading suites directory %s: %w", dir, err)
	}

	var paths []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		paths = append(paths, filepath.Join(dir, name))
	}

	sort.Strings(paths)

	return paths, nil
}

// validateDefinition checks the whole definition, collecting every
// pipe's problems rather than stopping at the first.
func validateDefinition(def *Definition) error {
	if def.Name == "" {
		return errSuiteNameRequired
	}

	if def.Iterations < 1 {
		return fmt.Errorf("%w: got %d", errIterationsRequired, def.Iterations)
	}

	if len(def.Pipes) == 0 {
		return errNoPipes
	}

	var result *multierror.Error

	for i, pipe := range def.Pipes {
		if err := validatePipe(pipe); err != nil {
			tag := pipe.Tag
			if tag == "" {
				tag = fmt.Sprintf("#%d", i)
			}

			result = multierror.Append(result, fmt.Errorf("pipe %s: %w", tag, err))
		}
	}

	return result.ErrorOrNil()
}

//nolint:gocyclo // one clause per field, fine.
func validatePipe(pipe *PipeDef) error {
	if pipe.Tag == "" {
		return errPipeTagRequired
	}

	if pipe.Workload == nil {
		return errWorkloadRequired
	}

	if err := validateCommand(pipe.Workload); err != nil {
		return fmt.Errorf("workload: %w", err)
	}

	if pipe.Precondition != nil {
		if err := validateCommand(pipe.Precondition); err != nil {
			return fmt.Errorf("precondition: %w", err)
		}
	}

	if pipe.Sample == nil {
		return errSampleRequired
	}

	if err := validateSample(pipe.Sample); err != nil {
		return err
	}

	if pipe.Measurement == nil {
		return errMeasurementRequired
	}

	if pipe.Measurement.Name == "" {
		return errMeasurementNameRequired
	}

	for _, reducer := range pipe.Measurement.Reducers {
		if _, err := stats.ParseReducer(reducer); err != nil {
			return err
		}
	}

	for _, criterion := range pipe.Measurement.Criteria {
		if err := validateCriterion(criterion); err != nil {
			return err
		}
	}

	if len(pipe.Stats) > 0 && pipe.Sample.Source != SourceMetricsFile {
		return errAuxNeedsMetricsFile
	}

	for _, aux := range pipe.Stats {
		if err := validateAux(aux); err != nil {
			return err
		}
	}

	return nil
}

func validateCommand(cmd *CommandDef) error {
	if len(cmd.Command) == 0 || cmd.Command[0] == "" {
		return errCommandRequired
	}

	return nil
}

func validateSample(sample *SampleDef) error {
	switch sample.Source {
	case SourceDuration, SourceStdout:
	case SourceMetricsFile:
		if sample.Path == "" {
			return errMetricsPathRequired
		}

		if sample.Field == "" {
			return errMetricsFieldRequired
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownSampleSource, sample.Source)
	}

	ext := metrics.Extraction{Field: sample.Field, Scale: sample.Scale, Select: metrics.Select(sample.Select)}
	if sample.Source == SourceMetricsFile {
		if err := ext.Validate(); err != nil {
			return err
		}
	}

	return nil
}

func validateCriterion(criterion *CriterionDef) error {
	if criterion.Stat == "" {
		return errCriterionStatRequired
	}

	hasOp := criterion.Op != ""
	hasBound := criterion.Bound != nil
	hasRange := criterion.Lo != nil && criterion.Hi != nil

	switch {
	case criterion.Baseline:
		if hasOp || hasBound || criterion.Lo != nil || criterion.Hi != nil {
			return fmt.Errorf("%w: stat %s mixes baseline with explicit bounds", errCriterionShapeInvalid, criterion.Stat)
		}
	case hasOp:
		op, err := stats.ParseOp(criterion.Op)
		if err != nil {
			return err
		}

		if op == stats.OpWithin {
			if !hasRange || hasBound {
				return fmt.Errorf("%w: stat %s within needs lo and hi", errCriterionShapeInvalid, criterion.Stat)
			}
		} else if !hasBound || hasRange || criterion.Lo != nil || criterion.Hi != nil {
			return fmt.Errorf("%w: stat %s op %s needs a single bound", errCriterionShapeInvalid, criterion.Stat, criterion.Op)
		}
	default:
		return fmt.Errorf("%w: stat %s", errCriterionShapeInvalid, criterion.Stat)
	}

	return nil
}

func validateAux(aux *AuxStatDef) error {
	if aux.Name == "" {
		return errAuxNameRequired
	}

	if aux.Field == "" {
		return errAuxFieldRequired
	}

	ext := metrics.Extraction{Field: aux.Field, Scale: aux.Scale, Select: metrics.Select(aux.Select)}

	return ext.Validate()
}
