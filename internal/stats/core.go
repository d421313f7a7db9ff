// Package stats implements the measurement pipeline for repeated
// workload sampling: producers emit raw samples, consumers reduce them
// into named statistics, and the exercise core gates those statistics
// against configured pass criteria.
package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// State identifies the exercise lifecycle phase.
type State string

// Exercise lifecycle states.
const (
	StateConfiguring State = "configuring"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Config contains exercise core configuration.
type Config struct {
	// Name identifies the exercise in reports and logs.
	Name string
	// Iterations is the number of samples collected per pipe.
	Iterations int
	// Custom tags are merged into every report record.
	Custom map[string]string
	// Parallelism bounds how many pipes run concurrently. Zero or one
	// keeps the strict sequential model; higher values still run each
	// pipe's iterations in order.
	Parallelism int
	// Cooldown paces iterations within a pipe.
	Cooldown time.Duration
	// Logger is scoped with the exercise name.
	Logger logrus.FieldLogger
}

// Validate checks the configuration at construction time.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: exercise name", ErrEmptyName)
	}

	if c.Iterations < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidIterations, c.Iterations)
	}

	if c.Logger == nil {
		return ErrNilLogger
	}

	return nil
}

// Core owns the registered pipes and drives the exercise lifecycle:
// Configuring -> Running -> Completed or Failed. A core runs exactly
// once; rerunning requires a fresh core with fresh consumers.
type Core struct {
	name        string
	iterations  int
	custom      map[string]string
	parallelism int
	cooldown    time.Duration
	log         logrus.FieldLogger

	mu    sync.Mutex
	state State
	pipes []*pipe
	tags  map[string]bool
}

// NewCore creates an exercise core in the Configuring state.
func NewCore(cfg *Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	custom := make(map[string]string, len(cfg.Custom))
	for k, v := range cfg.Custom {
		custom[k] = v
	}

	return &Core{
		name:        cfg.Name,
		iterations:  cfg.Iterations,
		custom:      custom,
		parallelism: cfg.Parallelism,
		cooldown:    cfg.Cooldown,
		log: cfg.Logger.WithFields(logrus.Fields{
			"component": "exercise_core",
			"exercise":  cfg.Name,
		}),
		state: StateConfiguring,
		tags:  make(map[string]bool),
	}, nil
}

// Name returns the exercise name.
func (c *Core) Name() string {
	return c.name
}

// Iterations returns the configured samples per pipe.
func (c *Core) Iterations() int {
	return c.iterations
}

// State returns the current lifecycle state.
func (c *Core) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Pipes returns the number of registered pipes.
func (c *Core) Pipes() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pipes)
}

// AddPipe registers a producer/consumer pair under a unique tag, in
// execution order. Registration never invokes the producer. A duplicate
// tag is a configuration error and leaves the pipe list untouched.
func (c *Core) AddPipe(producer Producer, consumer *Consumer, tag string, opts ...PipeOption) error {
	if producer == nil {
		return ErrNilProducer
	}

	if consumer == nil {
		return ErrNilConsumer
	}

	if tag == "" {
		return ErrEmptyTag
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConfiguring {
		return fmt.Errorf("%w: state is %s", ErrNotConfiguring, c.state)
	}

	if c.tags[tag] {
		return fmt.Errorf("%w: %q", ErrDuplicateTag, tag)
	}

	p := &pipe{
		tag:      tag,
		producer: producer,
		consumer: consumer,
	}

	for _, opt := range opts {
		opt(p)
	}

	c.tags[tag] = true
	c.pipes = append(c.pipes, p)

	return nil
}

// RunExercise executes every registered pipe for the configured
// iteration count, evaluates all pass criteria, and returns the full
// report. Pipes fail fast within their own iteration loop but never
// stop each other; the report is returned even on failure, and the
// error aggregates every failing tag and criterion rather than the
// first.
func (c *Core) RunExercise(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	if c.state != StateConfiguring {
		state := c.state
		c.mu.Unlock()

		return nil, fmt.Errorf("%w: state is %s", ErrAlreadyRun, state)
	}
	c.state = StateRunning
	pipes := c.pipes
	c.mu.Unlock()

	// An unbound consumer is a configuration defect; refuse to run
	// anything rather than fail one pipe at a time.
	for _, p := range pipes {
		if !p.consumer.Bound() {
			c.setState(StateFailed)

			return nil, fmt.Errorf("%w: pipe %q", ErrNotBound, p.tag)
		}
	}

	custom := make(map[string]string, len(c.custom))
	for k, v := range c.custom {
		custom[k] = v
	}

	report := &Report{
		Exercise:  c.name,
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Custom:    custom,
		Records:   make([]*Record, len(pipes)),
	}

	c.log.WithFields(logrus.Fields{
		"run_id":     report.RunID,
		"pipes":      len(pipes),
		"iterations": c.iterations,
	}).Info("exercise started")

	if c.parallelism > 1 {
		c.runParallel(ctx, pipes, report)
	} else {
		for i, p := range pipes {
			report.Records[i] = c.runPipe(ctx, p)
		}
	}

	report.Duration = time.Since(report.StartedAt)

	if err := c.collectFailures(report).ErrorOrNil(); err != nil {
		c.setState(StateFailed)
		c.log.WithFields(logrus.Fields{
			"run_id":   report.RunID,
			"duration": report.Duration,
		}).Error("exercise failed")

		return report, fmt.Errorf("exercise %q: %w", c.name, err)
	}

	c.setState(StateCompleted)
	c.log.WithFields(logrus.Fields{
		"run_id":   report.RunID,
		"duration": report.Duration,
	}).Info("exercise completed")

	return report, nil
}

// runParallel executes independent pipes concurrently with a bounded
// worker pool. Each pipe still consumes sequentially; records land at
// their registration index so report order is stable.
func (c *Core) runParallel(ctx context.Context, pipes []*pipe, report *Report) {
	g, gCtx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, c.parallelism)

	for i, p := range pipes {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gCtx.Done():
				return gCtx.Err()
			}

			report.Records[i] = c.runPipe(gCtx, p)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Pipes cancelled while queued still get a record.
		for i, p := range pipes {
			if report.Records[i] == nil {
				report.Records[i] = c.abortedRecord(p, err)
			}
		}
	}
}

// runPipe drives one pipe: precondition, then up to the configured
// iteration count of produce/consume, then criteria evaluation over
// whatever statistics accumulated.
func (c *Core) runPipe(ctx context.Context, p *pipe) *Record {
	log := c.log.WithField("pipe", p.tag)
	m := p.consumer.Measurement()

	record := &Record{
		Tag:         p.tag,
		Measurement: m.Name(),
		Unit:        m.Unit(),
		Iterations:  c.iterations,
		Tags:        mergeTags(m.Tags(), c.custom),
	}

	if p.precond != nil {
		reason, err := p.precond(ctx)
		if err != nil {
			log.WithError(err).Error("precondition check failed")
			record.err = &WorkloadError{Tag: p.tag, Cause: err}
			record.Err = record.err.Error()
			record.Status = StatusFailed

			return record
		}

		if reason != "" {
			log.WithField("reason", reason).Info("pipe skipped")
			record.Status = StatusSkipped
			record.SkipReason = reason

			return record
		}
	}

	var limiter *rate.Limiter
	if c.cooldown > 0 {
		limiter = rate.NewLimiter(rate.Every(c.cooldown), 1)
	}

	var failure error

	for i := 1; i <= c.iterations; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				failure = &WorkloadError{Tag: p.tag, Iteration: i, Cause: err}
				break
			}
		} else if err := ctx.Err(); err != nil {
			failure = &WorkloadError{Tag: p.tag, Iteration: i, Cause: err}
			break
		}

		value, err := p.producer.Produce(ctx)
		if err != nil {
			failure = &WorkloadError{Tag: p.tag, Iteration: i, Cause: err}
			log.WithError(err).WithField("iteration", i).Error("workload failed")

			break
		}

		if err := p.consumer.Consume(value); err != nil {
			failure = fmt.Errorf("pipe %q iteration %d: %w", p.tag, i, err)
			log.WithError(err).WithField("iteration", i).Error("sample rejected")

			break
		}

		record.IterationsRun = i

		log.WithFields(logrus.Fields{
			"iteration": i,
			"value":     value,
		}).Debug("sample consumed")
	}

	// Evaluate even after an early abort: partial statistics are still
	// wanted for diagnostics.
	record.Statistics = p.consumer.Results()
	record.Criteria = c.evaluate(p.consumer)

	failed := failure != nil
	for _, outcome := range record.Criteria {
		if !outcome.Passed {
			failed = true
		}
	}

	if failure != nil {
		record.err = failure
		record.Err = failure.Error()
	}

	if failed {
		record.Status = StatusFailed
	} else {
		record.Status = StatusPassed
	}

	log.WithFields(logrus.Fields{
		"status":         record.Status,
		"iterations_run": record.IterationsRun,
	}).Info("pipe finished")

	return record
}

// abortedRecord stands in for a pipe that never started because the
// run was cancelled.
func (c *Core) abortedRecord(p *pipe, cause error) *Record {
	m := p.consumer.Measurement()
	werr := &WorkloadError{Tag: p.tag, Cause: cause}

	return &Record{
		Tag:         p.tag,
		Measurement: m.Name(),
		Unit:        m.Unit(),
		Status:      StatusFailed,
		Iterations:  c.iterations,
		Statistics:  p.consumer.Results(),
		Criteria:    c.evaluate(p.consumer),
		Tags:        mergeTags(m.Tags(), c.custom),
		Err:         werr.Error(),
		err:         werr,
	}
}

// evaluate checks every criterion of the bound measurement against the
// consumer's current results.
func (c *Core) evaluate(consumer *Consumer) []CriterionOutcome {
	criteria := consumer.Measurement().Criteria()
	if len(criteria) == 0 {
		return nil
	}

	results := consumer.Results()
	outcomes := make([]CriterionOutcome, 0, len(criteria))

	for _, cr := range criteria {
		outcome := CriterionOutcome{
			Stat:     cr.Stat(),
			Op:       cr.Operator(),
			Expected: cr.Expected(),
		}

		actual, ok := results[cr.Stat()]

		switch {
		case ok:
			outcome.Actual = actual
			outcome.Passed = cr.Check(actual)
		case consumer.HasStatistic(cr.Stat()):
			outcome.Error = fmt.Errorf("%w: %q", ErrNoSamples, cr.Stat()).Error()
		default:
			outcome.Error = fmt.Errorf("%w: %q", ErrUnknownStatistic, cr.Stat()).Error()
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// collectFailures enumerates every workload failure and failed
// criterion across all records.
func (c *Core) collectFailures(report *Report) *multierror.Error {
	var failures *multierror.Error

	for _, record := range report.Records {
		if record.err != nil {
			failures = multierror.Append(failures, record.err)
		}

		for _, outcome := range record.Criteria {
			if outcome.Passed {
				continue
			}

			if outcome.Error != "" {
				failures = multierror.Append(failures, fmt.Errorf(
					"pipe %q: measurement %q: criterion %s: %s",
					record.Tag, record.Measurement, outcome.Stat, outcome.Error))

				continue
			}

			failures = multierror.Append(failures, fmt.Errorf(
				"pipe %q: measurement %q: criterion %s %s failed: actual %s",
				record.Tag, record.Measurement, outcome.Stat, outcome.Expected, formatValue(outcome.Actual)))
		}
	}

	return failures
}

func (c *Core) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// mergeTags overlays core-level custom tags on the measurement's own.
func mergeTags(tags, custom map[string]string) map[string]string {
	out := make(map[string]string, len(tags)+len(custom))

	for k, v := range tags {
		out[k] = v
	}

	for k, v := range custom {
		out[k] = v
	}

	return out
}
