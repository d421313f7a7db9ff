package stats

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.SetOutput(os.Stderr)

	return log
}

// sequenceProducer replays a fixed list of samples, then fails.
func sequenceProducer(samples ...float64) Producer {
	i := 0

	return ProducerFunc(func(_ context.Context) (float64, error) {
		if i >= len(samples) {
			return 0, errors.New("sequence exhausted")
		}

		v := samples[i]
		i++

		return v, nil
	})
}

func mustCriterion(t *testing.T, stat string, op Op, bound float64) Criterion {
	t.Helper()

	cr, err := NewCriterion(stat, op, bound)
	require.NoError(t, err)

	return cr
}

func newBoundConsumer(t *testing.T, name string, criteria []Criterion, reducers ...Reducer) *Consumer {
	t.Helper()

	c := NewConsumer(newTestLogger(), reducers...)

	m, err := NewMeasurement(name, "ms", criteria, nil)
	require.NoError(t, err)
	require.NoError(t, c.Bind(m))

	return c
}

func TestConfigValidate(t *testing.T) {
	log := newTestLogger()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid",
			cfg:  Config{Name: "boot_time", Iterations: 3, Logger: log},
		},
		{
			name:    "empty name",
			cfg:     Config{Iterations: 3, Logger: log},
			wantErr: ErrEmptyName,
		},
		{
			name:    "zero iterations",
			cfg:     Config{Name: "boot_time", Logger: log},
			wantErr: ErrInvalidIterations,
		},
		{
			name:    "negative iterations",
			cfg:     Config{Name: "boot_time", Iterations: -1, Logger: log},
			wantErr: ErrInvalidIterations,
		},
		{
			name:    "nil logger",
			cfg:     Config{Name: "boot_time", Iterations: 3},
			wantErr: ErrNilLogger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, err := NewCore(&tt.cfg)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, StateConfiguring, core.State())
		})
	}
}

func TestAddPipeValidation(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 1, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	producer := sequenceProducer(1)

	assert.ErrorIs(t, core.AddPipe(nil, consumer, "a"), ErrNilProducer)
	assert.ErrorIs(t, core.AddPipe(producer, nil, "a"), ErrNilConsumer)
	assert.ErrorIs(t, core.AddPipe(producer, consumer, ""), ErrEmptyTag)

	require.NoError(t, core.AddPipe(producer, consumer, "a"))
	assert.Equal(t, 1, core.Pipes())

	// A duplicate tag is rejected without touching the pipe list.
	err = core.AddPipe(sequenceProducer(1), newBoundConsumer(t, "latency", nil, NewMax()), "a")
	assert.ErrorIs(t, err, ErrDuplicateTag)
	assert.Equal(t, 1, core.Pipes())
}

func TestRunExerciseGatesOnCriteria(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 3, Logger: newTestLogger()})
	require.NoError(t, err)

	criteria := []Criterion{mustCriterion(t, "max", OpLessOrEqual, 25)}
	consumer := newBoundConsumer(t, "latency", criteria, NewMax(), NewMin(), NewMean())
	require.NoError(t, core.AddPipe(sequenceProducer(10, 20, 30), consumer, "vm_5vcpu"))

	report, err := core.RunExercise(context.Background())
	require.Error(t, err)
	require.NotNil(t, report, "the report is returned even on failure")
	assert.Equal(t, StateFailed, core.State())

	record := report.Lookup("vm_5vcpu", "latency")
	require.NotNil(t, record)
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, 3, record.IterationsRun)
	assert.Equal(t, 30.0, record.Statistics["max"])
	assert.Equal(t, 10.0, record.Statistics["min"])
	assert.InDelta(t, 20.0, record.Statistics["mean"], 1e-9)

	require.Len(t, record.Criteria, 1)
	outcome := record.Criteria[0]
	assert.Equal(t, "max", outcome.Stat)
	assert.False(t, outcome.Passed)
	assert.Equal(t, 30.0, outcome.Actual)
	assert.Equal(t, "<= 25", outcome.Expected)

	assert.Contains(t, err.Error(), "vm_5vcpu")
	assert.Contains(t, err.Error(), "<= 25")
	assert.Contains(t, err.Error(), "30")
}

func TestRunExercisePassesWithinBound(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 3, Logger: newTestLogger()})
	require.NoError(t, err)

	criteria := []Criterion{mustCriterion(t, "max", OpLessOrEqual, 35)}
	consumer := newBoundConsumer(t, "latency", criteria, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(10, 20, 30), consumer, "vm_5vcpu"))

	report, err := core.RunExercise(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, core.State())

	record := report.Lookup("vm_5vcpu", "latency")
	require.NotNil(t, record)
	assert.Equal(t, StatusPassed, record.Status)
	assert.Equal(t, 30.0, record.Statistics["max"])
	require.Len(t, record.Criteria, 1)
	assert.True(t, record.Criteria[0].Passed)
}

func TestEmptyCriteriaNeverFail(t *testing.T) {
	core, err := NewCore(&Config{Name: "observability", Iterations: 2, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1e9, -42), consumer, "any_values"))

	report, err := core.RunExercise(context.Background())
	require.NoError(t, err)

	record := report.Records[0]
	assert.Equal(t, StatusPassed, record.Status)
	assert.Empty(t, record.Criteria)
	assert.Equal(t, 1e9, record.Statistics["max"])
}

func TestWorkloadFailureAbortsPipe(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 5, Logger: newTestLogger()})
	require.NoError(t, err)

	// The producer fails on iteration 3, so exactly two samples reach
	// the consumer.
	consumer := newBoundConsumer(t, "latency", nil, NewMax(), NewMean())
	require.NoError(t, core.AddPipe(sequenceProducer(10, 30), consumer, "flaky"))

	report, err := core.RunExercise(context.Background())
	require.Error(t, err)

	var werr *WorkloadError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "flaky", werr.Tag)
	assert.Equal(t, 3, werr.Iteration)

	record := report.Records[0]
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, 2, record.IterationsRun)
	assert.Equal(t, 5, record.Iterations)
	assert.Equal(t, 30.0, record.Statistics["max"])
	assert.InDelta(t, 20.0, record.Statistics["mean"], 1e-9)
	assert.Contains(t, record.Err, "iteration 3")
}

func TestFailuresCollectedAcrossPipes(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 1, Logger: newTestLogger()})
	require.NoError(t, err)

	failing := newBoundConsumer(t, "latency", []Criterion{mustCriterion(t, "max", OpLessOrEqual, 5)}, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(10), failing, "too_slow"))

	broken := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(ProducerFunc(func(context.Context) (float64, error) {
		return 0, errors.New("spawn failed")
	}), broken, "broken"))

	passing := newBoundConsumer(t, "latency", []Criterion{mustCriterion(t, "max", OpLessOrEqual, 100)}, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(10), passing, "healthy"))

	report, err := core.RunExercise(context.Background())
	require.Error(t, err)

	// Every failure is enumerated; the healthy pipe still ran.
	assert.Contains(t, err.Error(), "too_slow")
	assert.Contains(t, err.Error(), "broken")
	assert.NotContains(t, err.Error(), "healthy")

	assert.Equal(t, StatusPassed, report.Lookup("healthy", "latency").Status)

	summary := report.Summarize()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 2, summary.Failed)
}

func TestCriteriaOrderIndependent(t *testing.T) {
	run := func(t *testing.T, reversed bool) map[string]Status {
		t.Helper()

		core, err := NewCore(&Config{Name: "order", Iterations: 1, Logger: newTestLogger()})
		require.NoError(t, err)

		add := func(tag string, value, bound float64) {
			criteria := []Criterion{mustCriterion(t, "max", OpLessOrEqual, bound)}
			consumer := newBoundConsumer(t, "latency", criteria, NewMax())
			require.NoError(t, core.AddPipe(sequenceProducer(value), consumer, tag))
		}

		if reversed {
			add("slow", 50, 10)
			add("fast", 5, 10)
		} else {
			add("fast", 5, 10)
			add("slow", 50, 10)
		}

		report, _ := core.RunExercise(context.Background())
		require.NotNil(t, report)

		statuses := make(map[string]Status, len(report.Records))
		for _, rec := range report.Records {
			statuses[rec.Tag] = rec.Status
		}

		return statuses
	}

	forward := run(t, false)
	backward := run(t, true)

	assert.Equal(t, forward, backward)
	assert.Equal(t, StatusPassed, forward["fast"])
	assert.Equal(t, StatusFailed, forward["slow"])
}

func TestConstantProducerProperty(t *testing.T) {
	const value = 42.5

	core, err := NewCore(&Config{Name: "constant", Iterations: 4, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil)
	require.NoError(t, core.AddPipe(ProducerFunc(func(context.Context) (float64, error) {
		return value, nil
	}), consumer, "constant"))

	report, err := core.RunExercise(context.Background())
	require.NoError(t, err)

	statistics := report.Records[0].Statistics
	assert.Equal(t, value, statistics["max"])
	assert.Equal(t, value, statistics["min"])
	assert.InDelta(t, value, statistics["mean"], 1e-9)
}

func TestUnknownStatisticFailsEvaluation(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 1, Logger: newTestLogger()})
	require.NoError(t, err)

	criteria := []Criterion{mustCriterion(t, "p90", OpLessOrEqual, 10)}
	consumer := newBoundConsumer(t, "latency", criteria, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1), consumer, "missing_stat"))

	report, err := core.RunExercise(context.Background())
	require.Error(t, err)

	record := report.Records[0]
	assert.Equal(t, StatusFailed, record.Status)
	require.Len(t, record.Criteria, 1)
	assert.False(t, record.Criteria[0].Passed)
	assert.Contains(t, record.Criteria[0].Error, "unknown statistic")
	assert.Contains(t, err.Error(), "unknown statistic")
}

func TestInvalidSampleFailsPipe(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 3, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(5, math.NaN(), 7), consumer, "nan"))

	report, err := core.RunExercise(context.Background())
	require.Error(t, err)

	var invalid *InvalidSampleError
	require.ErrorAs(t, err, &invalid)

	record := report.Records[0]
	assert.Equal(t, StatusFailed, record.Status)
	assert.Equal(t, 1, record.IterationsRun)
	assert.Equal(t, 5.0, record.Statistics["max"])
}

func TestPreconditionSkipsPipe(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 2, Logger: newTestLogger()})
	require.NoError(t, err)

	invoked := false
	criteria := []Criterion{mustCriterion(t, "max", OpLessOrEqual, 1)}
	skipped := newBoundConsumer(t, "latency", criteria, NewMax())
	require.NoError(t, core.AddPipe(ProducerFunc(func(context.Context) (float64, error) {
		invoked = true
		return 100, nil
	}), skipped, "wrong_kernel", WithPrecondition(func(context.Context) (string, error) {
		return "kernel 4.14 required", nil
	})))

	running := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1, 2), running, "supported"))

	report, err := core.RunExercise(context.Background())
	require.NoError(t, err, "a skipped pipe never fails the run")

	record := report.Lookup("wrong_kernel", "latency")
	require.NotNil(t, record)
	assert.Equal(t, StatusSkipped, record.Status)
	assert.Equal(t, "kernel 4.14 required", record.SkipReason)
	assert.Zero(t, record.IterationsRun)
	assert.Empty(t, record.Criteria)
	assert.False(t, invoked, "skipped pipe must not run its workload")

	summary := report.Summarize()
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Passed)
}

func TestPreconditionErrorFailsPipe(t *testing.T) {
	core, err := NewCore(&Config{Name: "snapshots", Iterations: 1, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1), consumer, "precheck", WithPrecondition(func(context.Context) (string, error) {
		return "", errors.New("probe crashed")
	})))

	report, err := core.RunExercise(context.Background())
	require.Error(t, err)

	record := report.Records[0]
	assert.Equal(t, StatusFailed, record.Status)
	assert.Zero(t, record.IterationsRun)
	assert.Contains(t, record.Err, "probe crashed")
}

func TestRunExerciseNotReentrant(t *testing.T) {
	core, err := NewCore(&Config{Name: "once", Iterations: 1, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1), consumer, "only"))

	_, err = core.RunExercise(context.Background())
	require.NoError(t, err)

	_, err = core.RunExercise(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)

	// Registration is closed once the exercise ran.
	err = core.AddPipe(sequenceProducer(1), newBoundConsumer(t, "latency", nil, NewMax()), "late")
	assert.ErrorIs(t, err, ErrNotConfiguring)
}

func TestRunExerciseRejectsUnboundConsumer(t *testing.T) {
	core, err := NewCore(&Config{Name: "unbound", Iterations: 1, Logger: newTestLogger()})
	require.NoError(t, err)

	require.NoError(t, core.AddPipe(sequenceProducer(1), NewConsumer(newTestLogger(), NewMax()), "unbound"))

	_, err = core.RunExercise(context.Background())
	assert.ErrorIs(t, err, ErrNotBound)
	assert.Equal(t, StateFailed, core.State())
}

func TestParallelPipesKeepRegistrationOrder(t *testing.T) {
	core, err := NewCore(&Config{
		Name:        "parallel",
		Iterations:  2,
		Parallelism: 3,
		Logger:      newTestLogger(),
	})
	require.NoError(t, err)

	tags := []string{"a", "b", "c", "d", "e"}
	for i, tag := range tags {
		value := float64(i + 1)
		criteria := []Criterion{mustCriterion(t, "max", OpLessOrEqual, 100)}
		consumer := newBoundConsumer(t, "latency", criteria, NewMax())
		require.NoError(t, core.AddPipe(ProducerFunc(func(context.Context) (float64, error) {
			return value, nil
		}), consumer, tag))
	}

	report, err := core.RunExercise(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, len(tags))
	for i, record := range report.Records {
		assert.Equal(t, tags[i], record.Tag)
		assert.Equal(t, StatusPassed, record.Status)
		assert.Equal(t, float64(i+1), record.Statistics["max"])
	}
}

func TestCancelledContextFailsPipes(t *testing.T) {
	core, err := NewCore(&Config{Name: "cancelled", Iterations: 3, Logger: newTestLogger()})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1, 2, 3), consumer, "ctx"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := core.RunExercise(ctx)
	require.Error(t, err)

	record := report.Records[0]
	assert.Equal(t, StatusFailed, record.Status)
	assert.Zero(t, record.IterationsRun)
}

func TestCooldownPacesIterations(t *testing.T) {
	const cooldown = 20 * time.Millisecond

	core, err := NewCore(&Config{
		Name:       "paced",
		Iterations: 3,
		Cooldown:   cooldown,
		Logger:     newTestLogger(),
	})
	require.NoError(t, err)

	consumer := newBoundConsumer(t, "latency", nil, NewMax())
	require.NoError(t, core.AddPipe(sequenceProducer(1, 2, 3), consumer, "paced"))

	start := time.Now()
	_, err = core.RunExercise(context.Background())
	require.NoError(t, err)

	// Two inter-iteration waits at minimum.
	assert.GreaterOrEqual(t, time.Since(start), 2*cooldown)
}
