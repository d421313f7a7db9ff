package stats

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrEmptyName is returned when a required name is empty.
	ErrEmptyName = errors.New("name must not be empty")
	// ErrEmptyTag is returned when a pipe is registered without a tag.
	ErrEmptyTag = errors.New("pipe tag must not be empty")
	// ErrDuplicateTag is returned when a pipe tag is registered twice
	// on the same core.
	ErrDuplicateTag = errors.New("duplicate pipe tag")
	// ErrInvalidIterations rejects iteration counts below one at
	// configuration time.
	ErrInvalidIterations = errors.New("iterations must be at least 1")
	// ErrNilProducer is returned when a pipe is registered without a producer.
	ErrNilProducer = errors.New("pipe producer must not be nil")
	// ErrNilConsumer is returned when a pipe is registered without a consumer.
	ErrNilConsumer = errors.New("pipe consumer must not be nil")
	// ErrNilMeasurement is returned when a consumer is bound to nil.
	ErrNilMeasurement = errors.New("measurement must not be nil")
	// ErrNilLogger is returned when a core is configured without a logger.
	ErrNilLogger = errors.New("logger must not be nil")
	// ErrAlreadyBound is returned when a consumer is bound twice.
	ErrAlreadyBound = errors.New("consumer already bound to a measurement")
	// ErrNotBound is returned when samples reach an unbound consumer.
	ErrNotBound = errors.New("consumer not bound to a measurement")
	// ErrAlreadyRun is returned when RunExercise is called on a core
	// that already left the configuring state.
	ErrAlreadyRun = errors.New("exercise already run")
	// ErrNotConfiguring is returned when pipes are added after the
	// exercise started.
	ErrNotConfiguring = errors.New("pipes may only be added while configuring")
	// ErrUnknownStatistic names a criterion statistic the consumer
	// cannot produce.
	ErrUnknownStatistic = errors.New("unknown statistic")
	// ErrNoSamples names a statistic whose reducer saw no samples.
	ErrNoSamples = errors.New("no samples consumed")
	// ErrReservedStatistic is returned when a directly recorded
	// statistic collides with a reducer name.
	ErrReservedStatistic = errors.New("statistic name reserved by a reducer")
	// ErrInvalidPercentile rejects percentiles outside (0, 100).
	ErrInvalidPercentile = errors.New("percentile must be between 0 and 100 exclusive")
	// ErrUnknownReducer is returned for unrecognized statistic names.
	ErrUnknownReducer = errors.New("unknown reducer")
	// ErrUnknownOp is returned for unrecognized criterion operators.
	ErrUnknownOp = errors.New("unknown criterion operator")
	// ErrInvalidBounds is returned when a range criterion's lower bound
	// exceeds its upper bound.
	ErrInvalidBounds = errors.New("lower bound must not exceed upper bound")
)

// WorkloadError reports a failed producer invocation. It aborts the
// remaining iterations of the owning pipe but never stops other pipes.
type WorkloadError struct {
	Tag       string
	Iteration int
	Cause     error
}

func (e *WorkloadError) Error() string {
	if e.Iteration > 0 {
		return fmt.Sprintf("workload for pipe %q failed on iteration %d: %v", e.Tag, e.Iteration, e.Cause)
	}

	return fmt.Sprintf("workload for pipe %q failed: %v", e.Tag, e.Cause)
}

// Unwrap returns the underlying workload failure.
func (e *WorkloadError) Unwrap() error {
	return e.Cause
}

// InvalidSampleError reports a non-finite raw sample. A NaN or infinite
// value corrupts every reducer irrecoverably, so the pipe that produced
// it is marked failed.
type InvalidSampleError struct {
	Value float64
}

func (e *InvalidSampleError) Error() string {
	return fmt.Sprintf("invalid sample %s: value must be finite", strconv.FormatFloat(e.Value, 'g', -1, 64))
}
