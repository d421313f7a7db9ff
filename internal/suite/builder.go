package suite

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/stats"
)

var errBaselineNotFound = errors.New("no baseline entry for criterion")

// Builder assembles loaded definitions into runnable cores. Baselines
// are optional; they are only consulted for criteria that ask for one.
type Builder struct {
	log       logrus.FieldLogger
	baselines BaselineSet
}

// NewBuilder creates a suite builder. A nil baseline set is valid as
// long as no criterion declares baseline bounds.
func NewBuilder(log logrus.FieldLogger, baselines BaselineSet) *Builder {
	return &Builder{
		log:       log,
		baselines: baselines,
	}
}

// Build turns a validated definition into a configured core with one
// pipe per definition entry.
func (b *Builder) Build(def *Definition) (*stats.Core, error) {
	core, err := stats.NewCore(&stats.Config{
		Name:        def.Name,
		Iterations:  def.Iterations,
		Custom:      def.Custom,
		Parallelism: def.Parallelism,
		Cooldown:    time.Duration(def.CooldownMS) * time.Millisecond,
		Logger:      b.log,
	})
	if err != nil {
		return nil, err
	}

	for _, pipe := range def.Pipes {
		consumer, err := b.buildConsumer(def.Name, pipe)
		if err != nil {
			return nil, fmt.Errorf("pipe %s: %w", pipe.Tag, err)
		}

		producer, err := newCommandProducer(b.log, pipe, consumer)
		if err != nil {
			return nil, fmt.Errorf("pipe %s: %w", pipe.Tag, err)
		}

		var opts []stats.PipeOption
		if pipe.Precondition != nil {
			opts = append(opts, stats.WithPrecondition(commandPrecondition(b.log, pipe.Tag, pipe.Precondition)))
		}

		if err := core.AddPipe(producer, consumer, pipe.Tag, opts...); err != nil {
			return nil, err
		}
	}

	return core, nil
}

func (b *Builder) buildConsumer(exercise string, pipe *PipeDef) (*stats.Consumer, error) {
	reducers := make([]stats.Reducer, 0, len(pipe.Measurement.Reducers))

	for _, name := range pipe.Measurement.Reducers {
		reducer, err := stats.ParseReducer(name)
		if err != nil {
			return nil, err
		}

		reducers = append(reducers, reducer)
	}

	criteria, err := b.buildCriteria(exercise, pipe)
	if err != nil {
		return nil, err
	}

	measurement, err := stats.NewMeasurement(pipe.Measurement.Name, pipe.Measurement.Unit, criteria, pipe.Measurement.Tags)
	if err != nil {
		return nil, err
	}

	consumer := stats.NewConsumer(b.log, reducers...)
	if err := consumer.Bind(measurement); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (b *Builder) buildCriteria(exercise string, pipe *PipeDef) ([]stats.Criterion, error) {
	criteria := make([]stats.Criterion, 0, len(pipe.Measurement.Criteria))

	for _, def := range pipe.Measurement.Criteria {
		criterion, err := b.buildCriterion(exercise, pipe, def)
		if err != nil {
			return nil, err
		}

		criteria = append(criteria, criterion)
	}

	return criteria, nil
}

func (b *Builder) buildCriterion(exercise string, pipe *PipeDef, def *CriterionDef) (stats.Criterion, error) {
	if def.Baseline {
		baseline, ok := b.baselines.Lookup(exercise, pipe.Tag, pipe.Measurement.Name, def.Stat)
		if !ok {
			return stats.Criterion{}, fmt.Errorf("%w: %s/%s/%s/%s",
				errBaselineNotFound, exercise, pipe.Tag, pipe.Measurement.Name, def.Stat)
		}

		lo, hi := baseline.Bounds()

		return stats.NewRangeCriterion(def.Stat, lo, hi)
	}

	op, err := stats.ParseOp(def.Op)
	if err != nil {
		return stats.Criterion{}, err
	}

	if op == stats.OpWithin {
		return stats.NewRangeCriterion(def.Stat, *def.Lo, *def.Hi)
	}

	return stats.NewCriterion(def.Stat, op, *def.Bound)
}
