package suite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ethpandaops/perfgate/internal/metrics"
	"github.com/ethpandaops/perfgate/internal/stats"
)

var (
	errSampleNotFound     = errors.New("sample field not found in metrics records")
	errStdoutFieldMissing = errors.New("sample field not found in stdout")
	errStdoutNotJSON      = errors.New("stdout is not valid JSON")
)

// commandProducer runs one external command per iteration and derives
// the raw sample from its runtime, stdout or metrics channel. It holds
// the pipe's consumer so auxiliary statistics extracted from the
// channel land on the same record.
type commandProducer struct {
	log      logrus.FieldLogger
	workload *CommandDef
	sample   *SampleDef
	consumer *stats.Consumer
	channel  *metrics.Channel
	extract  metrics.Extraction
	aux      []auxExtraction
}

type auxExtraction struct {
	name string
	ext  metrics.Extraction
}

func newCommandProducer(log logrus.FieldLogger, pipe *PipeDef, consumer *stats.Consumer) (*commandProducer, error) {
	p := &commandProducer{
		log: log.WithFields(logrus.Fields{
			"component": "workload",
			"tag":       pipe.Tag,
		}),
		workload: pipe.Workload,
		sample:   pipe.Sample,
		consumer: consumer,
	}

	if pipe.Sample.Source == SourceMetricsFile {
		channel, err := metrics.NewChannel(log, pipe.Sample.Path)
		if err != nil {
			return nil, err
		}

		p.channel = channel
		p.extract = metrics.Extraction{
			Field:  pipe.Sample.Field,
			Scale:  pipe.Sample.Scale,
			Select: metrics.Select(pipe.Sample.Select),
		}
	}

	for _, aux := range pipe.Stats {
		p.aux = append(p.aux, auxExtraction{
			name: aux.Name,
			ext: metrics.Extraction{
				Field:  aux.Field,
				Scale:  aux.Scale,
				Select: metrics.Select(aux.Select),
			},
		})
	}

	return p, nil
}

// Produce runs the workload once and derives the sample.
func (p *commandProducer) Produce(ctx context.Context) (float64, error) {
	stdout, elapsed, err := p.run(ctx)
	if err != nil {
		return 0, err
	}

	switch p.sample.Source {
	case SourceDuration:
		return p.scaled(float64(elapsed) / float64(time.Millisecond)), nil
	case SourceStdout:
		return p.fromStdout(stdout)
	default:
		return p.fromChannel()
	}
}

// run executes the command with captured output, enforcing the
// configured per-invocation timeout.
func (p *commandProducer) run(ctx context.Context) (string, time.Duration, error) {
	runCtx, cancel := commandContext(ctx, p.workload)
	defer cancel()

	cmd := buildCommand(runCtx, p.workload)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log.WithField("command", commandString(p.workload)).Debug("Running workload")

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return "", 0, fmt.Errorf("command %q timed out after %dms", commandString(p.workload), p.workload.TimeoutMS)
	}

	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", 0, fmt.Errorf("command %q: %w: %s", commandString(p.workload), err, msg)
		}

		return "", 0, fmt.Errorf("command %q: %w", commandString(p.workload), err)
	}

	return stdout.String(), elapsed, nil
}

func (p *commandProducer) fromStdout(stdout string) (float64, error) {
	text := strings.TrimSpace(stdout)

	if p.sample.Field == "" {
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing stdout sample: %w", err)
		}

		return p.scaled(value), nil
	}

	if !gjson.Valid(text) {
		return 0, fmt.Errorf("%w: command %q", errStdoutNotJSON, commandString(p.workload))
	}

	result := gjson.Get(text, p.sample.Field)
	if !result.Exists() || result.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %q", errStdoutFieldMissing, p.sample.Field)
	}

	return p.scaled(result.Float()), nil
}

// fromChannel drains the records the workload appended during this
// iteration, extracts the sample and feeds any auxiliary statistics to
// the consumer. A missing auxiliary field is diagnostic noise, not a
// failure; a missing sample field is.
func (p *commandProducer) fromChannel() (float64, error) {
	records, err := p.channel.Drain()
	if err != nil {
		return 0, err
	}

	value, ok := p.extract.Apply(records)
	if !ok {
		return 0, fmt.Errorf("%w: field %q in %s", errSampleNotFound, p.sample.Field, p.channel.Path())
	}

	for _, aux := range p.aux {
		auxValue, ok := aux.ext.Apply(records)
		if !ok {
			p.log.WithField("stat", aux.name).Warn("Auxiliary stat not found in metrics records")

			continue
		}

		if err := p.consumer.ConsumeStat(aux.name, auxValue); err != nil {
			return 0, fmt.Errorf("recording auxiliary stat %q: %w", aux.name, err)
		}
	}

	return value, nil
}

// scaled applies the sample's unit conversion. The metrics_file source
// scales inside the extraction instead.
func (p *commandProducer) scaled(value float64) float64 {
	if p.sample.Scale == 0 || p.sample.Source == SourceMetricsFile {
		return value
	}

	return value * p.sample.Scale
}

// commandPrecondition adapts a probe command into a pipe precondition:
// a non-zero exit skips the pipe, while a command that cannot run at
// all fails it.
func commandPrecondition(log logrus.FieldLogger, tag string, def *CommandDef) stats.Precondition {
	plog := log.WithFields(logrus.Fields{
		"component": "precondition",
		"tag":       tag,
	})

	return func(ctx context.Context) (string, error) {
		runCtx, cancel := commandContext(ctx, def)
		defer cancel()

		cmd := buildCommand(runCtx, def)

		var stderr bytes.Buffer

		cmd.Stderr = &stderr

		plog.WithField("command", commandString(def)).Debug("Probing precondition")

		err := cmd.Run()
		if err == nil {
			return "", nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason := fmt.Sprintf("precondition %q exited with status %d", commandString(def), exitErr.ExitCode())
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				reason += ": " + msg
			}

			return reason, nil
		}

		return "", fmt.Errorf("precondition %q: %w", commandString(def), err)
	}
}

func commandContext(ctx context.Context, def *CommandDef) (context.Context, context.CancelFunc) {
	if def.TimeoutMS > 0 {
		return context.WithTimeout(ctx, time.Duration(def.TimeoutMS)*time.Millisecond)
	}

	return context.WithCancel(ctx)
}

func buildCommand(ctx context.Context, def *CommandDef) *exec.Cmd {
	cmd := exec.CommandContext(ctx, def.Command[0], def.Command[1:]...) //nolint:gosec // G204: commands come from the operator's suite file

	cmd.Dir = def.Dir

	if len(def.Env) > 0 {
		keys := make([]string, 0, len(def.Env))
		for k := range def.Env {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		env := os.Environ()
		for _, k := range keys {
			env = append(env, k+"="+def.Env[k])
		}

		cmd.Env = env
	}

	return cmd
}

func commandString(def *CommandDef) string {
	return strings.Join(def.Command, " ")
}
