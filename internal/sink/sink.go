// Package sink persists finished run reports. Sinks receive the whole
// report after an exercise completes; they never see partial state.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/stats"
)

var errUnknownSink = errors.New("unknown sink type")

// Sink receives finished reports. Start is called once before the
// first Submit, Stop after the last.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	Submit(ctx context.Context, report *stats.Report) error
}

// New builds the sink the configuration selects.
func New(log logrus.FieldLogger, cfg *config.Config) (Sink, error) {
	switch cfg.Sink {
	case config.SinkNone, "":
		return NewNoop(), nil
	case config.SinkFile:
		return NewFile(log, cfg.OutputDir), nil
	case config.SinkClickHouse:
		return NewClickHouse(log, cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownSink, cfg.Sink)
	}
}

// NewNoop returns a sink that discards reports.
func NewNoop() Sink {
	return noopSink{}
}

type noopSink struct{}

func (noopSink) Start(context.Context) error { return nil }

func (noopSink) Stop() error { return nil }

func (noopSink) Submit(context.Context, *stats.Report) error { return nil }

// row is the flattened persistence shape: one row per report record,
// with the run-level provenance repeated on each.
type row struct {
	RunID      string            `json:"run_id"`
	Exercise   string            `json:"exercise"`
	StartedAt  time.Time         `json:"started_at"`
	DurationMS float64           `json:"duration_ms"`
	Custom     map[string]string `json:"custom,omitempty"`
	*stats.Record
}

func flatten(report *stats.Report) []row {
	rows := make([]row, 0, len(report.Records))

	for _, record := range report.Records {
		rows = append(rows, row{
			RunID:      report.RunID,
			Exercise:   report.Exercise,
			StartedAt:  report.StartedAt,
			DurationMS: float64(report.Duration) / float64(time.Millisecond),
			Custom:     report.Custom,
			Record:     record,
		})
	}

	return rows
}
