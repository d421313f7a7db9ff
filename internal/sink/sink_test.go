package sink

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/stats"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.SetOutput(os.Stderr)

	return log
}

func sampleReport() *stats.Report {
	return &stats.Report{
		Exercise:  "snapshot_latency",
		RunID:     "f1f733a3-c8a0-4a8e-94f6-00ed07ec0a95",
		StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Custom:    map[string]string{"instance": "m5d.metal"},
		Records: []*stats.Record{
			{
				Tag:           "5vcpu_256mb",
				Measurement:   "latency",
				Unit:          "ms",
				Status:        stats.StatusPassed,
				Iterations:    30,
				IterationsRun: 30,
				Statistics:    map[string]float64{"max": 21.4, "mean": 14.9},
				Criteria: []stats.CriterionOutcome{
					{Stat: "max", Op: stats.OpLessOrEqual, Expected: "<= 25", Actual: 21.4, Passed: true},
				},
				Tags: map[string]string{"kernel": "5.10"},
			},
			{
				Tag:           "1vcpu_128mb",
				Measurement:   "latency",
				Unit:          "ms",
				Status:        stats.StatusSkipped,
				SkipReason:    "kernel 4.14 required",
				Iterations:    30,
				IterationsRun: 0,
			},
		},
	}
}

func TestNewSelectsConfiguredSink(t *testing.T) {
	log := newTestLogger()

	tests := []struct {
		name     string
		sinkType string
		want     interface{}
	}{
		{name: "none", sinkType: config.SinkNone, want: noopSink{}},
		{name: "empty defaults to none", sinkType: "", want: noopSink{}},
		{name: "file", sinkType: config.SinkFile, want: &fileSink{}},
		{name: "clickhouse", sinkType: config.SinkClickHouse, want: &clickhouseSink{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(log, &config.Config{Sink: tt.sinkType, OutputDir: t.TempDir()})
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}

	_, err := New(log, &config.Config{Sink: "kafka"})
	assert.ErrorIs(t, err, errUnknownSink)
}

func TestNoopSink(t *testing.T) {
	s := NewNoop()
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Submit(ctx, sampleReport()))
	require.NoError(t, s.Stop())
}

func TestFlatten(t *testing.T) {
	rows := flatten(sampleReport())
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "f1f733a3-c8a0-4a8e-94f6-00ed07ec0a95", first.RunID)
	assert.Equal(t, "snapshot_latency", first.Exercise)
	assert.InDelta(t, 90000.0, first.DurationMS, 1e-9)
	assert.Equal(t, "m5d.metal", first.Custom["instance"])
	assert.Equal(t, "5vcpu_256mb", first.Tag)
	assert.Equal(t, 21.4, first.Statistics["max"])

	// Run-level provenance repeats on every row.
	assert.Equal(t, first.RunID, rows[1].RunID)
	assert.Equal(t, "kernel 4.14 required", rows[1].SkipReason)
}

func TestClickHouseOptions(t *testing.T) {
	cfg := &config.Config{
		Sink:                 config.SinkClickHouse,
		SubmitAttempts:       3,
		ClickhouseHost:       "ch.internal",
		ClickhouseNativePort: 19000,
		ClickhouseDatabase:   "bench",
		ClickhouseUsername:   "writer",
		ClickhousePassword:   "secret",
	}

	opts := connectionOptions(cfg, cfg.ClickhouseDatabase)
	require.Len(t, opts.Addr, 1)
	assert.Equal(t, "ch.internal:19000", opts.Addr[0])
	assert.Equal(t, "bench", opts.Auth.Database)
	assert.Equal(t, "writer", opts.Auth.Username)
	assert.Equal(t, "secret", opts.Auth.Password)
	assert.Equal(t, 30*time.Second, opts.DialTimeout)
	assert.Equal(t, 5, opts.MaxOpenConns)
	require.NotNil(t, opts.Compression)

	// Setup and Teardown go through the default database, the one
	// connection guaranteed to exist before the schema is created.
	assert.Equal(t, "default", connectionOptions(cfg, "default").Auth.Database)
}
