package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/stats"
)

// clickhouseSink persists report records over the native protocol.
// Start migrates the schema and opens the insert connection; Submit
// batches one insert per report with bounded retries.
type clickhouseSink struct {
	log  logrus.FieldLogger
	cfg  *config.Config
	conn driver.Conn
}

// NewClickHouse creates a sink targeting the configured server.
func NewClickHouse(log logrus.FieldLogger, cfg *config.Config) Sink {
	return &clickhouseSink{
		log: log.WithField("component", "clickhouse_sink"),
		cfg: cfg,
	}
}

func (s *clickhouseSink) Start(ctx context.Context) error {
	if err := Setup(ctx, s.log, s.cfg); err != nil {
		return err
	}

	conn, err := clickhouse.Open(connectionOptions(s.cfg, s.cfg.ClickhouseDatabase))
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := conn.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s.conn = conn

	s.log.WithFields(logrus.Fields{
		"address":  s.cfg.Address(),
		"database": s.cfg.ClickhouseDatabase,
	}).Info("ClickHouse sink ready")

	return nil
}

func connectionOptions(cfg *config.Config, database string) *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{cfg.Address()},
		Auth: clickhouse.Auth{
			Database: database,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     time.Second * 30,
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Duration(10) * time.Minute,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	}
}

func (s *clickhouseSink) Stop() error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Close()
}

func (s *clickhouseSink) Submit(ctx context.Context, report *stats.Report) error {
	return retry.Do(
		func() error {
			return s.insert(ctx, report)
		},
		retry.Attempts(uint(s.cfg.SubmitAttempts)),
		retry.OnRetry(func(n uint, err error) {
			s.log.WithError(err).WithField("attempt", n+1).Warn("Report submission failed, retrying")
		}),
	)
}

func (s *clickhouseSink) insert(ctx context.Context, report *stats.Report) error {
	query := fmt.Sprintf("INSERT INTO `%s`.%s", s.cfg.ClickhouseDatabase, config.RecordsTable)

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}

	for _, r := range flatten(report) {
		criteria := "[]"

		if len(r.Criteria) > 0 {
			encoded, err := json.Marshal(r.Criteria)
			if err != nil {
				return fmt.Errorf("encoding criteria for %s: %w", r.Tag, err)
			}

			criteria = string(encoded)
		}

		if err := batch.Append(
			r.RunID,
			r.Exercise,
			r.StartedAt,
			r.DurationMS,
			r.Tag,
			r.Measurement,
			r.Unit,
			string(r.Status),
			r.SkipReason,
			uint32(r.Iterations),
			uint32(r.IterationsRun),
			r.Statistics,
			criteria,
			r.Tags,
			r.Custom,
			r.Err,
		); err != nil {
			return fmt.Errorf("appending record for %s: %w", r.Tag, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"run_id":  report.RunID,
		"records": len(report.Records),
	}).Info("Report submitted")

	return nil
}
