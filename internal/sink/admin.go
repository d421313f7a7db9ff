package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/config"
)

// Setup creates the report database if it doesn't exist and brings its
// schema up to date. The clickhouse sink runs it on Start, and the
// setup command runs it standalone to prepare a server ahead of CI.
func Setup(ctx context.Context, log logrus.FieldLogger, cfg *config.Config) error {
	log = log.WithField("component", "clickhouse_admin")

	// The target database may not exist yet, so the connection goes
	// through "default".
	db := clickhouse.OpenDB(connectionOptions(cfg, "default"))
	defer func() {
		_ = db.Close()
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	query := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", cfg.ClickhouseDatabase)
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	if err := runMigrations(ctx, log, db, cfg.ClickhouseDatabase); err != nil {
		return err
	}

	log.WithField("database", cfg.ClickhouseDatabase).Info("Report database ready")

	return nil
}

// Teardown drops the report database and all its history.
func Teardown(ctx context.Context, log logrus.FieldLogger, cfg *config.Config) error {
	log = log.WithField("component", "clickhouse_admin")

	db := clickhouse.OpenDB(connectionOptions(cfg, "default"))
	defer func() {
		_ = db.Close()
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	var exists uint64

	query := fmt.Sprintf("SELECT count() FROM system.databases WHERE name = '%s'", cfg.ClickhouseDatabase)
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check if database exists: %w", err)
	}

	if exists == 0 {
		log.WithField("database", cfg.ClickhouseDatabase).Info("Database does not exist, nothing to tear down")

		return nil
	}

	drop := fmt.Sprintf("DROP DATABASE `%s`", cfg.ClickhouseDatabase)
	if _, err := db.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}

	log.WithField("database", cfg.ClickhouseDatabase).Info("Report database dropped")

	return nil
}
