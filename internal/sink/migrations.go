package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	chmigrate "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/config"
)

// Schema migrations, templated with the target database at run time
// and served to golang-migrate from memory. Column order matches the
// batch insert in clickhouse.go.
var migrations = map[string]string{
	"1_create_records.up.sql": `CREATE TABLE IF NOT EXISTS ${DATABASE}.` + config.RecordsTable + `
(
    run_id         String,
    exercise       String,
    started_at     DateTime64(3, 'UTC'),
    duration_ms    Float64,
    tag            String,
    measurement    String,
    unit           String,
    status         LowCardinality(String),
    skip_reason    String,
    iterations     UInt32,
    iterations_run UInt32,
    statistics     Map(String, Float64),
    criteria       String,
    tags           Map(String, String),
    custom         Map(String, String),
    error          String
)
ENGINE = MergeTree()
ORDER BY (exercise, started_at, tag, measurement)`,

	"1_create_records.down.sql": `DROP TABLE IF EXISTS ${DATABASE}.` + config.RecordsTable,
}

// runMigrations brings the report schema up to date, respecting
// context cancellation while golang-migrate works.
func runMigrations(ctx context.Context, log logrus.FieldLogger, db *sql.DB, database string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	mlog := log.WithField("component", "migration_runner")
	mlog.WithField("database", database).Debug("Running migrations")

	sourceDriver, err := iofs.New(newMemFS(templateMigrations(database)), ".")
	if err != nil {
		return fmt.Errorf("creating source driver: %w", err)
	}

	dbDriver, err := chmigrate.WithInstance(db, &chmigrate.Config{
		DatabaseName:          database,
		MigrationsTable:       config.MigrationsTable,
		MultiStatementEnabled: true,
		MultiStatementMaxSize: 1024 * 1024,
	})
	if err != nil {
		return fmt.Errorf("creating clickhouse driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, database, dbDriver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}

	done := make(chan error, 1)

	go func() {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			done <- fmt.Errorf("running migrations: %w", err)

			return
		}

		done <- nil
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("migration canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return err
		}
	}

	mlog.WithField("database", database).Debug("Migrations completed")

	return nil
}

func templateMigrations(database string) map[string]string {
	files := make(map[string]string, len(migrations))

	for name, content := range migrations {
		files[name] = strings.ReplaceAll(content, "${DATABASE}", "`"+database+"`")
	}

	return files
}
