package config

const (
	// SinkNone discards finished reports.
	SinkNone = "none"
	// SinkFile appends reports as NDJSON files under the output directory.
	SinkFile = "file"
	// SinkClickHouse persists report records over the native protocol.
	SinkClickHouse = "clickhouse"
	// DefaultOutputDir is where the file sink writes run reports.
	DefaultOutputDir = "reports"
	// DefaultSuitesDir is where suite definitions are discovered.
	DefaultSuitesDir = "suites"
	// DefaultDatabase is the ClickHouse database reports land in.
	DefaultDatabase = "perfgate"
	// DefaultSubmitAttempts bounds sink submission retries.
	DefaultSubmitAttempts = 3
	// RecordsTable is the ClickHouse table holding report records.
	RecordsTable = "perfgate_records"
	// MigrationsTable tracks which schema migrations have been applied.
	MigrationsTable = "perfgate_schema_migrations"
)
