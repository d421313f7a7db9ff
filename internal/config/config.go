// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	errUnknownSink      = errors.New("unknown sink type")
	errOutputDirMissing = errors.New("file sink requires an output directory")
	errHostMissing      = errors.New("clickhouse sink requires a host")
	errPortOutOfRange   = errors.New("clickhouse native port out of range")
	errAttemptsInvalid  = errors.New("submit attempts must be at least 1")
)

// Config holds the application configuration
type Config struct {
	LogLevel             string
	Sink                 string
	OutputDir            string
	SuitesDir            string
	BaselineFile         string
	SubmitAttempts       int
	ClickhouseHost       string
	ClickhouseNativePort int
	ClickhouseDatabase   string
	ClickhouseUsername   string
	ClickhousePassword   string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if the file doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Sink:               getEnv("PERFGATE_SINK", SinkNone),
		OutputDir:          getEnv("PERFGATE_OUTPUT_DIR", DefaultOutputDir),
		SuitesDir:          getEnv("PERFGATE_SUITES_DIR", DefaultSuitesDir),
		BaselineFile:       getEnv("PERFGATE_BASELINES", ""),
		ClickhouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickhouseDatabase: getEnv("CLICKHOUSE_DATABASE", DefaultDatabase),
		ClickhouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickhousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
	}

	// Parse numeric values
	nativePort, err := strconv.Atoi(getEnv("CLICKHOUSE_NATIVE_PORT", "9000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLICKHOUSE_NATIVE_PORT: %w", err)
	}

	cfg.ClickhouseNativePort = nativePort

	attempts, err := strconv.Atoi(getEnv("PERFGATE_SUBMIT_ATTEMPTS", strconv.Itoa(DefaultSubmitAttempts)))
	if err != nil {
		return nil, fmt.Errorf("invalid PERFGATE_SUBMIT_ATTEMPTS: %w", err)
	}

	cfg.SubmitAttempts = attempts

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks for values no sink could work with.
func (c *Config) Validate() error {
	switch c.Sink {
	case SinkNone, SinkFile, SinkClickHouse:
	default:
		return fmt.Errorf("%w: %q", errUnknownSink, c.Sink)
	}

	if c.Sink == SinkFile && c.OutputDir == "" {
		return errOutputDirMissing
	}

	if c.Sink == SinkClickHouse {
		if c.ClickhouseHost == "" {
			return errHostMissing
		}

		if c.ClickhouseNativePort < 1 || c.ClickhouseNativePort > 65535 {
			return fmt.Errorf("%w: %d", errPortOutOfRange, c.ClickhouseNativePort)
		}
	}

	if c.SubmitAttempts < 1 {
		return fmt.Errorf("%w: got %d", errAttemptsInvalid, c.SubmitAttempts)
	}

	return nil
}

// Address returns the native-protocol endpoint, host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.ClickhouseHost, c.ClickhouseNativePort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

func (c *Config) String() string {
	passwordDisplay := "(not set)"
	if c.ClickhousePassword != "" {
		passwordDisplay = "********"
	}

	baselineDisplay := c.BaselineFile
	if baselineDisplay == "" {
		baselineDisplay = "(none)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Log Level:                %s
Sink:                     %s
Output Directory:         %s
Suites Directory:         %s
Baseline File:            %s
Submit Attempts:          %d
ClickHouse Host:          %s
ClickHouse Native Port:   %d
ClickHouse Database:      %s
ClickHouse Username:      %s
ClickHouse Password:      %s`,
		c.LogLevel,
		c.Sink,
		c.OutputDir,
		c.SuitesDir,
		baselineDisplay,
		c.SubmitAttempts,
		c.ClickhouseHost,
		c.ClickhouseNativePort,
		c.ClickhouseDatabase,
		c.ClickhouseUsername,
		passwordDisplay,
	)
}
