package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger creates a new logger with the appropriate log level.
// The --verbose flag forces DebugLevel, otherwise the level comes from
// the LOG_LEVEL environment variable and defaults to InfoLevel.
func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	if verbose {
		log.SetLevel(logrus.DebugLevel)

		return log
	}

	levelName := os.Getenv("LOG_LEVEL")
	if levelName == "" {
		levelName = "info"
	}

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		fmt.Printf("Invalid LOG_LEVEL '%s', defaulting to 'info'\n", levelName)

		level = logrus.InfoLevel
	}

	log.SetLevel(level)

	return log
}
