// Package metrics reads auxiliary measurements from an append-only
// channel of newline-delimited JSON records, as emitted by workloads
// that report latencies and counters out-of-band.
package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

var (
	// ErrEmptyPath is returned when a channel is opened without a path.
	ErrEmptyPath = errors.New("channel path must not be empty")
	// ErrEmptyField is returned when an extraction has no field path.
	ErrEmptyField = errors.New("extraction field must not be empty")
	// ErrUnknownSelect is returned for unrecognized selection modes.
	ErrUnknownSelect = errors.New("unknown selection mode")
)

// Channel tails a newline-delimited JSON file. Each Drain call returns
// the records appended since the previous call, so one channel can be
// shared across the iterations of a pipe without re-reading history.
type Channel struct {
	log    logrus.FieldLogger
	path   string
	offset int64
}

// NewChannel wraps the NDJSON file at path. The file does not have to
// exist yet; workloads typically create it on first write.
func NewChannel(log logrus.FieldLogger, path string) (*Channel, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	return &Channel{
		log: log.WithFields(logrus.Fields{
			"component": "metrics_channel",
			"path":      path,
		}),
		path: path,
	}, nil
}

// Path returns the file backing the channel.
func (c *Channel) Path() string {
	return c.path
}

// Drain reads every record appended since the last call. Lines that
// are not valid JSON objects are skipped with a warning rather than
// failing the read, since a workload may interleave diagnostics with
// its metrics.
func (c *Channel) Drain() ([][]byte, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open metrics channel: %w", err)
	}

	defer f.Close()

	if c.offset > 0 {
		if _, err := f.Seek(c.offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seek metrics channel: %w", err)
		}
	}

	scanner := bufio.NewScanner(f)
	// Metric records can be large, so allow lines well past the
	// scanner default.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var records [][]byte

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if !gjson.ValidBytes(line) {
			c.log.WithField("line", string(line)).Warn("Skipping invalid metrics record")

			continue
		}

		record := make([]byte, len(line))
		copy(record, line)
		records = append(records, record)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read metrics channel: %w", err)
	}

	end, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("tell metrics channel: %w", err)
	}

	c.offset = end

	c.log.WithField("records", len(records)).Debug("Drained metrics channel")

	return records, nil
}
