package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/stats"
)

// fileSink writes one NDJSON file per run under the output directory,
// one line per report record.
type fileSink struct {
	log logrus.FieldLogger
	dir string
}

// NewFile creates a sink writing reports under dir.
func NewFile(log logrus.FieldLogger, dir string) Sink {
	return &fileSink{
		log: log.WithField("component", "file_sink"),
		dir: dir,
	}
}

func (s *fileSink) Start(_ context.Context) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	return nil
}

func (s *fileSink) Stop() error {
	return nil
}

func (s *fileSink) Submit(_ context.Context, report *stats.Report) error {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	for _, r := range flatten(report) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.ndjson", report.Exercise, report.RunID))

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"path":    path,
		"records": len(report.Records),
	}).Info("Report written")

	return nil
}
