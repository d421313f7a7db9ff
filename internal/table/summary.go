package table

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/stats"
)

// SummaryFormatter formats run totals as a table.
type SummaryFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewSummaryFormatter creates a new summary table formatter.
func NewSummaryFormatter(log logrus.FieldLogger, renderer Renderer) *SummaryFormatter {
	return &SummaryFormatter{
		log:      log.WithField("component", "summary_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts a report's outcome counts into a formatted table string.
func (f *SummaryFormatter) Format(report *stats.Report) string {
	summary := report.Summarize()

	var passRate float64
	if summary.Total > 0 {
		passRate = float64(summary.Passed) / float64(summary.Total) * 100.0
	}

	// Format values with colors
	passedValue := fmt.Sprintf("%d (%s)", summary.Passed, f.colors.FormatPercentage(passRate))
	if summary.Passed == summary.Total {
		passedValue = f.colors.Success(fmt.Sprintf("%d (%.1f%%)", summary.Passed, passRate))
	}

	failedValue := f.colors.Success("0")
	if summary.Failed > 0 {
		failedValue = f.colors.Failure(fmt.Sprintf("%d", summary.Failed))
	}

	skippedValue := f.colors.Muted("0")
	if summary.Skipped > 0 {
		skippedValue = f.colors.Warning(fmt.Sprintf("%d", summary.Skipped))
	}

	var (
		headers = []string{"Metric", "Value"}
		rows    = [][]string{
			{"Exercise", f.colors.Bold(report.Exercise)},
			{"Run ID", f.colors.Muted(report.RunID)},
			{"Total Pipes", f.colors.Bold(fmt.Sprintf("%d", summary.Total))},
			{"Passed", passedValue},
			{"Failed", failedValue},
			{"Skipped", skippedValue},
			{"Duration", formatDuration(report.Duration)},
		}
	)

	return "\n" + f.colors.Header("▸ Summary") + "\n\n" + f.renderer.RenderToString(headers, rows)
}
