package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perfgate/internal/stats"
)

// ResultsFormatter formats per-pipe records as a table.
type ResultsFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewResultsFormatter creates a new results table formatter.
func NewResultsFormatter(log logrus.FieldLogger, renderer Renderer) *ResultsFormatter {
	return &ResultsFormatter{
		log:      log.WithField("component", "results_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts a report into a formatted table string with failure details.
func (f *ResultsFormatter) Format(report *stats.Report) string {
	if len(report.Records) == 0 {
		return "No pipes executed"
	}

	var (
		headers = []string{"Pipe", "Measurement", "Status", "Iterations", "Statistics", "Criteria", "Details"}
		rows    = make([][]string, 0, len(report.Records))
		failed  = make([]*stats.Record, 0)
	)

	for _, record := range report.Records {
		var (
			status  = f.colors.FormatStatus(record.Status)
			details string
		)

		switch record.Status {
		case stats.StatusFailed:
			failed = append(failed, record)

			if record.Err != "" {
				// Truncate long error messages
				errMsg := record.Err
				if len(errMsg) > 50 {
					errMsg = errMsg[:47] + "..."
				}

				details = f.colors.Muted(errMsg)
			}
		case stats.StatusSkipped:
			details = f.colors.Muted(record.SkipReason)
		case stats.StatusPassed:
		}

		criteriaPassed := 0
		for _, outcome := range record.Criteria {
			if outcome.Passed {
				criteriaPassed++
			}
		}

		rows = append(rows, []string{
			record.Tag,
			formatMeasurement(record),
			status,
			f.colors.FormatIterations(record.IterationsRun, record.Iterations),
			formatStatistics(record.Statistics),
			f.colors.FormatCriteria(criteriaPassed, len(record.Criteria)),
			details,
		})
	}

	output := "\n" + f.colors.Header("▸ Pipe Results") + "\n\n" + f.renderer.RenderToString(headers, rows)

	// Add detailed failure section if there are any failures
	if len(failed) > 0 {
		output += f.formatFailureDetails(failed)
	}

	return output
}

// formatFailureDetails creates a detailed section showing all failed criteria
func (f *ResultsFormatter) formatFailureDetails(failed []*stats.Record) string {
	var builder strings.Builder

	builder.WriteString("\n\n" + f.colors.Header("▸ Failed Pipe Details") + "\n\n")

	for i, record := range failed {
		if i > 0 {
			builder.WriteString("\n")
		}

		builder.WriteString(fmt.Sprintf("%s (%s)\n", record.Tag, formatMeasurement(record)))

		wroteCriteria := false

		for _, outcome := range record.Criteria {
			if outcome.Passed {
				continue
			}

			wroteCriteria = true

			builder.WriteString(
				fmt.Sprintf("  %s %s: %s\n",
					f.colors.Failure("✗"),
					f.colors.Bold("Criterion"),
					outcome.Stat,
				),
			)
			builder.WriteString(
				fmt.Sprintf("    %s: %s\n",
					f.colors.Info("Expected"),
					outcome.Expected,
				),
			)
			builder.WriteString(
				fmt.Sprintf("    %s: %s\n",
					f.colors.Warning("Actual"),
					formatFloat(outcome.Actual),
				),
			)

			if outcome.Error != "" {
				builder.WriteString(
					fmt.Sprintf("    %s: %s\n",
						f.colors.Failure("Error"),
						outcome.Error,
					),
				)
			}
		}

		// No criterion details means the pipe failed before evaluation,
		// show the general error instead.
		if !wroteCriteria {
			message := record.Err
			if message == "" {
				message = "pipe failed (no details available)"
			}

			builder.WriteString(
				fmt.Sprintf("  %s: %s\n",
					f.colors.Failure("Error"),
					message,
				),
			)
		}
	}

	return builder.String()
}

func formatMeasurement(record *stats.Record) string {
	if record.Unit == "" {
		return record.Measurement
	}

	return fmt.Sprintf("%s (%s)", record.Measurement, record.Unit)
}

// formatStatistics renders reduced statistics as "name=value" pairs in
// stable name order.
func formatStatistics(statistics map[string]float64) string {
	if len(statistics) == 0 {
		return "-"
	}

	names := make([]string, 0, len(statistics))
	for name := range statistics {
		names = append(names, name)
	}

	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+formatFloat(statistics[name]))
	}

	return strings.Join(pairs, " ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatDuration formats a duration for human-readable output.
// Handles microseconds, milliseconds, seconds, and minutes.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}

	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}

	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%.1fm", d.Minutes())
}
