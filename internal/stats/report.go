package stats

import "time"

// Status classifies a pipe's outcome in the report. Skipped is distinct
// from failed so reports can tell "not applicable" apart from broken.
type Status string

// Pipe outcomes.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// CriterionOutcome records one criterion evaluation with the actual and
// expected values.
type CriterionOutcome struct {
	Stat     string  `json:"stat"`
	Op       Op      `json:"op"`
	Expected string  `json:"expected"`
	Actual   float64 `json:"actual"`
	Passed   bool    `json:"passed"`
	Error    string  `json:"error,omitempty"`
}

// Record is the reported result of one pipe: the reduced statistics for
// its measurement plus every criterion outcome.
type Record struct {
	Tag           string             `json:"tag"`
	Measurement   string             `json:"measurement"`
	Unit          string             `json:"unit,omitempty"`
	Status        Status             `json:"status"`
	SkipReason    string             `json:"skip_reason,omitempty"`
	Iterations    int                `json:"iterations"`
	IterationsRun int                `json:"iterations_run"`
	Statistics    map[string]float64 `json:"statistics,omitempty"`
	Criteria      []CriterionOutcome `json:"criteria,omitempty"`
	Tags          map[string]string  `json:"tags,omitempty"`
	Err           string             `json:"error,omitempty"`

	// err carries the typed pipe failure for aggregation.
	err error
}

// Report is the full outcome of one exercise run, one record per pipe
// in registration order.
type Report struct {
	Exercise  string            `json:"exercise"`
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Custom    map[string]string `json:"custom,omitempty"`
	Records   []*Record         `json:"records"`
}

// Lookup returns the record for a (tag, measurement) pair, or nil when
// no pipe reported it.
func (r *Report) Lookup(tag, measurement string) *Record {
	for _, rec := range r.Records {
		if rec.Tag == tag && rec.Measurement == measurement {
			return rec
		}
	}

	return nil
}

// Summary totals a report by outcome.
type Summary struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// Summarize counts records per outcome.
func (r *Report) Summarize() Summary {
	s := Summary{Total: len(r.Records)}

	for _, rec := range r.Records {
		switch rec.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}

	return s
}
