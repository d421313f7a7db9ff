package metrics

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Select decides which occurrence of a field wins when a workload
// emits several records per invocation.
type Select string

const (
	// SelectFirstPositive picks the first strictly positive occurrence.
	// Emitters often flush zero-valued defaults before the real sample
	// lands, so this is the default.
	SelectFirstPositive Select = "first_positive"
	// SelectFirst picks the first occurrence regardless of sign, for
	// fields where zero or negative values are legitimate.
	SelectFirst Select = "first"
)

// Extraction pulls one numeric leaf out of a batch of drained records.
// Field uses dotted path syntax for nested objects, e.g.
// "latencies_us.full_create_snapshot".
type Extraction struct {
	Field string
	// Scale multiplies the extracted value, e.g. 0.001 to convert
	// microseconds to milliseconds. Zero means no conversion.
	Scale float64
	// Select defaults to SelectFirstPositive when empty.
	Select Select
}

// Validate checks the extraction is well formed.
func (e Extraction) Validate() error {
	if e.Field == "" {
		return ErrEmptyField
	}

	switch e.Select {
	case "", SelectFirst, SelectFirstPositive:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSelect, e.Select)
	}

	return nil
}

// Apply scans the records in order and returns the selected value.
// It reports false when no record carries a matching occurrence.
func (e Extraction) Apply(records [][]byte) (float64, bool) {
	scale := e.Scale
	if scale == 0 {
		scale = 1
	}

	for _, record := range records {
		result := gjson.GetBytes(record, e.Field)
		if !result.Exists() || result.Type != gjson.Number {
			continue
		}

		value := result.Float() * scale

		switch e.Select {
		case SelectFirst:
			return value, true
		default:
			if value > 0 {
				return value, true
			}
		}
	}

	return 0, false
}
