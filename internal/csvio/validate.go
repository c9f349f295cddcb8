package csvio

import (
	"errors"
	"io"

	"github.com/couchcryptid/met-odp-etl/internal/domain"
)

// maxReportedErrors caps Report.Errors; Report.Invalid keeps counting.
const maxReportedErrors = 50

// Report summarizes a validation run.
type Report struct {
	Format   domain.CsvFormat
	Lines    int // data lines read
	Valid    int // lines converted to MetRecord
	Filtered int // lines parsed but rejected by the record filter
	Invalid  int
	Errors   []*LineError
}

// OK reports whether every line passed.
func (r Report) OK() bool { return r.Invalid == 0 }

// ValidateCSV checks every data line of r by converting it to a MetRecord.
// Lines the filter rejects are only parsed, not converted. Line failures
// are collected in the report; the error is reserved for header and read
// failures.
func ValidateCSV(r io.Reader, filter *domain.RecordFilter, opts ...Option) (Report, error) {
	rd, err := NewReader(r, opts...)
	if err != nil {
		return Report{}, err
	}

	report := Report{Format: rd.Format()}
	for {
		line, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		if err != nil {
			return report, err
		}
		report.Lines++

		if err := validateLine(line, rd.Format(), filter, &report); err != nil {
			report.Invalid++
			if len(report.Errors) < maxReportedErrors {
				report.Errors = append(report.Errors, &LineError{Line: line.Number, Err: err})
			}
		}
	}
}

func validateLine(line Line, format domain.CsvFormat, filter *domain.RecordFilter, report *Report) error {
	raw, err := domain.ParseRawRecord(line.Text, format)
	if err != nil {
		return err
	}
	if !filter.Keep(raw) {
		report.Filtered++
		return nil
	}
	if _, err := domain.NewMetRecord(raw); err != nil {
		return err
	}
	report.Valid++
	return nil
}
