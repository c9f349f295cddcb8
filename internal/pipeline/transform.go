package pipeline

import (
	"context"

	"github.com/couchcryptid/met-odp-etl/internal/csvio"
	"github.com/couchcryptid/met-odp-etl/internal/domain"
)

// RecordTransformer implements Transformer for lines of one input format.
type RecordTransformer struct {
	format domain.CsvFormat
	filter *domain.RecordFilter
}

// NewTransformer creates a RecordTransformer. Pass a nil filter to keep
// every record.
func NewTransformer(format domain.CsvFormat, filter *domain.RecordFilter) *RecordTransformer {
	return &RecordTransformer{format: format, filter: filter}
}

// Transform parses the line and upgrades it to a MetRecord. Records the
// filter drops are not converted and come back as ErrFiltered.
func (t *RecordTransformer) Transform(_ context.Context, line csvio.Line) (domain.Observation, error) {
	raw, err := domain.ParseRawRecord(line.Text, t.format)
	if err != nil {
		return domain.Observation{}, err
	}
	if !t.filter.Keep(raw) {
		return domain.Observation{}, ErrFiltered
	}

	met, err := domain.NewMetRecord(raw)
	if err != nil {
		return domain.Observation{}, err
	}
	return domain.Observation{Line: line.Number, Raw: raw, Met: met}, nil
}
