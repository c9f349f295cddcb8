package csvio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/couchcryptid/met-odp-etl/internal/domain"
)

const newline = "\n"

// Writer renders records in a fixed output format. The header is written
// before the first record, or on Flush if no record came.
// It implements pipeline.BatchLoader.
type Writer struct {
	w           *bufio.Writer
	format      domain.CsvFormat
	wroteHeader bool
	records     int
}

func NewWriter(w io.Writer, format domain.CsvFormat) *Writer {
	return &Writer{w: bufio.NewWriter(w), format: format}
}

// Format returns the output format.
func (w *Writer) Format() domain.CsvFormat { return w.format }

// Records returns the number of records written so far.
func (w *Writer) Records() int { return w.records }

func (w *Writer) writeHeader() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	if _, err := w.w.WriteString(w.format.String() + newline); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Write renders one record.
func (w *Writer) Write(rec domain.RawRecord) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	if _, err := w.w.WriteString(rec.CSV(w.format) + newline); err != nil {
		return fmt.Errorf("write record %s/%s: %w", rec.Time, rec.StationNumber, err)
	}
	w.records++
	return nil
}

// LoadBatch writes the raw form of each observation.
func (w *Writer) LoadBatch(ctx context.Context, batch []domain.Observation) error {
	for i := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(batch[i].Raw); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the header if nothing was written yet and flushes buffered
// output.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteCSV writes a header and every record in format.
func WriteCSV(w io.Writer, records iter.Seq[domain.RawRecord], format domain.CsvFormat) error {
	cw := NewWriter(w, format)
	for rec := range records {
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// ConvertCSV reads r, keeps the records filter accepts and writes them to w
// in format. The first malformed line aborts the conversion. It returns the
// number of records written.
func ConvertCSV(r io.Reader, w io.Writer, filter *domain.RecordFilter, format domain.CsvFormat, opts ...Option) (int, error) {
	_, records, err := ReadCSV(r, filter, opts...)
	if err != nil {
		return 0, err
	}

	cw := NewWriter(w, format)
	for rec, err := range records {
		if err != nil {
			return cw.Records(), err
		}
		if err := cw.Write(rec); err != nil {
			return cw.Records(), err
		}
	}
	return cw.Records(), cw.Flush()
}
