// Package csvio reads and writes ODP observation files line by line.
//
// A file is a header line followed by data lines. The header alone defines
// the dialect (see domain.ParseCsvFormat), so a Reader infers the format
// before handing out any data line.
package csvio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/couchcryptid/met-odp-etl/internal/domain"
)

// maxLineSize bounds a single line. Reference lines are under 400 bytes.
const maxLineSize = 1 << 20

const byteOrderMark = "\ufeff"

// ErrEmptyInput is returned when the input has no header line.
var ErrEmptyInput = errors.New("input has no header line")

// FormatParser infers a CsvFormat from a header line.
type FormatParser interface {
	ParseFormat(header string) (domain.CsvFormat, error)
}

// FormatParserFunc adapts a function to FormatParser.
type FormatParserFunc func(header string) (domain.CsvFormat, error)

func (f FormatParserFunc) ParseFormat(header string) (domain.CsvFormat, error) {
	return f(header)
}

// Line is one data line. Number is 1-based and counts the header.
type Line struct {
	Number int
	Text   string
}

// LineError ties a failure to its line in the input.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Option configures a Reader.
type Option func(*Reader)

// WithFormatParser replaces domain.ParseCsvFormat for header inference,
// e.g. with a cache.
func WithFormatParser(p FormatParser) Option {
	return func(r *Reader) { r.parser = p }
}

// Reader reads the header and data lines of one file.
type Reader struct {
	scanner *bufio.Scanner
	parser  FormatParser
	header  string
	format  domain.CsvFormat
	line    int
}

// NewReader reads the header line from r and infers the format. Header
// failures are returned as *LineError for line 1.
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	rd := &Reader{
		scanner: bufio.NewScanner(r),
		parser:  FormatParserFunc(domain.ParseCsvFormat),
	}
	for _, opt := range opts {
		opt(rd)
	}
	rd.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !rd.scanner.Scan() {
		if err := rd.scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, ErrEmptyInput
	}
	rd.line = 1
	rd.header = strings.TrimPrefix(rd.scanner.Text(), byteOrderMark)

	format, err := rd.parser.ParseFormat(rd.header)
	if err != nil {
		return nil, &LineError{Line: 1, Err: err}
	}
	rd.format = format
	return rd, nil
}

// Header returns the header line as read.
func (r *Reader) Header() string { return r.header }

// Format returns the format inferred from the header.
func (r *Reader) Format() domain.CsvFormat { return r.format }

// Next returns the next non-blank data line, or io.EOF at end of input.
func (r *Reader) Next() (Line, error) {
	for r.scanner.Scan() {
		r.line++
		text := r.scanner.Text()
		if text == "" {
			continue
		}
		return Line{Number: r.line, Text: text}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Line{}, fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	return Line{}, io.EOF
}

// ExtractBatch reads up to batchSize data lines. It returns io.EOF only
// once no lines are left, so the last partial batch comes back with a nil
// error.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch := make([]Line, 0, batchSize)
	for len(batch) < batchSize {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			if len(batch) == 0 {
				return nil, io.EOF
			}
			return batch, nil
		}
		if err != nil {
			return batch, err
		}
		batch = append(batch, line)
	}
	return batch, nil
}

// Records parses the remaining lines into records, yielding records the
// filter keeps. Malformed lines yield a *LineError and iteration goes on
// until the consumer stops. A read failure ends the sequence.
func (r *Reader) Records(filter *domain.RecordFilter) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		for {
			line, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(domain.RawRecord{}, err)
				return
			}

			rec, err := domain.ParseRawRecord(line.Text, r.format)
			if err != nil {
				if !yield(domain.RawRecord{}, &LineError{Line: line.Number, Err: err}) {
					return
				}
				continue
			}
			if !filter.Keep(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ReadCSV reads the header from r and returns the detected format together
// with the sequence of records that pass filter.
func ReadCSV(r io.Reader, filter *domain.RecordFilter, opts ...Option) (domain.CsvFormat, iter.Seq2[domain.RawRecord, error], error) {
	rd, err := NewReader(r, opts...)
	if err != nil {
		return domain.CsvFormat{}, nil, err
	}
	return rd.Format(), rd.Records(filter), nil
}
