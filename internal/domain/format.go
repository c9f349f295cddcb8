package domain

import (
	"strings"
	"unicode/utf8"
)

// MissingValue selects the literal written in place of an absent value.
type MissingValue uint8

const (
	// MissingMinus999 writes "-999", as in ODP source files.
	MissingMinus999 MissingValue = iota
	// MissingNull writes "null".
	MissingNull
	// MissingEmpty writes nothing.
	MissingEmpty
)

// ParseMissingValue accepts "-999", "null" (also "Null" and "NULL") and "".
func ParseMissingValue(s string) (MissingValue, error) {
	switch s {
	case "-999":
		return MissingMinus999, nil
	case "null", "Null", "NULL":
		return MissingNull, nil
	case "":
		return MissingEmpty, nil
	default:
		return 0, &InvalidMissingValueError{Value: s}
	}
}

func (m MissingValue) String() string {
	switch m {
	case MissingNull:
		return "null"
	case MissingEmpty:
		return ""
	default:
		return "-999"
	}
}

// isMissing reports whether a trimmed token is any known missing literal.
func isMissing(token string) bool {
	_, err := ParseMissingValue(token)
	return err == nil
}

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Delimiter separates columns. Only ASCII punctuation and ASCII whitespace
// qualify, so a value character is never mistaken for a separator.
type Delimiter struct {
	char rune
}

// DefaultDelimiter is the semicolon used by ODP files.
func DefaultDelimiter() Delimiter { return Delimiter{char: ';'} }

func NewDelimiter(ch rune) (Delimiter, error) {
	if !isASCIIPunctuation(ch) && !isASCIIWhitespace(ch) {
		return Delimiter{}, &InvalidDelimiterError{Char: ch}
	}
	return Delimiter{char: ch}, nil
}

func (d Delimiter) Rune() rune { return d.char }

// IsWhitespace reports whether the delimiter is a space, tab or line break.
func (d Delimiter) IsWhitespace() bool { return isASCIIWhitespace(d.char) }

func (d Delimiter) String() string { return string(d.char) }

func isASCIIPunctuation(ch rune) bool {
	return ch < utf8.RuneSelf && strings.ContainsRune(asciiPunctuation, ch)
}

func isASCIIWhitespace(ch rune) bool {
	switch ch {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	default:
		return false
	}
}

// CsvFormat is one complete dialect: column alignment, missing-value
// literal, delimiter and selected fields.
type CsvFormat struct {
	// Aligned pads every column to its catalog width, values right-aligned
	// except StationName. Unaligned columns are as wide as their values.
	Aligned bool
	// Missing only matters for output: it cannot be read back from a
	// header, so ParseCsvFormat fills in a heuristic default.
	Missing   MissingValue
	Delimiter Delimiter
	Fields    FieldConfig
}

// DefaultCsvFormat is the layout of unmodified ODP files.
func DefaultCsvFormat() CsvFormat {
	return CsvFormat{
		Aligned:   true,
		Missing:   MissingMinus999,
		Delimiter: DefaultDelimiter(),
		Fields:    NewFieldConfigWithAll(),
	}
}

// ParseCsvFormat infers the dialect that produced header.
//
// Alignment is judged by the whitespace in front of "Time", the delimiter is
// the single character between "Time" and "StationNumber". Missing is a
// best-effort default: "-999" when aligned, else "null" for whitespace
// delimiters, else empty. The field list is validated by ParseFieldConfig.
//
// Any 1 to 8 leading whitespace characters mark an aligned header, but
// String always pads Time to its full width with spaces, so only fully
// padded headers render back byte for byte.
func ParseCsvFormat(header string) (CsvFormat, error) {
	timeTitle := FieldTime.Title()
	timeIdx := strings.Index(header, timeTitle)
	if timeIdx < 0 {
		return CsvFormat{}, headerError(MissingTime)
	}

	aligned := false
	if timeIdx > 0 {
		if timeIdx > FieldTime.Width()-len(timeTitle) ||
			strings.IndexFunc(header[:timeIdx], func(r rune) bool { return !isASCIIWhitespace(r) }) >= 0 {
			return CsvFormat{}, headerError(InvalidTimeAlignment)
		}
		aligned = true
	}

	numberIdx := strings.Index(header, FieldStationNumber.Title())
	if numberIdx < 0 {
		return CsvFormat{}, headerError(MissingStationNumber)
	}

	delimIdx := timeIdx + len(timeTitle)
	if numberIdx > delimIdx+1 {
		return CsvFormat{}, &ParseHeaderError{Kind: InvalidDelimiter, Token: header[delimIdx:numberIdx]}
	}
	ch, _ := utf8.DecodeRuneInString(header[delimIdx:])
	delim, err := NewDelimiter(ch)
	if err != nil {
		return CsvFormat{}, &ParseHeaderError{Kind: InvalidDelimiter, Err: err}
	}

	missing := MissingEmpty
	switch {
	case aligned:
		missing = MissingMinus999
	case delim.IsWhitespace():
		missing = MissingNull
	}

	fields, err := ParseFieldConfig(header, delim)
	if err != nil {
		return CsvFormat{}, err
	}

	return CsvFormat{
		Aligned:   aligned,
		Missing:   missing,
		Delimiter: delim,
		Fields:    fields,
	}, nil
}

// String renders the header line of the format.
func (f CsvFormat) String() string {
	var b strings.Builder
	for i, field := range f.Fields.fields {
		if i > 0 {
			b.WriteRune(f.Delimiter.char)
		}
		f.writeCell(&b, field, field.Title())
	}
	return b.String()
}

func (f CsvFormat) Equal(other CsvFormat) bool {
	return f.Aligned == other.Aligned &&
		f.Missing == other.Missing &&
		f.Delimiter == other.Delimiter &&
		f.Fields.Equal(other.Fields)
}

// writeCell writes value padded to the field width when aligned. Padding
// leads, except for StationName where it trails. Width counts runes, so
// accented station names line up.
func (f CsvFormat) writeCell(b *strings.Builder, field Field, value string) {
	padding := 0
	if f.Aligned {
		padding = max(field.Width()-utf8.RuneCountInString(value), 0)
	}
	if field == FieldStationName {
		b.WriteString(value)
		b.WriteString(strings.Repeat(" ", padding))
		return
	}
	b.WriteString(strings.Repeat(" ", padding))
	b.WriteString(value)
}
