package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// UnknownFieldError is returned when a title matches no catalog entry.
type UnknownFieldError struct {
	Title string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("invalid field title %q", e.Title)
}

// InvalidDelimiterError is returned for characters that cannot separate
// columns (anything but ASCII punctuation or whitespace).
type InvalidDelimiterError struct {
	Char rune
}

func (e *InvalidDelimiterError) Error() string {
	return "invalid delimiter character " + strconv.QuoteRune(e.Char)
}

// InvalidMissingValueError is returned for strings that are not a known
// missing-value literal.
type InvalidMissingValueError struct {
	Value string
}

func (e *InvalidMissingValueError) Error() string {
	return fmt.Sprintf("unknown missing value pattern %q", e.Value)
}

// HeaderErrorKind names the header rule that was violated.
type HeaderErrorKind uint8

const (
	FoundNoDelimiters HeaderErrorKind = iota + 1
	FoundDuplicates
	UnknownField
	MissingTime
	MissingStationNumber
	InvalidEorPosition
	InvalidTimeAlignment
	InvalidDelimiter
)

func (k HeaderErrorKind) String() string {
	switch k {
	case FoundNoDelimiters:
		return "no delimiters found"
	case FoundDuplicates:
		return "duplicate field found"
	case UnknownField:
		return "unknown field"
	case MissingTime:
		return "missing `Time` at position #1"
	case MissingStationNumber:
		return "missing `StationNumber` at position #2"
	case InvalidEorPosition:
		return "`EOR` must be last if present"
	case InvalidTimeAlignment:
		return "invalid characters detected before `Time`"
	case InvalidDelimiter:
		return "invalid delimiter found"
	default:
		return fmt.Sprintf("header error kind %d", uint8(k))
	}
}

// Sentinels for errors.Is matching against a *ParseHeaderError.
var (
	ErrFoundNoDelimiters    = &ParseHeaderError{Kind: FoundNoDelimiters}
	ErrFoundDuplicates      = &ParseHeaderError{Kind: FoundDuplicates}
	ErrUnknownField         = &ParseHeaderError{Kind: UnknownField}
	ErrMissingTime          = &ParseHeaderError{Kind: MissingTime}
	ErrMissingStationNumber = &ParseHeaderError{Kind: MissingStationNumber}
	ErrInvalidEorPosition   = &ParseHeaderError{Kind: InvalidEorPosition}
	ErrInvalidTimeAlignment = &ParseHeaderError{Kind: InvalidTimeAlignment}
	ErrInvalidDelimiter     = &ParseHeaderError{Kind: InvalidDelimiter}
)

// ParseHeaderError reports why a header line was rejected.
//
// Token carries the duplicated title for FoundDuplicates and the offending
// substring for InvalidDelimiter. Err carries the underlying
// *UnknownFieldError or *InvalidDelimiterError where one exists.
type ParseHeaderError struct {
	Kind  HeaderErrorKind
	Token string
	Err   error
}

func (e *ParseHeaderError) Error() string {
	var msg string
	switch {
	case e.Err != nil:
		msg = e.Err.Error()
	case e.Kind == FoundDuplicates || e.Kind == InvalidDelimiter:
		msg = fmt.Sprintf("%s %q", e.Kind, e.Token)
	default:
		msg = e.Kind.String()
	}
	return "failed to parse header, " + msg
}

func (e *ParseHeaderError) Unwrap() error { return e.Err }

// Is matches any *ParseHeaderError of the same kind, so the Err* sentinels
// work with errors.Is regardless of Token and Err.
func (e *ParseHeaderError) Is(target error) bool {
	t, ok := target.(*ParseHeaderError)
	return ok && t.Kind == e.Kind
}

func headerError(kind HeaderErrorKind) *ParseHeaderError {
	return &ParseHeaderError{Kind: kind}
}

// ParseFieldFilterError is returned when an include or exclude list cannot
// be turned into a FieldFilter.
type ParseFieldFilterError struct {
	List string
	Err  error
}

func (e *ParseFieldFilterError) Error() string {
	return fmt.Sprintf("invalid field list %q: %v", e.List, e.Err)
}

func (e *ParseFieldFilterError) Unwrap() error { return e.Err }

// Causes carried by a *ParseRecordError.
var (
	ErrTokenCount       = errors.New("wrong number of tokens")
	ErrMandatoryMissing = errors.New("mandatory field missing")
)

// ParseRecordError is returned for a data line that does not fit its format.
// Expected and Got are token counts (ErrTokenCount); Field names the
// offending mandatory column (ErrMandatoryMissing).
type ParseRecordError struct {
	Err      error
	Expected int
	Got      int
	Field    Field
}

func (e *ParseRecordError) Error() string {
	if errors.Is(e.Err, ErrTokenCount) {
		return fmt.Sprintf("failed to parse record, %v: expected %d, got %d", e.Err, e.Expected, e.Got)
	}
	return fmt.Sprintf("failed to parse record, %v: %s", e.Err, e.Field)
}

func (e *ParseRecordError) Unwrap() error { return e.Err }

// ConvertRecordError is returned when a RawRecord value cannot be converted
// to its numeric form.
type ConvertRecordError struct {
	Field Field
	Value string
	Err   error
}

func (e *ConvertRecordError) Error() string {
	return fmt.Sprintf("failed to convert record, field %s value %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConvertRecordError) Unwrap() error { return e.Err }

// ParseRecordFilterError is returned for a malformed station filter.
type ParseRecordFilterError struct {
	Spec   string
	Reason string
}

func (e *ParseRecordFilterError) Error() string {
	return fmt.Sprintf("invalid station filter %q: %s", e.Spec, e.Reason)
}
