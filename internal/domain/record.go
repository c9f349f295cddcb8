package domain

import (
	"cmp"
	"encoding/json"
	"errors"
	"maps"
	"math"
	"strconv"
	"strings"
)

// RecordKey identifies an observation: one station at one time stamp.
type RecordKey struct {
	Time          string
	StationNumber string
}

// RawRecord is one data line as text. Time and StationNumber are always
// present; every other field is either present or absent, where absent
// covers both a missing value in the source and a column that was never
// selected.
//
// Identity and ordering use the RecordKey only; the other fields are payload.
type RawRecord struct {
	Time          string
	StationNumber string
	values        map[Field]string
}

// NewRawRecord builds a record from already trimmed values. Entries for the
// mandatory fields in values are ignored.
func NewRawRecord(time, stationNumber string, values map[Field]string) RawRecord {
	r := RawRecord{Time: time, StationNumber: stationNumber, values: make(map[Field]string, len(values))}
	for f, v := range values {
		if f.Valid() && f.Category() != CategoryMandatory {
			r.values[f] = v
		}
	}
	return r
}

// ParseRawRecord splits line on the format's delimiter and maps the n-th
// token to the n-th field of the format. Padding is trimmed when the format
// is aligned. Tokens equal to any missing-value literal become absent.
func ParseRawRecord(line string, format CsvFormat) (RawRecord, error) {
	tokens := strings.Split(line, format.Delimiter.String())
	fields := format.Fields.fields
	if len(tokens) != len(fields) {
		return RawRecord{}, &ParseRecordError{Err: ErrTokenCount, Expected: len(fields), Got: len(tokens)}
	}

	r := RawRecord{values: make(map[Field]string, len(fields))}
	for i, f := range fields {
		token := tokens[i]
		if format.Aligned {
			token = strings.TrimSpace(token)
		}

		switch f {
		case FieldTime, FieldStationNumber:
			if isMissing(token) {
				return RawRecord{}, &ParseRecordError{Err: ErrMandatoryMissing, Field: f}
			}
			if f == FieldTime {
				r.Time = token
			} else {
				r.StationNumber = token
			}
		default:
			if !isMissing(token) {
				r.values[f] = token
			}
		}
	}
	return r, nil
}

// Value returns the text of any field, including the mandatory ones.
func (r RawRecord) Value(f Field) (string, bool) {
	switch f {
	case FieldTime:
		return r.Time, true
	case FieldStationNumber:
		return r.StationNumber, true
	}
	v, ok := r.values[f]
	return v, ok
}

// StationName is a shortcut for Value(FieldStationName).
func (r RawRecord) StationName() (string, bool) {
	return r.Value(FieldStationName)
}

func (r RawRecord) Key() RecordKey {
	return RecordKey{Time: r.Time, StationNumber: r.StationNumber}
}

// Compare orders records by time stamp, then station number. Both compare
// numerically when they parse as integers.
func (r RawRecord) Compare(other RawRecord) int {
	if c := compareNumeric(r.Time, other.Time); c != 0 {
		return c
	}
	return compareNumeric(r.StationNumber, other.StationNumber)
}

func compareNumeric(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmp.Compare(x, y)
	}
	return strings.Compare(a, b)
}

// CSV renders the record as a line in format. Absent fields are written as
// the format's missing value; cells are padded like the header.
func (r RawRecord) CSV(format CsvFormat) string {
	var b strings.Builder
	for i, f := range format.Fields.fields {
		if i > 0 {
			b.WriteRune(format.Delimiter.char)
		}
		v, ok := r.Value(f)
		if !ok {
			v = format.Missing.String()
		}
		format.writeCell(&b, f, v)
	}
	return b.String()
}

var errNotFinite = errors.New("value is not finite")

// MetRecord is a RawRecord with numeric columns parsed. Station name,
// quality flags and the EOR marker stay text.
type MetRecord struct {
	Time          int64
	StationNumber int
	numbers       map[Field]float64
	texts         map[Field]string
}

// NewMetRecord converts raw. Absent values stay absent; any value that does
// not parse fails the whole conversion.
func NewMetRecord(raw RawRecord) (MetRecord, error) {
	t, err := strconv.ParseInt(raw.Time, 10, 64)
	if err != nil {
		return MetRecord{}, &ConvertRecordError{Field: FieldTime, Value: raw.Time, Err: err}
	}
	station, err := strconv.ParseUint(raw.StationNumber, 10, strconv.IntSize-1)
	if err != nil {
		return MetRecord{}, &ConvertRecordError{Field: FieldStationNumber, Value: raw.StationNumber, Err: err}
	}

	m := MetRecord{
		Time:          t,
		StationNumber: int(station),
		numbers:       make(map[Field]float64, len(raw.values)),
		texts:         make(map[Field]string),
	}
	for f, v := range raw.values {
		if !f.Numeric() {
			m.texts[f] = v
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err == nil && (math.IsNaN(n) || math.IsInf(n, 0)) {
			err = errNotFinite
		}
		if err != nil {
			return MetRecord{}, &ConvertRecordError{Field: f, Value: v, Err: err}
		}
		m.numbers[f] = n
	}
	return m, nil
}

// Number returns a numeric field's value.
func (m MetRecord) Number(f Field) (float64, bool) {
	v, ok := m.numbers[f]
	return v, ok
}

// Text returns a textual field's value.
func (m MetRecord) Text(f Field) (string, bool) {
	v, ok := m.texts[f]
	return v, ok
}

// Key returns the identity of the record in the same form as RawRecord.Key.
func (m MetRecord) Key() RecordKey {
	return RecordKey{
		Time:          strconv.FormatInt(m.Time, 10),
		StationNumber: strconv.Itoa(m.StationNumber),
	}
}

type metRecordJSON struct {
	Time          int64             `json:"time"`
	StationNumber int               `json:"station_number"`
	Values        map[Field]float64 `json:"values,omitempty"`
	Texts         map[Field]string  `json:"texts,omitempty"`
}

// MarshalJSON writes values keyed by header title, e.g.
// {"time":202501010000,"station_number":13704,"values":{"t":-1.2},"texts":{"EOR":"EOR"}}.
func (m MetRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(metRecordJSON{
		Time:          m.Time,
		StationNumber: m.StationNumber,
		Values:        m.numbers,
		Texts:         m.texts,
	})
}

func (m *MetRecord) UnmarshalJSON(data []byte) error {
	var v metRecordJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.Time = v.Time
	m.StationNumber = v.StationNumber
	m.numbers = maps.Clone(v.Values)
	m.texts = maps.Clone(v.Texts)
	if m.numbers == nil {
		m.numbers = map[Field]float64{}
	}
	if m.texts == nil {
		m.texts = map[Field]string{}
	}
	return nil
}

// Observation is one accepted data line in both forms, as handed to sinks.
// Line is the 1-based line number in the source file.
type Observation struct {
	Line int
	Raw  RawRecord
	Met  MetRecord
}
