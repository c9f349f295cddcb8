package domain

import (
	"slices"
	"strconv"
	"strings"
)

// RecordFilter keeps or drops records by station. Only station filtering is
// supported.
type RecordFilter struct {
	names   []string
	numbers []string
	exclude bool
}

// ParseRecordFilter parses a comma-separated list of station numbers and
// names, e.g. "13704, Budapest Pestszentlőrinc". Tokens that parse as
// non-negative integers are station numbers, the rest are names. With invert
// the filter drops matching records instead of keeping them.
//
// A blank spec yields a nil filter.
func ParseRecordFilter(spec string, invert bool) (*RecordFilter, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	f := &RecordFilter{exclude: invert}
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, &ParseRecordFilterError{Spec: spec, Reason: "empty station entry"}
		}
		if _, err := strconv.ParseUint(token, 10, 64); err == nil {
			if !slices.Contains(f.numbers, token) {
				f.numbers = append(f.numbers, token)
			}
			continue
		}
		if !slices.ContainsFunc(f.names, func(n string) bool { return strings.EqualFold(n, token) }) {
			f.names = append(f.names, token)
		}
	}
	return f, nil
}

// Numbers returns the station numbers of the filter.
func (f *RecordFilter) Numbers() []string { return slices.Clone(f.numbers) }

// Names returns the station names of the filter.
func (f *RecordFilter) Names() []string { return slices.Clone(f.names) }

// Exclude reports whether matching records are dropped.
func (f *RecordFilter) Exclude() bool { return f.exclude }

// Keep reports whether rec passes the filter. A record matches when its
// station number is listed, or its station name is listed (compared
// case-insensitively). A nil filter keeps everything.
func (f *RecordFilter) Keep(rec RawRecord) bool {
	if f == nil {
		return true
	}
	return f.matches(rec) != f.exclude
}

func (f *RecordFilter) matches(rec RawRecord) bool {
	if slices.Contains(f.numbers, rec.StationNumber) {
		return true
	}
	name, ok := rec.StationName()
	if !ok {
		return false
	}
	return slices.ContainsFunc(f.names, func(n string) bool { return strings.EqualFold(n, name) })
}
