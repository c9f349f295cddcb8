package domain

import (
	"errors"
	"slices"
	"strings"
)

// FieldConfig is the ordered list of columns present in one file. For input
// it describes what every line must contain; for output it selects columns.
type FieldConfig struct {
	fields []Field
}

// NewFieldConfigWithAll selects every catalog field.
func NewFieldConfigWithAll() FieldConfig {
	return NewFieldConfig(true, true, true, true, nil)
}

// NewFieldConfig selects fields by category, then applies filter.
//
// Time and StationNumber are always included. A field selected by its
// category is dropped when filter excludes it; a field not selected by its
// category is added when filter includes it. Filter entries that do not
// change the outcome have no effect. The result keeps catalog order.
func NewFieldConfig(info, values, q, eor bool, filter *FieldFilter) FieldConfig {
	fields := make([]Field, 0, fieldCount)
	for _, f := range AllFields() {
		var selected bool
		switch f.Category() {
		case CategoryMandatory:
			fields = append(fields, f)
			continue
		case CategoryInfo:
			selected = info
		case CategoryValue:
			selected = values
		case CategoryQ:
			selected = q
		case CategoryEOR:
			selected = eor
		}
		if filter != nil {
			if selected {
				selected = !slices.Contains(filter.Excluding, f)
			} else {
				selected = slices.Contains(filter.Including, f)
			}
		}
		if selected {
			fields = append(fields, f)
		}
	}
	return FieldConfig{fields: fields}
}

// ParseFieldConfig extracts the field list from a header line split on
// delim. Duplicates and unknown titles are rejected while scanning; the
// positional rules (Time first, StationNumber second, EOR last) are checked
// afterwards, in that order.
func ParseFieldConfig(header string, delim Delimiter) (FieldConfig, error) {
	sep := delim.String()
	if !strings.Contains(header, sep) {
		return FieldConfig{}, headerError(FoundNoDelimiters)
	}

	tokens := strings.Split(header, sep)
	fields := make([]Field, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		f, err := FieldFromTitle(token)
		if err != nil {
			return FieldConfig{}, &ParseHeaderError{Kind: UnknownField, Err: err}
		}
		if slices.Contains(fields, f) {
			return FieldConfig{}, &ParseHeaderError{Kind: FoundDuplicates, Token: token}
		}
		fields = append(fields, f)
	}

	if fields[0] != FieldTime {
		return FieldConfig{}, headerError(MissingTime)
	}
	if len(fields) < 2 || fields[1] != FieldStationNumber {
		return FieldConfig{}, headerError(MissingStationNumber)
	}
	if i := slices.Index(fields, FieldEOR); i >= 0 && i != len(fields)-1 {
		return FieldConfig{}, headerError(InvalidEorPosition)
	}

	return FieldConfig{fields: fields}, nil
}

// Fields returns the selected fields in column order.
func (c FieldConfig) Fields() []Field {
	return slices.Clone(c.fields)
}

func (c FieldConfig) Len() int { return len(c.fields) }

func (c FieldConfig) Contains(f Field) bool {
	return slices.Contains(c.fields, f)
}

func (c FieldConfig) Equal(other FieldConfig) bool {
	return slices.Equal(c.fields, other.fields)
}

// FieldFilter overrides the category-based selection of NewFieldConfig.
// A nil *FieldFilter means no overrides; constructors never return an empty
// filter.
type FieldFilter struct {
	Including []Field
	Excluding []Field
}

// NewFieldFilter returns nil when both sets are empty.
func NewFieldFilter(including, excluding []Field) *FieldFilter {
	if len(including) == 0 && len(excluding) == 0 {
		return nil
	}
	return &FieldFilter{
		Including: slices.Clone(including),
		Excluding: slices.Clone(excluding),
	}
}

var errExcludeMandatory = errors.New("mandatory fields cannot be excluded")

// ParseFieldFilter parses two comma-separated title lists, e.g. "t,tx" and
// "Q_t". Blank lists contribute nothing; if both are blank the result is nil.
func ParseFieldFilter(include, exclude string) (*FieldFilter, error) {
	including, err := parseFieldList(include)
	if err != nil {
		return nil, err
	}
	excluding, err := parseFieldList(exclude)
	if err != nil {
		return nil, err
	}
	for _, f := range excluding {
		if f.Category() == CategoryMandatory {
			return nil, &ParseFieldFilterError{List: exclude, Err: errExcludeMandatory}
		}
	}
	return NewFieldFilter(including, excluding), nil
}

func parseFieldList(list string) ([]Field, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var fields []Field
	for _, token := range strings.Split(list, ",") {
		f, err := FieldFromTitle(strings.TrimSpace(token))
		if err != nil {
			return nil, &ParseFieldFilterError{List: list, Err: err}
		}
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields, nil
}
