package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldConfig(t *testing.T) {
	t.Run("all categories", func(t *testing.T) {
		cfg := NewFieldConfigWithAll()
		assert.Equal(t, AllFields(), cfg.Fields())
	})

	t.Run("mandatory only", func(t *testing.T) {
		cfg := NewFieldConfig(false, false, false, false, nil)
		assert.Equal(t, []Field{FieldTime, FieldStationNumber}, cfg.Fields())
	})

	t.Run("info and eor", func(t *testing.T) {
		cfg := NewFieldConfig(true, false, false, true, nil)
		assert.Equal(t, []Field{
			FieldTime, FieldStationNumber,
			FieldStationName, FieldLatitude, FieldLongitude, FieldElevation,
			FieldEOR,
		}, cfg.Fields())
	})

	t.Run("values without q", func(t *testing.T) {
		cfg := NewFieldConfig(false, true, false, false, nil)
		for _, f := range cfg.Fields() {
			assert.NotEqual(t, CategoryQ, f.Category(), f.Title())
		}
		assert.True(t, cfg.Contains(FieldWaterTemp))
		assert.Equal(t, 2+24, cfg.Len())
	})

	t.Run("filter includes and excludes", func(t *testing.T) {
		filter := NewFieldFilter(
			[]Field{FieldQTemp, FieldLatitude},
			[]Field{FieldTempMin, FieldStationName},
		)
		cfg := NewFieldConfig(false, true, false, false, filter)
		assert.True(t, cfg.Contains(FieldQTemp))
		assert.True(t, cfg.Contains(FieldLatitude))
		assert.False(t, cfg.Contains(FieldTempMin))
		// StationName was not selected by category, so excluding it is inert.
		assert.False(t, cfg.Contains(FieldStationName))
		// Catalog order is kept regardless of filter order.
		fields := cfg.Fields()
		assert.Equal(t, []Field{FieldTime, FieldStationNumber, FieldLatitude, FieldRain, FieldTemp, FieldQTemp}, fields[:6])
	})

	t.Run("inert include", func(t *testing.T) {
		filter := NewFieldFilter([]Field{FieldTemp}, nil)
		assert.Equal(t, NewFieldConfig(false, true, false, false, nil), NewFieldConfig(false, true, false, false, filter))
	})

	t.Run("mandatory fields survive exclusion", func(t *testing.T) {
		filter := &FieldFilter{Excluding: []Field{FieldTime, FieldStationNumber}}
		cfg := NewFieldConfig(false, false, false, false, filter)
		assert.Equal(t, []Field{FieldTime, FieldStationNumber}, cfg.Fields())
	})
}

func TestFieldConfig_FieldsIsCopy(t *testing.T) {
	cfg := NewFieldConfigWithAll()
	fields := cfg.Fields()
	fields[0] = FieldEOR
	assert.Equal(t, FieldTime, cfg.Fields()[0])
}

func TestParseFieldConfig(t *testing.T) {
	delim := DefaultDelimiter()

	t.Run("reference header selects all fields", func(t *testing.T) {
		cfg, err := ParseFieldConfig(referenceHeader, delim)
		require.NoError(t, err)
		assert.Equal(t, NewFieldConfigWithAll(), cfg)
	})

	t.Run("mandatory and eor", func(t *testing.T) {
		cfg, err := ParseFieldConfig("Time;StationNumber;EOR", delim)
		require.NoError(t, err)
		assert.Equal(t, NewFieldConfig(false, false, false, true, nil), cfg)
	})

	t.Run("single value via filter", func(t *testing.T) {
		cfg, err := ParseFieldConfig("Time;StationNumber;t", delim)
		require.NoError(t, err)
		filter := NewFieldFilter([]Field{FieldTemp}, nil)
		assert.Equal(t, NewFieldConfig(false, false, false, false, filter), cfg)
	})

	t.Run("column order follows header", func(t *testing.T) {
		cfg, err := ParseFieldConfig("Time;StationNumber;tx;t;EOR", delim)
		require.NoError(t, err)
		assert.Equal(t, []Field{FieldTime, FieldStationNumber, FieldTempMax, FieldTemp, FieldEOR}, cfg.Fields())
	})

	errorCases := []struct {
		header string
		want   *ParseHeaderError
	}{
		{"Time,StationNumber,t,EOR", &ParseHeaderError{Kind: FoundNoDelimiters}},
		{"Time;StationNumber;Time;EOR", &ParseHeaderError{Kind: FoundDuplicates, Token: "Time"}},
		{"Time;StationNumber;t;Eor", &ParseHeaderError{Kind: UnknownField, Err: &UnknownFieldError{Title: "Eor"}}},
		{"StationNumber;t;EOR", &ParseHeaderError{Kind: MissingTime}},
		{"Time;StationName;t;EOR", &ParseHeaderError{Kind: MissingStationNumber}},
		{"Time;StationNumber;EOR;t", &ParseHeaderError{Kind: InvalidEorPosition}},
		{"Time;", &ParseHeaderError{Kind: UnknownField, Err: &UnknownFieldError{Title: ""}}},
		// Duplicates are caught during the scan, before positional checks.
		{"t;t;Time", &ParseHeaderError{Kind: FoundDuplicates, Token: "t"}},
	}
	for _, tc := range errorCases {
		t.Run(tc.header, func(t *testing.T) {
			_, err := ParseFieldConfig(tc.header, delim)
			require.Error(t, err)
			assert.Equal(t, tc.want, err)
		})
	}
}

func TestParseHeaderError_Matching(t *testing.T) {
	_, err := ParseFieldConfig("Time;StationNumber;t;Eor", DefaultDelimiter())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrUnknownField)
	assert.NotErrorIs(t, err, ErrMissingTime)

	var unknown *UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Eor", unknown.Title)
	assert.Equal(t, `failed to parse header, invalid field title "Eor"`, err.Error())

	_, err = ParseFieldConfig("Time;StationNumber;Time", DefaultDelimiter())
	assert.True(t, errors.Is(err, ErrFoundDuplicates))
	assert.Equal(t, `failed to parse header, duplicate field found "Time"`, err.Error())
}

func TestParseFieldFilter(t *testing.T) {
	t.Run("both blank", func(t *testing.T) {
		f, err := ParseFieldFilter("", "  ")
		require.NoError(t, err)
		assert.Nil(t, f)
	})

	t.Run("include and exclude", func(t *testing.T) {
		f, err := ParseFieldFilter("t, tx,t", "Q_t")
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, []Field{FieldTemp, FieldTempMax}, f.Including)
		assert.Equal(t, []Field{FieldQTemp}, f.Excluding)
	})

	t.Run("unknown title", func(t *testing.T) {
		_, err := ParseFieldFilter("t,temp", "")
		var ffe *ParseFieldFilterError
		require.ErrorAs(t, err, &ffe)
		assert.Equal(t, "t,temp", ffe.List)
		var unknown *UnknownFieldError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "temp", unknown.Title)
	})

	t.Run("mandatory exclusion rejected", func(t *testing.T) {
		_, err := ParseFieldFilter("", "StationNumber")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mandatory")
	})
}

func TestNewFieldFilter_EmptyIsNil(t *testing.T) {
	assert.Nil(t, NewFieldFilter(nil, nil))
	assert.Nil(t, NewFieldFilter([]Field{}, []Field{}))
	assert.NotNil(t, NewFieldFilter(nil, []Field{FieldEOR}))
}
