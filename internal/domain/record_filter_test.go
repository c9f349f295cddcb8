package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordFilter(t *testing.T) {
	t.Run("blank spec yields no filter", func(t *testing.T) {
		for _, spec := range []string{"", "   "} {
			f, err := ParseRecordFilter(spec, false)
			require.NoError(t, err)
			assert.Nil(t, f)
		}
	})

	t.Run("numbers and names", func(t *testing.T) {
		f, err := ParseRecordFilter("13704, Szeged,12839 ,Budapest Pestszentlőrinc,13704", true)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, []string{"13704", "12839"}, f.Numbers())
		assert.Equal(t, []string{"Szeged", "Budapest Pestszentlőrinc"}, f.Names())
		assert.True(t, f.Exclude())
	})

	t.Run("signed numbers are names", func(t *testing.T) {
		f, err := ParseRecordFilter("-1", false)
		require.NoError(t, err)
		assert.Empty(t, f.Numbers())
		assert.Equal(t, []string{"-1"}, f.Names())
	})

	t.Run("empty entry", func(t *testing.T) {
		_, err := ParseRecordFilter("13704,,Szeged", false)
		var pfe *ParseRecordFilterError
		require.ErrorAs(t, err, &pfe)
		assert.Equal(t, "13704,,Szeged", pfe.Spec)
	})
}

func TestRecordFilter_Keep(t *testing.T) {
	sopron := NewRawRecord("202501010000", "13704", map[Field]string{FieldStationName: "Sopron"})
	szeged := NewRawRecord("202501010000", "12982", map[Field]string{FieldStationName: "Szeged"})
	unnamed := NewRawRecord("202501010000", "12839", nil)

	tests := []struct {
		name   string
		spec   string
		invert bool
		want   [3]bool // sopron, szeged, unnamed
	}{
		{"keep by number", "13704", false, [3]bool{true, false, false}},
		{"keep by name", "szeged", false, [3]bool{false, true, false}},
		{"keep mixed", "SOPRON,12839", false, [3]bool{true, false, true}},
		{"drop by number", "13704", true, [3]bool{false, true, true}},
		{"drop by name", "Szeged", true, [3]bool{true, false, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseRecordFilter(tt.spec, tt.invert)
			require.NoError(t, err)
			got := [3]bool{f.Keep(sopron), f.Keep(szeged), f.Keep(unnamed)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordFilter_NilKeepsAll(t *testing.T) {
	var f *RecordFilter
	assert.True(t, f.Keep(NewRawRecord("202501010000", "13704", nil)))
}
