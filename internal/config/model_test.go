package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func mustDate(t *testing.T, s string) Settings {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return Settings{Start: d, End: d}
}

func TestSettings_Validate(t *testing.T) {
	start, err := ParseDate("2020-01-01")
	require.NoError(t, err)
	end, err := ParseDate("2020-01-10")
	require.NoError(t, err)

	t.Run("valid range", func(t *testing.T) {
		s := Settings{Start: start, End: end}
		require.NoError(t, s.Validate())
		assert.Equal(t, 10, s.Days())
	})

	t.Run("single day", func(t *testing.T) {
		s := Settings{Start: start, End: start}
		require.NoError(t, s.Validate())
		assert.Equal(t, 1, s.Days())
	})

	t.Run("end before start", func(t *testing.T) {
		err := Settings{Start: end, End: start}.Validate()
		var cfg *simerr.ConfigurationError
		require.True(t, errors.As(err, &cfg))
		assert.Equal(t, "settings.end_date", cfg.Field)
	})

	t.Run("missing start", func(t *testing.T) {
		err := Settings{End: end}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start date is required")
	})
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("01/02/2020")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")
}

func TestModel_Merge(t *testing.T) {
	m := &Model{Name: "first", Nodes: []*Node{{Name: "a"}}}
	require.NoError(t, m.Merge(&Model{Name: "second", Settings: mustDate(t, "2020-01-01"), Nodes: []*Node{{Name: "b"}}}))

	assert.Equal(t, "first", m.Name)
	assert.Len(t, m.Nodes, 2)
	assert.Equal(t, "b", m.Nodes[1].Name)

	err := m.Merge(&Model{Settings: mustDate(t, "2021-01-01")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings declared more than once")
}

func TestFromCty(t *testing.T) {
	v := cty.ObjectVal(map[string]cty.Value{
		"capacity": cty.NumberFloatVal(1500.5),
		"name":     cty.StringVal("main"),
		"enabled":  cty.True,
		"c_vec":    cty.TupleVal([]cty.Value{cty.NumberIntVal(7), cty.NumberIntVal(70), cty.NumberIntVal(150)}),
		"outflows": cty.ListVal([]cty.Value{
			cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal("town"), "demand": cty.NumberIntVal(3)}),
		}),
		"missing": cty.NullVal(cty.String),
	})

	got, err := ObjectFromCty(v)
	require.NoError(t, err)

	want := map[string]any{
		"capacity": 1500.5,
		"name":     "main",
		"enabled":  true,
		"c_vec":    []any{7.0, 70.0, 150.0},
		"outflows": []any{map[string]any{"name": "town", "demand": 3.0}},
		"missing":  nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FromCty mismatch (-want +got):\n%s", diff)
	}
}

func TestFromCty_Unknown(t *testing.T) {
	_, err := FromCty(cty.UnknownVal(cty.String))
	require.Error(t, err)
}

func TestStringList(t *testing.T) {
	got, err := StringList(cty.TupleVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b.runoff")}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b.runoff"}, got)

	got, err = StringList(cty.StringVal("solo"))
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, got)

	_, err = StringList(cty.ObjectVal(map[string]cty.Value{"x": cty.True}))
	require.Error(t, err)
}
