package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrganicListExtractsRankedEntries(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"organic": []any{
			map[string]any{"rank": 1, "title": "Go"},
			map[string]any{"rank": 2, "title": "Rust"},
		},
		"total_results": 2,
	}
	got := Normalize(raw, OrganicList)
	require.Equal(t, raw["organic"], got)
}

func TestOrganicListDegradesToEmptyList(t *testing.T) {
	t.Parallel()

	cases := map[string]any{
		"html body":      map[string]any{"body": "<html><body>captcha</body></html>"},
		"missing key":    map[string]any{"ads": []any{}},
		"non-list value": map[string]any{"organic": "nope"},
		"string payload": "<html></html>",
		"nil payload":    nil,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got any
			require.NotPanics(t, func() { got = Normalize(raw, OrganicList) })
			require.NotNil(t, got)
			require.Equal(t, []any{}, got)
		})
	}
}

func TestOpaqueShapesPassThroughOrMark(t *testing.T) {
	t.Parallel()

	rec := map[string]any{"asin": "B0"}
	require.Equal(t, rec, Normalize(rec, OpaqueRecord))

	marked, ok := Normalize([]any{1}, OpaqueRecord).(map[string]any)
	require.True(t, ok)
	require.Contains(t, marked["error"], "expected record")

	rows := []any{map[string]any{"a": 1}}
	require.Equal(t, rows, Normalize(rows, OpaqueList))
	require.Equal(t, []any{}, Normalize(nil, OpaqueList))

	typed := []map[string]any{{"a": 1}}
	require.Equal(t, []any{map[string]any{"a": 1}}, Normalize(typed, OpaqueList))

	wrapped, ok := Normalize(map[string]any{"a": 1}, OpaqueList).([]any)
	require.True(t, ok)
	require.Len(t, wrapped, 1)
	require.Contains(t, wrapped[0].(map[string]any)["error"], "expected list")
}

func TestRawTextPassesStrings(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<p>hi</p>", Normalize("<p>hi</p>", RawText))
	require.Equal(t, "bytes", Normalize([]byte("bytes"), RawText))
	require.Equal(t, "", Normalize(nil, RawText))
	require.Equal(t, `{"a":1}`, Normalize(map[string]any{"a": 1}, RawText))
}

func TestParseShapeAndHelpers(t *testing.T) {
	t.Parallel()

	shape, err := ParseShape(" Organic-List ")
	require.NoError(t, err)
	require.Equal(t, OrganicList, shape)
	_, err = ParseShape("xml")
	require.Error(t, err)

	n, ok := Rows([]any{1, 2, 3})
	require.True(t, ok)
	require.Equal(t, 3, n)
	_, ok = Rows(map[string]any{})
	require.False(t, ok)

	require.True(t, IsHTML("  <!DOCTYPE html><html>"))
	require.True(t, IsHTML("<?xml?>\n<html lang=en>"))
	require.False(t, IsHTML(`{"organic": []}`))

	require.Equal(t, []any{}, Empty(OpaqueList))
	require.Equal(t, map[string]any{}, Empty(OpaqueRecord))
}
