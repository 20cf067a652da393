package jsoncol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwestman/ddbgrid/table"
)

func TestDetect(t *testing.T) {
	rows := []table.Row{
		{
			"id":    "a",
			"tags":  []any{"x", "y"},
			"meta":  map[string]any{"color": "red"},
			"name":  "widget",
			"blob":  []byte("raw"),
			"count": float64(3),
			"none":  nil,
		},
	}

	cols := Detect(rows)
	assert.ElementsMatch(t, []string{"tags", "meta"}, cols)
}

func TestDetect_EmptyTable(t *testing.T) {
	assert.Nil(t, Detect(nil))
	assert.Nil(t, Detect([]table.Row{}))
}

func TestDetect_SamplesFirstRowOnly(t *testing.T) {
	// Columns whose JSON-ness varies by row are not supported: only the
	// first row decides.
	rows := []table.Row{
		{"id": "a", "tags": "plain text"},
		{"id": "b", "tags": []any{"x"}},
	}
	assert.Empty(t, Detect(rows))
}

func TestSerialize_DoesNotMutateInput(t *testing.T) {
	rows := []table.Row{
		{"id": "a", "tags": []any{"x", "y"}},
	}

	out, err := Serialize(rows, []string{"tags"})
	require.NoError(t, err)

	assert.Equal(t, `["x","y"]`, out[0]["tags"])
	assert.Equal(t, []any{"x", "y"}, rows[0]["tags"])
}

func TestRoundTrip(t *testing.T) {
	rows := []table.Row{
		{"id": "a", "tags": []any{"x", "y"}, "meta": map[string]any{"n": float64(1)}},
		{"id": "b", "tags": []any{}, "meta": nil},
	}
	cols := Detect(rows)
	require.ElementsMatch(t, []string{"tags", "meta"}, cols)

	display, err := Serialize(rows, cols)
	require.NoError(t, err)
	require.NoError(t, DeserializeRows(display, cols))

	assert.Equal(t, rows, display)
}

func TestDeserializeRow_NilPassesThrough(t *testing.T) {
	row := table.Row{"tags": nil}
	require.NoError(t, DeserializeRow(row, []string{"tags"}))
	assert.Nil(t, row["tags"])
}

func TestDeserializeRow_AbsentColumnSkipped(t *testing.T) {
	row := table.Row{"name": "widget"}
	require.NoError(t, DeserializeRow(row, []string{"tags"}))
	assert.Equal(t, table.Row{"name": "widget"}, row)
}

func TestDeserializeRow_MalformedText(t *testing.T) {
	row := table.Row{"tags": `{bad`}

	err := DeserializeRow(row, []string{"tags"})
	require.Error(t, err)

	var jsonErr *Error
	require.True(t, errors.As(err, &jsonErr))
	assert.Equal(t, "tags", jsonErr.Column)
	assert.Contains(t, err.Error(), `"tags"`)
	// The bad text is left in place, never replaced by a default.
	assert.Equal(t, `{bad`, row["tags"])
}
