// Package jsoncol detects table columns that carry nested values and
// converts them between structured form and JSON text for display in a
// grid widget.
package jsoncol

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mwestman/ddbgrid/table"
)

// Error reports a column whose text could not be parsed back into a
// structured value.
type Error struct {
	Column string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid json string in column %q", e.Column)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detect returns the names of the columns holding nested values, sampled
// from the first row only. Columns whose JSON-ness varies by row are not
// supported; rows beyond the first are never inspected.
func Detect(rows []table.Row) []string {
	if len(rows) == 0 {
		return nil
	}
	var cols []string
	for name, value := range rows[0] {
		if isNested(value) {
			cols = append(cols, name)
		}
	}
	return cols
}

// isNested reports whether a value is a mapping or sequence, excluding
// text and byte-like scalars.
func isNested(v any) bool {
	switch v.(type) {
	case nil, string, []byte:
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

// Serialize returns a copy of rows with every value of the given columns
// replaced by its JSON text encoding. The input rows are not mutated.
func Serialize(rows []table.Row, cols []string) ([]table.Row, error) {
	out := table.CloneRows(rows)
	for _, col := range cols {
		for _, row := range out {
			if _, ok := row[col]; !ok {
				continue
			}
			text, err := json.Marshal(row[col])
			if err != nil {
				return nil, fmt.Errorf("serialize column %q: %w", col, err)
			}
			row[col] = string(text)
		}
	}
	return out, nil
}

// DeserializeRow parses the JSON columns of a single row back into
// structured values, in place. Columns absent from the row are skipped
// and nil values pass through unchanged. A malformed text yields an
// *Error carrying the column name.
func DeserializeRow(row table.Row, cols []string) error {
	for _, col := range cols {
		raw, ok := row[col]
		if !ok || raw == nil {
			continue
		}
		text, ok := raw.(string)
		if !ok {
			// Already structured, nothing to parse.
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return &Error{Column: col, Err: err}
		}
		row[col] = v
	}
	return nil
}

// DeserializeRows applies DeserializeRow to every row.
func DeserializeRows(rows []table.Row, cols []string) error {
	for _, row := range rows {
		if err := DeserializeRow(row, cols); err != nil {
			return err
		}
	}
	return nil
}
