// Package table holds the row and key-schema model shared by the editor,
// the DynamoDB mapping and the local store.
package table

// Row is a single table row: a mapping from column name to value.
// Values are plain Go values as produced by JSON or attributevalue
// decoding (string, float64, bool, nil, []any, map[string]any).
type Row map[string]any

// Clone returns a shallow copy of the row. Column values are shared.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRows returns a new slice of shallow row copies.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// KeyKind is the DynamoDB attribute type of a key column.
type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

// KeyDef names a single key column and its kind.
type KeyDef struct {
	Name string
	Kind KeyKind
}

// Definition describes one table: its name and primary key schema.
// A zero SortKey name means the table has a simple (partition-only) key.
type Definition struct {
	Name         string
	PartitionKey KeyDef
	SortKey      KeyDef
}

// HasSortKey reports whether the table uses a composite primary key.
func (d Definition) HasSortKey() bool {
	return d.SortKey.Name != ""
}

// KeyNames returns the key column names, partition key first.
func (d Definition) KeyNames() []string {
	if d.HasSortKey() {
		return []string{d.PartitionKey.Name, d.SortKey.Name}
	}
	return []string{d.PartitionKey.Name}
}
