// Package grid defines the contract between the table editor and an
// interactive grid widget. The widget is an opaque collaborator: it is
// handed the display rows and reports back the user-edited rows together
// with a diff of edited, added and deleted rows.
package grid

import (
	"context"

	"github.com/mwestman/ddbgrid/table"
)

// Config tells the widget how to render the table.
type Config struct {
	// KeyColumn is the column holding the row's primary key value. It is
	// rendered as required and non-null.
	KeyColumn string
	// DynamicRows allows the user to add and delete rows.
	DynamicRows bool
}

// Frame is one render request handed to the widget.
type Frame struct {
	Rows   []table.Row
	Config Config
	// Token identifies the widget instance so its state survives
	// re-renders within a session.
	Token string
}

// Result is what the widget reports back after user interaction: the
// full edited copy of the rows plus the accumulated diff. Widgets
// re-deliver the complete diff on every interaction, not just the delta
// since the previous render.
type Result struct {
	Rows []table.Row
	Diff Diff
}

// Diff describes the user's uncommitted edits for one render cycle.
// Row positions index into the rows as they were displayed; they are
// transient and must be resolved to row keys against the snapshot the
// frame was built from.
type Diff struct {
	// Edited maps row position to the changed columns only.
	Edited map[int]table.Row
	// Added holds full new rows in the order they were created.
	Added []NewRow
	// Deleted lists the positions of removed rows.
	Deleted []int
}

// NewRow is a row created in the widget: its key value and the remaining
// non-key columns.
type NewRow struct {
	Key     any
	Columns table.Row
}

// Empty reports whether the diff carries no edits at all.
func (d Diff) Empty() bool {
	return len(d.Edited) == 0 && len(d.Added) == 0 && len(d.Deleted) == 0
}

// Grid is an interactive display for one table.
type Grid interface {
	Render(ctx context.Context, f Frame) (Result, error)
}
