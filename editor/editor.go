// Package editor owns the in-memory copy of a table's rows, renders it
// through a grid widget and applies the widget's reported diff to the
// backing store exactly once per entry.
//
// The widget re-delivers the full diff on every interaction, so the
// editor keeps a session-scoped record of which entries were already
// written and skips them on re-renders. Concurrent editors of the same
// row are not coordinated; the store's own write semantics win.
package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"

	"github.com/mwestman/ddbgrid/grid"
	"github.com/mwestman/ddbgrid/jsoncol"
	"github.com/mwestman/ddbgrid/table"
)

// Store is the backing key-value store for one table. Calls are
// best-effort synchronous; failures propagate to the caller and the
// corresponding diff entry is retried on the next render if the widget
// still reports it.
type Store interface {
	// FetchAll loads the full table for the initial snapshot.
	FetchAll(ctx context.Context) ([]table.Row, error)
	// Upsert inserts or fully replaces a row's non-key columns.
	Upsert(ctx context.Context, key any, row table.Row) error
	// PartialUpdate merges the changed columns into an existing row.
	PartialUpdate(ctx context.Context, key any, cols table.Row) error
	// Delete removes a row by key.
	Delete(ctx context.Context, key any) error
}

// Config configures an Editor.
type Config struct {
	// KeyColumn is the column holding each row's primary key value.
	KeyColumn string
	// Token identifies the grid widget across renders.
	Token string
	// Logger is optional; reconciliation decisions are logged at debug
	// level.
	Logger zerolog.Logger
}

// Editor binds one table snapshot to a grid widget and a backing store.
type Editor struct {
	store   Store
	session *Session
	cfg     Config
	log     zerolog.Logger
}

// New creates an editor over the given store, with state held in the
// given session.
func New(store Store, session *Session, cfg Config) (*Editor, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if cfg.KeyColumn == "" {
		return nil, fmt.Errorf("key column is required")
	}
	return &Editor{
		store:   store,
		session: session,
		cfg:     cfg,
		log:     cfg.Logger,
	}, nil
}

// Edit runs one render cycle: it hands the display copy of the snapshot
// to the widget, deserializes what comes back, applies the uncommitted
// part of the reported diff to the store and returns the edited rows.
//
// A malformed JSON column in the edited copy aborts the cycle before any
// store call. A malformed entry inside the diff aborts the remaining
// entries in iteration order; entries applied earlier in the same cycle
// stay committed.
func (e *Editor) Edit(ctx context.Context, g grid.Grid) ([]table.Row, error) {
	if e.session.rows == nil {
		rows, err := e.store.FetchAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch table: %w", err)
		}
		e.session.rows = rows
		e.log.Debug().Int("rows", len(rows)).Msg("fetched table snapshot")
	}

	// JSON columns are derived from the snapshot, not the diff, and
	// sampled from the first row only.
	jsonCols := jsoncol.Detect(e.session.rows)

	display, err := jsoncol.Serialize(e.session.rows, jsonCols)
	if err != nil {
		return nil, err
	}

	result, err := g.Render(ctx, grid.Frame{
		Rows: display,
		Config: grid.Config{
			KeyColumn:   e.cfg.KeyColumn,
			DynamicRows: true,
		},
		Token: e.cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("render grid: %w", err)
	}

	edited := result.Rows
	if err := jsoncol.DeserializeRows(edited, jsonCols); err != nil {
		return nil, err
	}

	if result.Diff.Empty() {
		return edited, nil
	}
	if err := e.applyDiff(ctx, result.Diff, jsonCols); err != nil {
		return edited, err
	}
	return edited, nil
}

// applyDiff reconciles one reported diff against the applied-edits
// record: edited rows first, then added, then deleted. Edited positions
// are processed in ascending order so partial-failure behavior is
// deterministic.
func (e *Editor) applyDiff(ctx context.Context, diff grid.Diff, jsonCols []string) error {
	positions := maps.Keys(diff.Edited)
	slices.Sort(positions)
	for _, pos := range positions {
		content := diff.Edited[pos]
		key, err := e.keyAt(pos)
		if err != nil {
			return err
		}
		if err := jsoncol.DeserializeRow(content, jsonCols); err != nil {
			return err
		}
		if prev, ok := e.session.edited[pos]; ok && reflect.DeepEqual(prev, content) {
			e.log.Debug().Int("position", pos).Interface("key", key).
				Msg("row edit already applied, skipping")
			continue
		}
		if err := e.store.PartialUpdate(ctx, key, content); err != nil {
			return fmt.Errorf("update row %v: %w", key, err)
		}
		e.session.edited[pos] = content
		e.log.Debug().Int("position", pos).Interface("key", key).
			Msg("applied row edit")
	}

	for _, added := range diff.Added {
		if err := jsoncol.DeserializeRow(added.Columns, jsonCols); err != nil {
			return err
		}
		repr, err := canonicalRepr(added.Columns)
		if err != nil {
			return err
		}
		if _, ok := e.session.added[repr]; ok {
			e.log.Debug().Interface("key", added.Key).
				Msg("new row already added and up to date, skipping")
			continue
		}
		if err := e.store.Upsert(ctx, added.Key, added.Columns); err != nil {
			return fmt.Errorf("add row %v: %w", added.Key, err)
		}
		e.session.added[repr] = struct{}{}
		e.log.Debug().Interface("key", added.Key).Msg("created or updated new row")
	}

	for _, pos := range diff.Deleted {
		key, err := e.keyAt(pos)
		if err != nil {
			return err
		}
		ks := keyString(key)
		if _, ok := e.session.deleted[ks]; ok {
			e.log.Debug().Interface("key", key).Msg("row already deleted, skipping")
			continue
		}
		if err := e.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete row %v: %w", key, err)
		}
		e.session.deleted[ks] = struct{}{}
		e.log.Debug().Interface("key", key).Msg("deleted row")
	}
	return nil
}

// keyAt resolves a transient row position to the row's key value using
// the snapshot taken at Edit entry. Positions are stable only against
// that snapshot, not against prior edits in the same cycle.
func (e *Editor) keyAt(pos int) (any, error) {
	if pos < 0 || pos >= len(e.session.rows) {
		return nil, fmt.Errorf("row position %d out of range (table has %d rows)", pos, len(e.session.rows))
	}
	key, ok := e.session.rows[pos][e.cfg.KeyColumn]
	if !ok {
		return nil, fmt.Errorf("key column %q missing in row %d", e.cfg.KeyColumn, pos)
	}
	return key, nil
}

// canonicalRepr builds an order-independent text representation of an
// added row's non-key columns. JSON object keys are emitted sorted, so
// identical content always yields identical text.
func canonicalRepr(cols table.Row) (string, error) {
	b, err := json.Marshal(cols)
	if err != nil {
		return "", fmt.Errorf("encode added row: %w", err)
	}
	return string(b), nil
}

// keyString builds the dedup map key for deleted rows. The value's type
// is included so the string key "1" and the number 1 stay distinct.
func keyString(key any) string {
	return fmt.Sprintf("%T:%v", key, key)
}
