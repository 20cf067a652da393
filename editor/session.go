package editor

import "github.com/mwestman/ddbgrid/table"

// Session owns the state that must survive re-renders within one user
// session: the table snapshot and the record of edits already written to
// the store. It is discarded when the session ends and is never shared
// across sessions. It does no locking of its own; callers that allow
// overlapping renders for one session must serialize them.
type Session struct {
	rows []table.Row

	// Applied-edits record, one bucket per diff kind. Grows for the
	// session's lifetime; there is no eviction.
	edited  map[int]table.Row
	added   map[string]struct{}
	deleted map[string]struct{}
}

// NewSession returns an empty session. The table snapshot is fetched
// lazily on the first Edit call and cached for the session's lifetime.
func NewSession() *Session {
	return &Session{
		edited:  make(map[int]table.Row),
		added:   make(map[string]struct{}),
		deleted: make(map[string]struct{}),
	}
}

// Invalidate drops the cached snapshot and the applied-edits record.
// The next Edit call re-fetches the table from the store.
func (s *Session) Invalidate() {
	s.rows = nil
	s.edited = make(map[int]table.Row)
	s.added = make(map[string]struct{})
	s.deleted = make(map[string]struct{})
}

// Rows returns the cached snapshot, or nil before the first Edit.
func (s *Session) Rows() []table.Row {
	return s.rows
}
