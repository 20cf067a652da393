package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mwestman/ddbgrid/editor"
	"github.com/mwestman/ddbgrid/grid"
	"github.com/mwestman/ddbgrid/jsoncol"
	"github.com/mwestman/ddbgrid/table"
)

const sessionCookie = "ddbgrid_session"

// APIHandler serves the editable-table endpoints. One editor per browser
// session, all sessions sharing the same backing store.
type APIHandler struct {
	store     editor.Store
	tableName string
	keyColumn string
	sessions  *sessionRegistry
	log       zerolog.Logger
}

// NewAPIHandler creates the handler for one table.
func NewAPIHandler(store editor.Store, tableName, keyColumn string, log zerolog.Logger) *APIHandler {
	return &APIHandler{
		store:     store,
		tableName: tableName,
		keyColumn: keyColumn,
		sessions:  newSessionRegistry(defaultSessionTTL),
		log:       log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/table", h.getTable)
	mux.HandleFunc("POST /api/edits", h.applyEdits)
	mux.HandleFunc("POST /api/refresh", h.refresh)
}

// session resolves the request's session cookie, creating the cookie and
// the session state on first contact.
func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*userSession, error) {
	token := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		token = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return h.sessions.acquire(token, func() (*userSession, error) {
		state := editor.NewSession()
		ed, err := editor.New(h.store, state, editor.Config{
			KeyColumn: h.keyColumn,
			Token:     token,
			Logger:    h.log,
		})
		if err != nil {
			return nil, err
		}
		return &userSession{editor: ed, state: state}, nil
	})
}

// getTable returns the session's display snapshot: JSON columns rendered
// as text, ready for the grid.
func (h *APIHandler) getTable(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	capture := &captureGrid{}
	if _, err := sess.editor.Edit(r.Context(), capture); err != nil {
		writeError(w, http.StatusBadGateway, "load table failed: "+err.Error())
		return
	}

	rows := capture.rows
	if rows == nil {
		rows = []table.Row{}
	}
	jsonCols := jsoncol.Detect(sess.state.Rows())
	if jsonCols == nil {
		jsonCols = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":       h.tableName,
		"keyColumn":   h.keyColumn,
		"rows":        rows,
		"jsonColumns": jsonCols,
	})
}

// editsPayload is the JSON request body for one render cycle's edits.
// The widget re-sends the full diff on every interaction; deduplication
// against already-applied entries happens in the editor.
type editsPayload struct {
	// Rows is the full edited display copy of the table.
	Rows []table.Row `json:"rows"`
	// EditedRows maps row position (as a JSON object key) to the changed
	// columns only.
	EditedRows map[string]table.Row `json:"edited_rows"`
	// AddedRows holds full new rows; each carries its key under the
	// table's key column.
	AddedRows []table.Row `json:"added_rows"`
	// DeletedRows lists removed row positions.
	DeletedRows []int `json:"deleted_rows"`
}

// toDiff translates the wire payload into the grid diff, resolving the
// reserved key column on added rows into an explicit key.
func (p *editsPayload) toDiff(keyColumn string) (grid.Diff, error) {
	diff := grid.Diff{
		Edited:  make(map[int]table.Row, len(p.EditedRows)),
		Deleted: p.DeletedRows,
	}
	for posStr, content := range p.EditedRows {
		pos, err := strconv.Atoi(posStr)
		if err != nil {
			return grid.Diff{}, errors.New("edited row position must be an integer: " + posStr)
		}
		diff.Edited[pos] = content
	}
	for _, added := range p.AddedRows {
		key, ok := added[keyColumn]
		if !ok || key == nil {
			return grid.Diff{}, errors.New("added row is missing the key column " + strconv.Quote(keyColumn))
		}
		columns := added.Clone()
		delete(columns, keyColumn)
		diff.Added = append(diff.Added, grid.NewRow{Key: key, Columns: columns})
	}
	return diff, nil
}

// applyEdits runs one render cycle with the posted diff.
func (h *APIHandler) applyEdits(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var payload editsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	diff, err := payload.toDiff(h.keyColumn)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	replay := &replayGrid{result: grid.Result{Rows: payload.Rows, Diff: diff}}
	if _, err := sess.editor.Edit(r.Context(), replay); err != nil {
		var jsonErr *jsoncol.Error
		if errors.As(err, &jsonErr) {
			writeError(w, http.StatusUnprocessableEntity, jsonErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": true})
}

// refresh discards the session's snapshot and applied-edits record; the
// next load re-fetches the table.
func (h *APIHandler) refresh(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(w, r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sess.mu.Lock()
	sess.state.Invalidate()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"refreshed": true})
}

// captureGrid is the no-interaction grid used for plain loads: it keeps
// a copy of the display rows and reports an empty diff.
type captureGrid struct {
	rows []table.Row
}

func (g *captureGrid) Render(ctx context.Context, f grid.Frame) (grid.Result, error) {
	g.rows = table.CloneRows(f.Rows)
	return grid.Result{Rows: f.Rows}, nil
}

// replayGrid replays a diff payload received over HTTP as if the widget
// had just reported it.
type replayGrid struct {
	result grid.Result
}

func (g *replayGrid) Render(ctx context.Context, f grid.Frame) (grid.Result, error) {
	return g.result, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
