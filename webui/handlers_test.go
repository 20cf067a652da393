package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwestman/ddbgrid/ddbmap"
	"github.com/mwestman/ddbgrid/editor"
	"github.com/mwestman/ddbgrid/localstore"
	"github.com/mwestman/ddbgrid/table"
)

// countingStore counts writes on their way to the real store so tests
// can tell an applied entry from a deduplicated one.
type countingStore struct {
	editor.Store
	fetches int
	updates int
	upserts int
	deletes int
}

func (s *countingStore) FetchAll(ctx context.Context) ([]table.Row, error) {
	s.fetches++
	return s.Store.FetchAll(ctx)
}

func (s *countingStore) PartialUpdate(ctx context.Context, key any, cols table.Row) error {
	s.updates++
	return s.Store.PartialUpdate(ctx, key, cols)
}

func (s *countingStore) Upsert(ctx context.Context, key any, row table.Row) error {
	s.upserts++
	return s.Store.Upsert(ctx, key, row)
}

func (s *countingStore) Delete(ctx context.Context, key any) error {
	s.deletes++
	return s.Store.Delete(ctx, key)
}

func newTestEnv(t *testing.T) (*http.ServeMux, *countingStore, *ddbmap.Mapping) {
	t.Helper()
	def := table.Definition{
		Name:         "widgets",
		PartitionKey: table.KeyDef{Name: "id", Kind: table.KeyKindS},
	}
	store, err := localstore.New(localstore.Options{InMemory: true}, def)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	m, err := ddbmap.New(context.Background(), store, "widgets")
	require.NoError(t, err)

	counting := &countingStore{Store: m}
	h := NewAPIHandler(counting, "widgets", "id", zerolog.Nop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux, counting, m
}

func seedWidgets(t *testing.T, m *ddbmap.Mapping) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, "a", table.Row{"name": "alpha", "tags": []any{"x"}}))
	require.NoError(t, m.Upsert(ctx, "b", table.Row{"name": "beta", "tags": []any{"y"}}))
}

// testClient drives the mux and carries the session cookie between
// requests, like a browser would.
type testClient struct {
	t       *testing.T
	mux     *http.ServeMux
	cookies []*http.Cookie
}

func (c *testClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.mux.ServeHTTP(rec, req)
	if cs := rec.Result().Cookies(); len(cs) > 0 {
		c.cookies = cs
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

type tableResponse struct {
	Table       string      `json:"table"`
	KeyColumn   string      `json:"keyColumn"`
	Rows        []table.Row `json:"rows"`
	JSONColumns []string    `json:"jsonColumns"`
}

func TestGetTable(t *testing.T) {
	mux, _, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, client.cookies, "first contact must set the session cookie")

	var body tableResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "widgets", body.Table)
	assert.Equal(t, "id", body.KeyColumn)
	assert.Equal(t, []string{"tags"}, body.JSONColumns)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "a", body.Rows[0]["id"])
	// JSON columns are delivered as display text, not structured values.
	assert.Equal(t, `["x"]`, body.Rows[0]["tags"])
}

func TestGetTable_Empty(t *testing.T) {
	mux, _, _ := newTestEnv(t)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body tableResponse
	decodeBody(t, rec, &body)
	assert.NotNil(t, body.Rows)
	assert.Empty(t, body.Rows)
	assert.NotNil(t, body.JSONColumns)
	assert.Empty(t, body.JSONColumns)
}

func TestApplyEdits(t *testing.T) {
	mux, counting, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := map[string]any{
		"rows":         []table.Row{},
		"edited_rows":  map[string]table.Row{"0": {"name": "ALPHA"}},
		"added_rows":   []table.Row{{"id": "c", "name": "gamma"}},
		"deleted_rows": []int{1},
	}

	rec = client.do(http.MethodPost, "/api/edits", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	row, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", row["name"])

	row, err = m.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "gamma", row["name"])

	_, err = m.Get(ctx, "b")
	assert.True(t, errors.Is(err, ddbmap.ErrNotFound))

	assert.Equal(t, 1, counting.updates)
	assert.Equal(t, 1, counting.upserts)
	assert.Equal(t, 1, counting.deletes)

	// The widget re-sends the full diff on every interaction; nothing
	// already applied may reach the store again.
	rec = client.do(http.MethodPost, "/api/edits", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, counting.updates)
	assert.Equal(t, 1, counting.upserts)
	assert.Equal(t, 1, counting.deletes)
}

func TestApplyEdits_MalformedJSONColumn(t *testing.T) {
	mux, counting, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodPost, "/api/edits", map[string]any{
		"rows":        []table.Row{},
		"edited_rows": map[string]table.Row{"0": {"tags": `{bad`}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], `invalid json string in column "tags"`)
	assert.Zero(t, counting.updates)
}

func TestApplyEdits_BadPosition(t *testing.T) {
	mux, _, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodPost, "/api/edits", map[string]any{
		"edited_rows": map[string]table.Row{"first": {"name": "x"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "must be an integer")
}

func TestApplyEdits_AddedRowMissingKey(t *testing.T) {
	mux, counting, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodPost, "/api/edits", map[string]any{
		"added_rows": []table.Row{{"name": "orphan"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], `missing the key column "id"`)
	assert.Zero(t, counting.upserts)
}

func TestApplyEdits_InvalidBody(t *testing.T) {
	mux, _, _ := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/edits", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	mux, counting, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, counting.fetches)

	// The snapshot is cached for the session: a change behind its back
	// is invisible until a refresh.
	require.NoError(t, m.Delete(context.Background(), "b"))

	rec = client.do(http.MethodGet, "/api/table", nil)
	var body tableResponse
	decodeBody(t, rec, &body)
	assert.Len(t, body.Rows, 2)
	assert.Equal(t, 1, counting.fetches)

	rec = client.do(http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = client.do(http.MethodGet, "/api/table", nil)
	decodeBody(t, rec, &body)
	assert.Len(t, body.Rows, 1)
	assert.Equal(t, 2, counting.fetches)
}

func TestConcurrentRequestsOneSession(t *testing.T) {
	mux, counting, m := newTestEnv(t)
	seedWidgets(t, m)
	client := &testClient{t: t, mux: mux}

	rec := client.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := client.cookies

	// Two tabs on the same cookie can fire overlapping requests; the
	// per-session lock must serialize them so the widget's re-sent diff
	// is still applied exactly once.
	payload, err := json.Marshal(map[string]any{
		"rows":         []table.Row{},
		"edited_rows":  map[string]table.Row{"0": {"name": "ALPHA"}},
		"added_rows":   []table.Row{{"id": "c", "name": "gamma"}},
		"deleted_rows": []int{1},
	})
	require.NoError(t, err)

	const requests = 16
	codes := make(chan int, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/edits", bytes.NewReader(payload))
			for _, ck := range cookies {
				req.AddCookie(ck)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, counting.updates)
	assert.Equal(t, 1, counting.upserts)
	assert.Equal(t, 1, counting.deletes)

	row, err := m.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "ALPHA", row["name"])
}

func TestSessionsAreIsolated(t *testing.T) {
	mux, counting, m := newTestEnv(t)
	seedWidgets(t, m)

	first := &testClient{t: t, mux: mux}
	second := &testClient{t: t, mux: mux}

	rec := first.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = second.do(http.MethodGet, "/api/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotEqual(t, first.cookies[0].Value, second.cookies[0].Value)
	// Each session fetched its own snapshot.
	assert.Equal(t, 2, counting.fetches)
}
