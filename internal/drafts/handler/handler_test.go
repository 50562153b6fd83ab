package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradexpert/whatsnew-admin/internal/drafts/repository"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/service"
	"github.com/tradexpert/whatsnew-admin/internal/newsfeed"
	"github.com/tradexpert/whatsnew-admin/internal/upstream"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

type stubStore struct {
	created []whatsnew.Document
	err     error
}

func (s *stubStore) Create(_ context.Context, doc whatsnew.Document) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, doc)
	return nil
}

func (s *stubStore) Update(_ context.Context, _ string, _ whatsnew.Document) error {
	return s.err
}

type stubFetcher struct {
	urls  []string
	limit int
	items []newsfeed.Item
	err   error
}

func (f *stubFetcher) FetchAll(_ context.Context, urls []string, limit int) ([]newsfeed.Item, error) {
	f.urls, f.limit = urls, limit
	if len(urls) == 0 {
		return nil, newsfeed.ErrNoFeeds
	}
	return f.items, f.err
}

func setup(t *testing.T, store *stubStore, fetcher FeedFetcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := gin.New()
	svc := service.New(repository.NewMemoryRepo(), store, service.Options{})
	RegisterDraftRoutes(g.Group("/api"), svc, fetcher, NewsDefaults{Feeds: []string{"https://feeds.test/rss"}, Limit: 5})
	return g
}

func do(g *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	g.ServeHTTP(w, req)
	return w
}

func openDraft(t *testing.T, g *gin.Engine) string {
	t.Helper()
	w := do(g, http.MethodPost, "/api/drafts", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var v struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	require.NotEmpty(t, v.ID)
	return v.ID
}

func TestDraftHandler_AddFlow(t *testing.T) {
	store := &stubStore{}
	g := setup(t, store, nil)
	id := openDraft(t, g)

	// single edit
	w := do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `{"op":"set_scalar","field":"title","value":"Weekly"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// batch
	w = do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `{"edits":[
		{"op":"set_row_field","collection":"news","index":0,"field":"title","value":"Rates"},
		{"op":"set_row_field","collection":"news","index":0,"field":"pubDate","value":"2024-03-05"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var v struct {
		Version int64 `json:"version"`
		CanUndo bool  `json:"canUndo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, int64(2), v.Version)
	assert.True(t, v.CanUndo)

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/submit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Data saved successfully!")
	require.Len(t, store.created, 1)
	assert.Equal(t, "05-03-2024", store.created[0].Rows("news")[0].Field("pubDate"))

	w = do(g, http.MethodGet, "/api/drafts/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftHandler_BadEdits(t *testing.T) {
	g := setup(t, &stubStore{}, nil)
	id := openDraft(t, g)

	w := do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `{"op":"remove_row","collection":"news","index":4}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `{"op":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no edits given")

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `{"edits":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no edits given")

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/edits", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/undo", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(g, http.MethodPost, "/api/drafts/nope/edits", `{"op":"set_scalar","field":"title","value":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftHandler_SubmitFailureUsesServerMessage(t *testing.T) {
	store := &stubStore{err: &upstream.APIError{Status: http.StatusUnprocessableEntity, Message: "title is required"}}
	g := setup(t, store, nil)
	id := openDraft(t, g)

	w := do(g, http.MethodPost, "/api/drafts/"+id+"/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"title is required"}`, w.Body.String())

	store.err = &upstream.APIError{Status: http.StatusInternalServerError}
	w = do(g, http.MethodPost, "/api/drafts/"+id+"/submit", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Error saving data"}`, w.Body.String())

	// draft survives for a retry
	w = do(g, http.MethodGet, "/api/drafts/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDraftHandler_Cancel(t *testing.T) {
	g := setup(t, &stubStore{}, nil)
	id := openDraft(t, g)

	w := do(g, http.MethodDelete, "/api/drafts/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(g, http.MethodDelete, "/api/drafts/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDraftHandler_NewsImport(t *testing.T) {
	pub := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	f := &stubFetcher{items: []newsfeed.Item{
		{Title: "Rates unchanged", Description: "RBI holds", Published: &pub},
		{Title: "Undated"},
	}}
	g := setup(t, &stubStore{}, f)
	id := openDraft(t, g)

	w := do(g, http.MethodPost, "/api/drafts/"+id+"/news/import", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"https://feeds.test/rss"}, f.urls)
	assert.Equal(t, 5, f.limit)

	var resp struct {
		Imported int `json:"imported"`
		Draft    struct {
			Document whatsnew.Document `json:"document"`
		} `json:"draft"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Imported)
	news := resp.Draft.Document.Rows("news")
	require.Len(t, news, 3)
	assert.Equal(t, "2024-03-05", news[1].Field("pubDate"))
	assert.Equal(t, "", news[2].Field("pubDate"))

	w = do(g, http.MethodPost, "/api/drafts/"+id+"/news/import", `{"feeds":["https://other.test/rss"],"limit":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"https://other.test/rss"}, f.urls)
	assert.Equal(t, 1, f.limit)

	f.err = newsfeed.ErrAllFeedsFailed
	w = do(g, http.MethodPost, "/api/drafts/"+id+"/news/import", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch data"}`, w.Body.String())
}

func TestDraftHandler_NewsImportDisabled(t *testing.T) {
	g := setup(t, &stubStore{}, nil)
	id := openDraft(t, g)
	w := do(g, http.MethodPost, "/api/drafts/"+id+"/news/import", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
