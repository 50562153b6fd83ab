package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradexpert/whatsnew-admin/internal/config"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/repository"
	"github.com/tradexpert/whatsnew-admin/internal/submissions"
	"github.com/tradexpert/whatsnew-admin/internal/upstream"
	"github.com/tradexpert/whatsnew-admin/pkg/middleware"
)

type claimsToken map[string]interface{}

func (t claimsToken) Claims(v interface{}) error {
	b, _ := json.Marshal(t)
	return json.Unmarshal(b, v)
}

type staticVerifier struct{}

func (staticVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	switch raw {
	case "admin":
		return claimsToken{"sub": "u1", "realm_access": map[string]interface{}{"roles": []interface{}{"whatsnew-admin"}}}, nil
	case "viewer":
		return claimsToken{"sub": "u2"}, nil
	}
	return nil, errors.New("bad token")
}

func testApp(t *testing.T, upstreamHandler http.HandlerFunc) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(upstreamHandler)
	t.Cleanup(srv.Close)
	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:   srv.URL,
			ListPath:  "/api/v1/user/whatsnew",
			AdminPath: "/api/v1/admin/whatsnew",
		},
		Drafts: config.DraftsConfig{Store: "memory"},
	}
	return &app{
		cfg:        cfg,
		drafts:     repository.NewMemoryRepo(),
		draftStore: "memory",
		subs:       submissions.NewMemoryStore(10),
		records:    upstream.NewClient(cfg.Upstream, srv.Client()),
	}
}

func call(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndReady(t *testing.T) {
	r := newRouter(testApp(t, func(w http.ResponseWriter, _ *http.Request) {}))

	w := call(r, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())

	w = call(r, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"draftStore":"memory"`)
}

func TestReadyReportsMissingBackends(t *testing.T) {
	a := testApp(t, func(w http.ResponseWriter, _ *http.Request) {})
	a.cfg.MongoDB.URI = "mongodb://db:27017"
	r := newRouter(a)

	w := call(r, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"mongo":false`)
}

func TestAddFlowEndToEnd(t *testing.T) {
	var posted map[string]interface{}
	r := newRouter(testApp(t, func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPost && req.URL.Path == "/api/v1/admin/whatsnew" {
			_ = json.NewDecoder(req.Body).Decode(&posted)
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	w := call(r, http.MethodPost, "/api/drafts", "", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var d struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))

	w = call(r, http.MethodPost, "/api/drafts/"+d.ID+"/edits",
		`{"edits":[{"op":"set_scalar","field":"title","value":"Weekly"},{"op":"set_row_field","collection":"fiidii_activity","index":0,"field":"currentDate","value":"2024-03-05"}]}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = call(r, http.MethodPost, "/api/drafts/"+d.ID+"/submit", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Data saved successfully!")

	require.NotNil(t, posted)
	assert.Equal(t, "Weekly", posted["title"])
	assert.NotContains(t, posted, "_id")
	fii := posted["fiidii_activity"].([]interface{})
	require.Len(t, fii, 1)
	assert.Equal(t, "05-03-2024", fii[0].(map[string]interface{})["currentDate"])

	w = call(r, http.MethodGet, "/api/submissions", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), d.ID)
}

func TestAPIRequiresAdminRoleWhenAuthConfigured(t *testing.T) {
	a := testApp(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"whatsnew":[]}`))
	})
	a.verifier = staticVerifier{}
	a.cfg.Keycloak.AdminRole = "whatsnew-admin"
	r := newRouter(a)

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/whatsnew", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/whatsnew", "", "forged").Code)
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodGet, "/api/whatsnew", "", "viewer").Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/whatsnew", "", "admin").Code)

	// landing stays public
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/features", "", "").Code)
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/", "", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(testApp(t, func(w http.ResponseWriter, _ *http.Request) {}))
	w := call(r, http.MethodOptions, "/api/drafts", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
