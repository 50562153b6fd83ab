package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradexpert/whatsnew-admin/internal/config"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/metrics"
)

func newTestClient(t *testing.T, h http.HandlerFunc, secret string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.UpstreamConfig{
		BaseURL:   srv.URL,
		ListPath:  "/api/v1/user/whatsnew",
		AdminPath: "/api/v1/admin/whatsnew",
		JWTSecret: secret,
		JWTTTL:    time.Minute,
	}, srv.Client())
}

func TestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/user/whatsnew", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"whatsnew":[{"_id":"a1","title":"First","news":[{"title":"n","pubDate":"01-05-2024"}],"__v":0}]}`)
	}, "")

	docs, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a1", docs[0].ID)
	assert.Equal(t, "First", docs[0].Title())
	assert.Equal(t, "01-05-2024", docs[0].Rows("news")[0].Field("pubDate"))
}

func TestList_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}, "")
	docs, err := c.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestFind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"whatsnew":[{"_id":"a1","title":"One"},{"_id":"b2","title":"Two"}]}`)
	}, "")

	doc, err := c.Find(context.Background(), "b2")
	require.NoError(t, err)
	assert.Equal(t, "Two", doc.Title())

	_, err = c.Find(context.Background(), "zz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreate_OmitsIDAndSignsRequest(t *testing.T) {
	const secret = "upstream-secret-32-bytes-xxxxxxxxxx"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/admin/whatsnew", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tok, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil })
		require.NoError(t, err)
		assert.True(t, tok.Valid)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "_id")
		assert.Equal(t, "Weekly", body["title"])
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"created"}`)
	}, secret)

	doc := whatsnew.NewDocument()
	doc.ID = "should-not-be-sent"
	doc.Scalars["title"] = "Weekly"
	require.NoError(t, c.Create(context.Background(), doc))
}

func TestUpdateAndDeletePaths(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "rec-1", body["_id"])
		}
		w.WriteHeader(http.StatusOK)
	}, "")

	require.NoError(t, c.Update(context.Background(), "rec-1", whatsnew.NewDocument()))
	require.NoError(t, c.Delete(context.Background(), "rec-1"))
	assert.Equal(t, []string{
		"PUT /api/v1/admin/whatsnew/rec-1",
		"DELETE /api/v1/admin/whatsnew/rec-1",
	}, seen)

	assert.ErrorIs(t, c.Delete(context.Background(), ""), ErrMissingID)
	assert.ErrorIs(t, c.Update(context.Background(), "", whatsnew.Document{}), ErrMissingID)
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"title is required"}`)
	}, "")

	before := testutil.ToFloat64(metrics.UpstreamRequests.WithLabelValues("create", "400"))
	err := c.Create(context.Background(), whatsnew.NewDocument())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "title is required", MessageOr(err, "Error saving data"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UpstreamRequests.WithLabelValues("create", "400")))
}

func TestMessageOrFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}, "")

	err := c.Delete(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, "Failed to delete data", MessageOr(err, "Failed to delete data"))
	assert.Equal(t, "fallback", MessageOr(errors.New("dial tcp: refused"), "fallback"))
	assert.Equal(t, "nope", MessageOr(&APIError{Status: 404, Message: ""}, "nope"))
}

func TestTransportFailure(t *testing.T) {
	c := NewClient(config.UpstreamConfig{BaseURL: "http://127.0.0.1:1", ListPath: "/x", Timeout: time.Second}, nil)
	_, err := c.List(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("find: %w", ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, StatusFor(ErrMissingID))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(&APIError{Status: 422, Message: "bad"}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&APIError{Status: 503}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(errors.New("dial tcp: refused")))
}
