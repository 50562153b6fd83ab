// Package upstream talks to the platform REST API that stores "What's New"
// records. The API exposes a public list endpoint and admin create, update
// and delete endpoints; it has no single-record read.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tradexpert/whatsnew-admin/internal/config"
	"github.com/tradexpert/whatsnew-admin/internal/tokens"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
	"github.com/tradexpert/whatsnew-admin/pkg/metrics"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrMissingID  = errors.New("record id required")
	ErrBadPayload = errors.New("unexpected upstream payload")
)

// APIError is a non-2xx upstream response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("upstream returned HTTP %d: %s", e.Status, e.Message)
}

// MessageOr returns the server-provided message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Client is the record store the screens use.
type Client struct {
	cfg  config.UpstreamConfig
	http *http.Client
	now  func() time.Time
}

// NewClient builds a client. httpClient may be nil.
func NewClient(cfg config.UpstreamConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// BaseURL reports where the client sends requests.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

type listResponse struct {
	Whatsnew []whatsnew.Document `json:"whatsnew"`
}

// List fetches every record.
func (c *Client) List(ctx context.Context) ([]whatsnew.Document, error) {
	var out listResponse
	if err := c.do(ctx, "list", http.MethodGet, c.cfg.ListPath, nil, &out); err != nil {
		return nil, err
	}
	if out.Whatsnew == nil {
		return []whatsnew.Document{}, nil
	}
	return out.Whatsnew, nil
}

// Find returns the record with id by scanning List.
func (c *Client) Find(ctx context.Context, id string) (whatsnew.Document, error) {
	docs, err := c.List(ctx)
	if err != nil {
		return whatsnew.Document{}, err
	}
	for _, d := range docs {
		if d.ID == id {
			return d, nil
		}
	}
	return whatsnew.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create submits a new record. Any ID on doc is not sent.
func (c *Client) Create(ctx context.Context, doc whatsnew.Document) error {
	doc.ID = ""
	return c.do(ctx, "create", http.MethodPost, c.cfg.AdminPath, doc, nil)
}

// Update replaces the record id with doc.
func (c *Client) Update(ctx context.Context, id string, doc whatsnew.Document) error {
	if id == "" {
		return ErrMissingID
	}
	doc.ID = id
	return c.do(ctx, "update", http.MethodPut, c.recordPath(id), doc, nil)
}

// Delete removes the record id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	return c.do(ctx, "delete", http.MethodDelete, c.recordPath(id), nil, nil)
}

func (c *Client) recordPath(id string) string {
	return c.cfg.AdminPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, dst interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.UpstreamRequests.WithLabelValues(op, status).Inc()
		metrics.UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("upstream %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("upstream %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.JWTSecret != "" {
		tok, err := tokens.GenerateServiceToken(c.cfg, c.now())
		if err != nil {
			return fmt.Errorf("upstream %s: service token: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warnf("upstream %s %s failed: %v", method, path, err)
		return fmt.Errorf("upstream %s: %w", op, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("upstream %s: read body: %w", op, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
		logger.Warnf("upstream %s %s: %v", method, path, apiErr)
		return apiErr
	}
	if dst == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadPayload, op, err)
	}
	return nil
}

// errorMessage extracts "message" (or "error") from a JSON error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// StatusFor maps a client error to the status a handler should answer with.
// Upstream 4xx responses pass through; everything else is a bad gateway.
func StatusFor(err error) int {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingID):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	default:
		return http.StatusBadGateway
	}
}
