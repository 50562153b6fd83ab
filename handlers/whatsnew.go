package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tradexpert/whatsnew-admin/internal/drafts/handler"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/service"
	"github.com/tradexpert/whatsnew-admin/internal/richtext"
	"github.com/tradexpert/whatsnew-admin/internal/submissions"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
	"github.com/tradexpert/whatsnew-admin/pkg/middleware"
)

const (
	excerptRunes       = 160
	defaultRecentLimit = 20
	msgDeleted         = "Data deleted successfully"
	msgDeleteFailed    = "Failed to delete data"
	msgFetchFailed     = "Failed to fetch data"
)

// RecordSource is the upstream record API the manage screen uses.
type RecordSource interface {
	List(ctx context.Context) ([]whatsnew.Document, error)
	Find(ctx context.Context, id string) (whatsnew.Document, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotLoader reads archived submissions back.
type SnapshotLoader interface {
	Load(ctx context.Context, key string) (whatsnew.Document, error)
}

// ListItem is one row of the manage table.
type ListItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// WhatsNewHandler serves the manage screen plus the schema and submission log.
type WhatsNewHandler struct {
	records   RecordSource
	drafts    *service.Service
	subs      submissions.Store
	snapshots SnapshotLoader
}

// NewWhatsNewHandler wires the manage routes. subs and snapshots may be nil.
func NewWhatsNewHandler(records RecordSource, drafts *service.Service, subs submissions.Store, snapshots SnapshotLoader) *WhatsNewHandler {
	return &WhatsNewHandler{records: records, drafts: drafts, subs: subs, snapshots: snapshots}
}

// Register mounts the routes on rg (normally the /api group).
func (h *WhatsNewHandler) Register(rg gin.IRouter) {
	rg.GET("/whatsnew", h.List)
	rg.GET("/whatsnew/:id", h.Get)
	rg.POST("/whatsnew/:id/edit", h.OpenEdit)
	rg.DELETE("/whatsnew/:id", h.Delete)
	rg.GET("/schema", h.Schema)
	rg.GET("/submissions", h.Submissions)
	rg.GET("/submissions/:draftId", h.Submission)
	rg.GET("/submissions/:draftId/snapshot", h.Snapshot)
}

// List returns every record as {id, title, excerpt}.
func (h *WhatsNewHandler) List(c *gin.Context) {
	docs, err := h.records.List(c.Request.Context())
	if err != nil {
		handler.WriteError(c, err, msgFetchFailed)
		return
	}
	out := make([]ListItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, ListItem{
			ID:      d.ID,
			Title:   d.Title(),
			Excerpt: richtext.Excerpt(d.Scalars["description"], excerptRunes),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *WhatsNewHandler) Get(c *gin.Context) {
	doc, err := h.records.Find(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.WriteError(c, err, msgFetchFailed)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// OpenEdit starts an edit draft on the record.
func (h *WhatsNewHandler) OpenEdit(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.records.Find(ctx, c.Param("id"))
	if err != nil {
		handler.WriteError(c, err, msgFetchFailed)
		return
	}
	d, err := h.drafts.OpenEdit(ctx, doc, middleware.Subject(c))
	if err != nil {
		handler.WriteError(c, err, msgFetchFailed)
		return
	}
	c.JSON(http.StatusCreated, handler.NewView(d))
}

// Delete removes the record upstream by id.
func (h *WhatsNewHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.records.Delete(c.Request.Context(), id); err != nil {
		handler.WriteError(c, err, msgDeleteFailed)
		return
	}
	logger.Infof("record %s deleted by %q", id, middleware.Subject(c))
	c.JSON(http.StatusOK, gin.H{"message": msgDeleted})
}

type schemaView struct {
	Scalars     []string         `json:"scalars"`
	Collections []collectionView `json:"collections"`
}

type collectionView struct {
	whatsnew.CollectionSpec
	Template whatsnew.Row `json:"template"`
}

// Schema describes the canonical document so a UI can render it generically.
func (h *WhatsNewHandler) Schema(c *gin.Context) {
	out := schemaView{Scalars: whatsnew.Canonical.Scalars}
	for _, spec := range whatsnew.Canonical.Collections {
		out.Collections = append(out.Collections, collectionView{CollectionSpec: spec, Template: spec.Template()})
	}
	c.JSON(http.StatusOK, out)
}

func (h *WhatsNewHandler) Submissions(c *gin.Context) {
	if h.subs == nil {
		c.JSON(http.StatusOK, []submissions.Entry{})
		return
	}
	limit := defaultRecentLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := h.subs.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("list submissions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgFetchFailed})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *WhatsNewHandler) Submission(c *gin.Context) {
	e, ok := h.entry(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, e)
}

// Snapshot returns the archived document of a successful submission.
func (h *WhatsNewHandler) Snapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive not configured"})
		return
	}
	e, ok := h.entry(c)
	if !ok {
		return
	}
	if e.ArchiveKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission has no archived snapshot"})
		return
	}
	doc, err := h.snapshots.Load(c.Request.Context(), e.ArchiveKey)
	if err != nil {
		logger.Errorf("load snapshot %s: %v", e.ArchiveKey, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": msgFetchFailed})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *WhatsNewHandler) entry(c *gin.Context) (*submissions.Entry, bool) {
	if h.subs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return nil, false
	}
	e, err := h.subs.Get(c.Request.Context(), c.Param("draftId"))
	if err != nil {
		logger.Errorf("get submission: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgFetchFailed})
		return nil, false
	}
	if e == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "submission not found"})
		return nil, false
	}
	return e, true
}
