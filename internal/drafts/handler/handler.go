package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradexpert/whatsnew-admin/internal/drafts"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/service"
	"github.com/tradexpert/whatsnew-admin/internal/formstate"
	"github.com/tradexpert/whatsnew-admin/internal/newsfeed"
	"github.com/tradexpert/whatsnew-admin/internal/upstream"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
	"github.com/tradexpert/whatsnew-admin/pkg/metrics"
	"github.com/tradexpert/whatsnew-admin/pkg/middleware"
)

const (
	msgSaved         = "Data saved successfully!"
	msgUpdated       = "Data updated successfully"
	msgSaveFailed    = "Error saving data"
	msgUpdateFailed  = "Failed to update data"
	msgFetchFailed   = "Failed to fetch data"
	newsCollection   = "news"
	defaultNewsLimit = 10
)

// FeedFetcher reads RSS feeds for the news import.
type FeedFetcher interface {
	FetchAll(ctx context.Context, urls []string, limit int) ([]newsfeed.Item, error)
}

// NewsDefaults applies when an import request names no feeds or limit.
type NewsDefaults struct {
	Feeds []string
	Limit int
}

// View is the JSON shape of a draft. History is reported by depth only.
type View struct {
	ID        string      `json:"id"`
	Mode      drafts.Mode `json:"mode"`
	RecordID  string      `json:"recordId,omitempty"`
	Version   int64       `json:"version"`
	InFlight  bool        `json:"inFlight"`
	CanUndo   bool        `json:"canUndo"`
	Document  interface{} `json:"document"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// NewView renders d.
func NewView(d *drafts.Draft) View {
	return View{
		ID:        d.ID,
		Mode:      d.Mode,
		RecordID:  d.RecordID,
		Version:   d.Version,
		InFlight:  d.InFlight,
		CanUndo:   len(d.History) > 0,
		Document:  d.Document,
		ExpiresAt: d.ExpiresAt,
	}
}

// RegisterDraftRoutes mounts the editing-session endpoints under /drafts of r.
// fetcher may be nil, in which case news import answers 503.
func RegisterDraftRoutes(r gin.IRouter, svc *service.Service, fetcher FeedFetcher, news NewsDefaults) {
	g := r.Group("/drafts")

	g.POST("", func(c *gin.Context) {
		d, err := svc.OpenCreate(c.Request.Context(), middleware.Subject(c))
		if err != nil {
			logger.Errorf("open draft: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open draft"})
			return
		}
		c.JSON(http.StatusCreated, NewView(d))
	})

	g.GET("/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			WriteError(c, err, msgFetchFailed)
			return
		}
		c.JSON(http.StatusOK, NewView(d))
	})

	// accepts a single edit object or {"edits":[...]}
	g.POST("/:id/edits", func(c *gin.Context) {
		var req struct {
			Edits []formstate.Edit `json:"edits"`
			formstate.Edit
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		edits := req.Edits
		if len(edits) == 0 && req.Op != "" {
			edits = []formstate.Edit{req.Edit}
		}
		d, err := svc.ApplyEdits(c.Request.Context(), c.Param("id"), edits)
		if err != nil {
			WriteError(c, err, msgUpdateFailed)
			return
		}
		c.JSON(http.StatusOK, NewView(d))
	})

	g.POST("/:id/undo", func(c *gin.Context) {
		d, err := svc.Undo(c.Request.Context(), c.Param("id"))
		if err != nil {
			WriteError(c, err, msgUpdateFailed)
			return
		}
		c.JSON(http.StatusOK, NewView(d))
	})

	g.POST("/:id/submit", func(c *gin.Context) {
		res, err := svc.Submit(c.Request.Context(), c.Param("id"))
		fail, ok := msgSaveFailed, msgSaved
		if res.Mode == drafts.ModeEdit {
			fail, ok = msgUpdateFailed, msgUpdated
		}
		if err != nil {
			WriteError(c, err, fail)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":    ok,
			"mode":       res.Mode,
			"recordId":   res.RecordID,
			"title":      res.Title,
			"archiveKey": res.ArchiveKey,
		})
	})

	g.DELETE("/:id", func(c *gin.Context) {
		if err := svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			WriteError(c, err, msgUpdateFailed)
			return
		}
		c.Status(http.StatusNoContent)
	})

	g.POST("/:id/news/import", func(c *gin.Context) {
		if fetcher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "news import not configured"})
			return
		}
		var req struct {
			Feeds []string `json:"feeds"`
			Limit int      `json:"limit"`
		}
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		if len(req.Feeds) == 0 {
			req.Feeds = news.Feeds
		}
		if req.Limit <= 0 {
			req.Limit = news.Limit
		}
		if req.Limit <= 0 {
			req.Limit = defaultNewsLimit
		}

		ctx := c.Request.Context()
		id := c.Param("id")
		if _, err := svc.Get(ctx, id); err != nil {
			WriteError(c, err, msgFetchFailed)
			return
		}
		items, err := fetcher.FetchAll(ctx, req.Feeds, req.Limit)
		if err != nil {
			WriteError(c, err, msgFetchFailed)
			return
		}
		if len(items) == 0 {
			d, err := svc.Get(ctx, id)
			if err != nil {
				WriteError(c, err, msgFetchFailed)
				return
			}
			c.JSON(http.StatusOK, gin.H{"imported": 0, "draft": NewView(d)})
			return
		}
		d, err := svc.AppendRows(ctx, id, newsCollection, newsfeed.ToRows(items))
		if err != nil {
			WriteError(c, err, msgUpdateFailed)
			return
		}
		metrics.NewsImported.Add(float64(len(items)))
		c.JSON(http.StatusOK, gin.H{"imported": len(items), "draft": NewView(d)})
	})
}

// WriteError answers with the status err maps to and {"error": message}.
// Upstream failures carry the server's message when it sent one, otherwise
// fallback.
func WriteError(c *gin.Context, err error, fallback string) {
	status, msg := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, drafts.ErrNotFound):
		status, msg = http.StatusNotFound, "draft not found"
	case errors.Is(err, drafts.ErrInFlight):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, drafts.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrNothingToUndo):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, formstate.ErrMalformedPath),
		errors.Is(err, formstate.ErrUnknownCollection),
		errors.Is(err, formstate.ErrOutOfRange),
		errors.Is(err, formstate.ErrUnknownOp),
		errors.Is(err, service.ErrNoEdits),
		errors.Is(err, service.ErrBadFormat),
		errors.Is(err, newsfeed.ErrNoFeeds):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, newsfeed.ErrAllFeedsFailed):
		status = http.StatusBadGateway
	default:
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) || errors.Is(err, upstream.ErrNotFound) {
			status, msg = upstream.StatusFor(err), upstream.MessageOr(err, fallback)
		} else if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		} else if !errors.Is(err, context.Canceled) {
			status = http.StatusBadGateway
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": msg})
}
