package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradexpert/whatsnew-admin/internal/dates"
	"github.com/tradexpert/whatsnew-admin/internal/drafts"
	"github.com/tradexpert/whatsnew-admin/internal/drafts/repository"
	"github.com/tradexpert/whatsnew-admin/internal/formstate"
	"github.com/tradexpert/whatsnew-admin/internal/richtext"
	"github.com/tradexpert/whatsnew-admin/internal/submissions"
	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
	"github.com/tradexpert/whatsnew-admin/pkg/logger"
	"github.com/tradexpert/whatsnew-admin/pkg/metrics"
)

var (
	ErrNoEdits       = errors.New("no edits given")
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrBadFormat     = errors.New("unknown rich-text format")
	ErrBadMode       = errors.New("unknown draft mode")
	ErrMissingRecord = errors.New("edit drafts need a record id")
)

const conflictRetries = 3

// RecordStore is where submitted documents go.
type RecordStore interface {
	Create(ctx context.Context, doc whatsnew.Document) error
	Update(ctx context.Context, id string, doc whatsnew.Document) error
}

// Archiver stores a copy of what was submitted and returns its key.
type Archiver interface {
	Archive(ctx context.Context, draftID string, doc whatsnew.Document, at time.Time) (string, error)
}

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	TTL          time.Duration
	HistoryLimit int
	Archiver     Archiver
	Recorder     submissions.Store
	Now          func() time.Time
}

// Service runs editing sessions on top of a draft repository.
type Service struct {
	repo     repository.Repository
	store    RecordStore
	archiver Archiver
	recorder submissions.Store
	ttl      time.Duration
	history  int
	now      func() time.Time
}

func New(repo repository.Repository, store RecordStore, opts Options) *Service {
	s := &Service{
		repo:     repo,
		store:    store,
		archiver: opts.Archiver,
		recorder: opts.Recorder,
		ttl:      opts.TTL,
		history:  opts.HistoryLimit,
		now:      opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 120 * time.Minute
	}
	if s.history <= 0 {
		s.history = 50
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Open starts a session over doc.
func (s *Service) Open(ctx context.Context, mode drafts.Mode, recordID string, doc whatsnew.Document, owner string) (*drafts.Draft, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrBadMode, mode)
	}
	if mode == drafts.ModeEdit && recordID == "" {
		return nil, ErrMissingRecord
	}
	now := s.now().UTC()
	d := &drafts.Draft{
		ID:        uuid.NewString(),
		Mode:      mode,
		RecordID:  recordID,
		Owner:     owner,
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	logger.Debugf("draft %s opened (mode=%s record=%s)", d.ID, mode, recordID)
	return d, nil
}

// OpenCreate starts the add flow from the empty template document.
func (s *Service) OpenCreate(ctx context.Context, owner string) (*drafts.Draft, error) {
	return s.Open(ctx, drafts.ModeCreate, "", whatsnew.NewDocument(), owner)
}

// OpenEdit starts the manage flow's edit session on an existing record: the
// record is filled to the full schema and its dates are shown in edit format.
func (s *Service) OpenEdit(ctx context.Context, record whatsnew.Document, owner string) (*drafts.Draft, error) {
	doc := dates.ToEditDocument(whatsnew.FillDefaults(record))
	return s.Open(ctx, drafts.ModeEdit, record.ID, doc, owner)
}

func (s *Service) Get(ctx context.Context, id string) (*drafts.Draft, error) {
	return s.repo.Get(ctx, id)
}

// ApplyEdits applies edits in order as one step of history. Either every edit
// applies or none does.
func (s *Service) ApplyEdits(ctx context.Context, id string, edits []formstate.Edit) (*drafts.Draft, error) {
	if len(edits) == 0 {
		return nil, ErrNoEdits
	}
	d, err := s.commit(ctx, id, func(doc whatsnew.Document) (whatsnew.Document, error) {
		for _, e := range edits {
			var err error
			if doc, err = applyOne(doc, e); err != nil {
				metrics.DraftEdits.WithLabelValues(string(e.Op), "rejected").Inc()
				return doc, err
			}
		}
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	for _, e := range edits {
		metrics.DraftEdits.WithLabelValues(string(e.Op), "applied").Inc()
	}
	return d, nil
}

// ApplyEdit applies a single edit.
func (s *Service) ApplyEdit(ctx context.Context, id string, e formstate.Edit) (*drafts.Draft, error) {
	return s.ApplyEdits(ctx, id, []formstate.Edit{e})
}

func applyOne(doc whatsnew.Document, e formstate.Edit) (whatsnew.Document, error) {
	if e.Op == formstate.OpSetRichText {
		switch strings.ToLower(e.Format) {
		case "", "html":
		case "markdown", "md":
			html, err := richtext.ToHTML(e.Value)
			if err != nil {
				return doc, err
			}
			e.Value = html
		default:
			return doc, fmt.Errorf("%w: %q", ErrBadFormat, e.Format)
		}
	}
	return formstate.Apply(doc, e)
}

// AppendRows appends rows to collection as one step of history.
func (s *Service) AppendRows(ctx context.Context, id, collection string, rows []whatsnew.Row) (*drafts.Draft, error) {
	if _, ok := whatsnew.Canonical.Collection(collection); !ok {
		return nil, fmt.Errorf("%w: %s", formstate.ErrUnknownCollection, collection)
	}
	if len(rows) == 0 {
		return nil, ErrNoEdits
	}
	return s.commit(ctx, id, func(doc whatsnew.Document) (whatsnew.Document, error) {
		for _, r := range rows {
			doc = formstate.AppendRow(doc, collection, r)
		}
		return doc, nil
	})
}

// Undo restores the snapshot before the last committed step.
func (s *Service) Undo(ctx context.Context, id string) (*drafts.Draft, error) {
	for attempt := 0; ; attempt++ {
		d, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.InFlight {
			return nil, drafts.ErrInFlight
		}
		if len(d.History) == 0 {
			return nil, ErrNothingToUndo
		}
		prev := d.Version
		next := d.Clone()
		last := len(next.History) - 1
		next.Document = next.History[last]
		next.History = next.History[:last]
		s.touch(next)
		err = s.repo.Update(ctx, next, prev)
		if errors.Is(err, drafts.ErrConflict) && attempt < conflictRetries {
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
}

// Cancel discards the session. A draft with a submit in flight stays.
func (s *Service) Cancel(ctx context.Context, id string) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.InFlight {
		return drafts.ErrInFlight
	}
	return s.repo.Delete(ctx, id)
}

// commit reads the draft, derives the next snapshot with fn and stores it,
// retrying when another writer got there first. Every committed snapshot
// bumps the version, so snapshots are totally ordered.
func (s *Service) commit(ctx context.Context, id string, fn func(whatsnew.Document) (whatsnew.Document, error)) (*drafts.Draft, error) {
	for attempt := 0; ; attempt++ {
		d, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if d.InFlight {
			return nil, drafts.ErrInFlight
		}
		doc, err := fn(d.Document)
		if err != nil {
			return nil, err
		}
		prev := d.Version
		next := d.Clone()
		next.History = append(next.History, d.Document)
		if over := len(next.History) - s.history; over > 0 {
			next.History = next.History[over:]
		}
		next.Document = doc
		s.touch(next)
		err = s.repo.Update(ctx, next, prev)
		if errors.Is(err, drafts.ErrConflict) && attempt < conflictRetries {
			logger.Debugf("draft %s: concurrent write, retrying", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
}

func (s *Service) touch(d *drafts.Draft) {
	now := s.now().UTC()
	d.Version++
	d.UpdatedAt = now
	d.ExpiresAt = now.Add(s.ttl)
}

// Result describes a submit attempt.
type Result struct {
	DraftID    string
	Mode       drafts.Mode
	RecordID   string
	Title      string
	ArchiveKey string
}

// Submit sends the sanitized draft upstream: create for add sessions, update
// for edit sessions. Only one submit per draft runs at a time; a concurrent
// call fails with drafts.ErrInFlight. On success the draft is discarded; on
// failure the flag is cleared and the draft is left as it was. Result.Mode is
// set whenever the draft was found, so callers can pick their messages.
func (s *Service) Submit(ctx context.Context, id string) (Result, error) {
	d, err := s.repo.ClaimSubmit(ctx, id)
	if err != nil {
		return Result{DraftID: id}, err
	}
	res := Result{DraftID: d.ID, Mode: d.Mode, RecordID: d.RecordID, Title: d.Document.Title()}
	payload := dates.SanitizeDocument(d.Document)
	at := s.now().UTC()

	switch d.Mode {
	case drafts.ModeEdit:
		err = s.store.Update(ctx, d.RecordID, payload)
	default:
		err = s.store.Create(ctx, payload)
	}
	if err != nil {
		metrics.Submissions.WithLabelValues(string(d.Mode), submissions.StatusFailed).Inc()
		// release with a fresh context so a cancelled request does not wedge the draft
		if rerr := s.repo.ReleaseSubmit(context.WithoutCancel(ctx), d.ID); rerr != nil {
			logger.Errorf("draft %s: release after failed submit: %v", d.ID, rerr)
		}
		s.record(ctx, d, res, submissions.StatusFailed, err, at)
		return res, fmt.Errorf("submit draft %s: %w", d.ID, err)
	}

	if s.archiver != nil {
		key, aerr := s.archiver.Archive(ctx, d.ID, payload, at)
		if aerr != nil {
			logger.Warnf("draft %s: archive snapshot: %v", d.ID, aerr)
		} else {
			res.ArchiveKey = key
		}
	}
	s.record(ctx, d, res, submissions.StatusOK, nil, at)
	metrics.Submissions.WithLabelValues(string(d.Mode), submissions.StatusOK).Inc()
	if derr := s.repo.Delete(context.WithoutCancel(ctx), d.ID); derr != nil {
		logger.Warnf("draft %s: discard after submit: %v", d.ID, derr)
	}
	logger.Infof("draft %s submitted (mode=%s record=%s)", d.ID, d.Mode, d.RecordID)
	return res, nil
}

func (s *Service) record(ctx context.Context, d *drafts.Draft, res Result, status string, cause error, at time.Time) {
	if s.recorder == nil {
		return
	}
	e := submissions.Entry{
		DraftID:     d.ID,
		Mode:        string(d.Mode),
		RecordID:    d.RecordID,
		Title:       res.Title,
		Owner:       d.Owner,
		Status:      status,
		ArchiveKey:  res.ArchiveKey,
		SubmittedAt: at,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		logger.Warnf("draft %s: record submission: %v", d.ID, err)
	}
}
