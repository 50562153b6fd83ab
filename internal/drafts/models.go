// Package drafts holds editing sessions: the working copy a screen edits,
// its undo history and the in-flight flag guarding submission.
package drafts

import (
	"errors"
	"time"

	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

var (
	ErrNotFound = errors.New("draft not found")
	// ErrInFlight rejects a second submit, or an edit, while a submit is running.
	ErrInFlight = errors.New("submission already in flight")
	// ErrConflict reports a lost race between two writers of the same draft.
	ErrConflict = errors.New("draft changed concurrently")
)

// Mode says what submitting a draft does upstream.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeCreate || m == ModeEdit
}

// Draft is one screen's editing session.
type Draft struct {
	ID   string `json:"id"`
	Mode Mode   `json:"mode"`
	// RecordID is the upstream _id being edited (edit mode only).
	RecordID string `json:"recordId,omitempty"`
	Owner    string `json:"owner,omitempty"`

	Document whatsnew.Document `json:"document"`
	// History holds prior snapshots, oldest first.
	History []whatsnew.Document `json:"history,omitempty"`
	// Version counts committed snapshots; every edit bumps it by one.
	Version  int64 `json:"version"`
	InFlight bool  `json:"inFlight"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the draft outlived its TTL at now.
func (d *Draft) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// Clone returns a copy whose History slice is not shared. Documents are
// immutable values and are shared.
func (d *Draft) Clone() *Draft {
	out := *d
	out.History = append([]whatsnew.Document(nil), d.History...)
	return &out
}
