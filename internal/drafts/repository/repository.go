package repository

import (
	"context"

	"github.com/tradexpert/whatsnew-admin/internal/drafts"
)

// Repository persists drafts. Every backend makes ClaimSubmit atomic so that
// only one submit per draft can be in flight.
type Repository interface {
	Create(ctx context.Context, d *drafts.Draft) error
	// Get returns drafts.ErrNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*drafts.Draft, error)
	// Update stores d if the stored version still equals prev and no submit
	// is in flight (drafts.ErrConflict, drafts.ErrInFlight otherwise).
	Update(ctx context.Context, d *drafts.Draft, prev int64) error
	Delete(ctx context.Context, id string) error
	// ClaimSubmit sets the in-flight flag and returns the claimed draft, or
	// drafts.ErrInFlight when it was already set.
	ClaimSubmit(ctx context.Context, id string) (*drafts.Draft, error)
	ReleaseSubmit(ctx context.Context, id string) error
}
