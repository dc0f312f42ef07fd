// Package repository declares the storage contract the catch service depends on.
//
// Storage is reached through a short-lived Session: the service acquires one
// at the start of an operation and closes it on every exit path, so no
// process-wide handle is shared between requests.
package repository

import (
	"context"

	"github.com/sakif/catchlog/internal/model"
)

// ListOptions filters a catch listing. A nil CatchType returns every catch.
type ListOptions struct {
	CatchType *model.CatchType
}

// CatchRepository holds the record primitives for catches.
//
// Create fills in ID and CreatedAt on the passed catch. GetByID, Update and
// Delete return an apperror.ErrNotFound error when the id does not exist.
// List orders by date_caught, most recent first.
type CatchRepository interface {
	Create(ctx context.Context, c *model.Catch) error
	GetByID(ctx context.Context, id int64) (*model.Catch, error)
	List(ctx context.Context, opts ListOptions) ([]model.Catch, error)
	Update(ctx context.Context, c *model.Catch) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.Stats, error)
}

// Session is a request-scoped handle on storage. Close releases it and must be
// called exactly once.
type Session interface {
	CatchRepository

	// WithinTx runs fn against the session inside a single transaction,
	// committing when fn returns nil and rolling back otherwise.
	WithinTx(ctx context.Context, fn func(repo CatchRepository) error) error

	Close() error
}

// Store hands out sessions.
type Store interface {
	Acquire(ctx context.Context) (Session, error)
}
