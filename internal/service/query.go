package service

import (
	"context"

	"github.com/ravikanth/payflux/internal/domain"
	"github.com/ravikanth/payflux/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Query provides read-only access to stored transactions. Reads are plain
// snapshots: a record observed PROCESSING may be PROCESSED on the next read.
type Query struct {
	store store.Store
}

// NewQuery constructs a Query service over the store.
func NewQuery(st store.Store) *Query {
	return &Query{store: st}
}

// GetByID returns the record or store.ErrNotFound.
func (q *Query) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	return q.store.GetByID(ctx, id)
}

// List returns records newest-first. The limit is clamped to 1000 and
// defaults to 100; an offset past the end yields an empty slice.
func (q *Query) List(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return q.store.List(ctx, limit, offset)
}
