package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ravikanth/payflux/internal/domain"
)

// Store is the persistence contract for transaction records. All coordination
// in the service flows through its two write primitives: an atomic
// insert-if-absent keyed by transaction ID, and a conditional transition that
// only applies while the record is still PROCESSING. Implementations must
// guarantee that under concurrent InsertIfAbsent calls with the same ID
// exactly one caller observes inserted=true.
type Store interface {
	// InsertIfAbsent persists the record unless one with the same ID already
	// exists. It reports whether this call created the record; a duplicate is
	// not an error.
	InsertIfAbsent(ctx context.Context, tx domain.Transaction) (inserted bool, err error)

	// TransitionToProcessed marks the record PROCESSED and stamps
	// processed_at, but only while the current status is PROCESSING.
	// Reapplying after success, or targeting an unknown ID, reports
	// updated=false without error.
	TransitionToProcessed(ctx context.Context, id string, processedAt time.Time) (updated bool, err error)

	// GetByID returns a copy of the record or ErrNotFound.
	GetByID(ctx context.Context, id string) (domain.Transaction, error)

	// List returns up to limit records ordered newest created_at first, ties
	// broken by ID. An offset past the end yields an empty slice.
	List(ctx context.Context, limit, offset int) ([]domain.Transaction, error)

	// Ping verifies the backing engine is reachable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// ErrNotFound is returned by GetByID when no record exists for the ID.
var ErrNotFound = errors.New("transaction not found")

// parseAmount decodes an amount persisted as text. Drivers store amounts as
// strings (or NUMERIC read back as text) to keep decimal fidelity.
func parseAmount(s string) (decimal.Decimal, error) {
	dec, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return dec, nil
}
