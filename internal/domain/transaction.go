package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction status values. PROCESSING is the only initial state and
// PROCESSED is terminal; no other transition exists.
const (
	StatusProcessing = "PROCESSING"
	StatusProcessed  = "PROCESSED"
)

// Transaction models a durably recorded transaction webhook. The ID is the
// idempotency key: the store guarantees at most one record per ID ever
// exists. ProcessedAt is nil until the background completion step succeeds.
type Transaction struct {
	ID                 string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
	Status             string
	CreatedAt          time.Time
	ProcessedAt        *time.Time
	UpdatedAt          time.Time
}

var (
	ErrMissingTransactionID = errors.New("transaction id is required")
	ErrMissingAccount       = errors.New("source and destination accounts are required")
	ErrNonPositiveAmount    = errors.New("amount must be greater than zero")
	ErrInvalidCurrency      = errors.New("currency must be a 3-letter code")
)

// Validate checks the structural invariants a record must satisfy before it
// may be persisted. Currency is expected to already be normalized via
// NormalizeCurrency.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingTransactionID
	}
	if strings.TrimSpace(t.SourceAccount) == "" || strings.TrimSpace(t.DestinationAccount) == "" {
		return ErrMissingAccount
	}
	if !t.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !validCurrency(t.Currency) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency)
	}
	return nil
}

// NormalizeCurrency trims and uppercases a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Clone returns a copy of the transaction with no shared pointers, so callers
// can never mutate stored state through a returned record.
func (t Transaction) Clone() Transaction {
	out := t
	if t.ProcessedAt != nil {
		ts := *t.ProcessedAt
		out.ProcessedAt = &ts
	}
	return out
}
