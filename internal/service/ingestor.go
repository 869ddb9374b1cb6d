package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ravikanth/payflux/internal/domain"
	"github.com/ravikanth/payflux/internal/store"
)

// WebhookPayload carries the fields delivered by a webhook sender.
type WebhookPayload struct {
	TransactionID      string
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
}

// AcceptOutcome describes what Accept did with a payload. It exists for
// logging and tests only: the HTTP layer acknowledges every delivery with
// 202 regardless of outcome, so nothing here reaches the wire.
type AcceptOutcome int

const (
	// AcceptScheduled means a new record was stored and a completion task queued.
	AcceptScheduled AcceptOutcome = iota
	// AcceptDuplicate means a record with this ID already existed.
	AcceptDuplicate
	// AcceptRejectedPayload means validation failed; nothing was stored.
	AcceptRejectedPayload
	// AcceptStoreError means the insert failed; nothing was scheduled.
	AcceptStoreError
	// AcceptDropped means the record was stored but the completion task could
	// not be queued; the record stays PROCESSING.
	AcceptDropped
)

// Ingestor is the idempotent ingestion point for transaction webhooks. The
// store's atomic insert is the sole duplicate detector: whichever concurrent
// delivery wins the insert schedules the single completion task, every other
// delivery of the same ID becomes a logged no-op. There is deliberately no
// existence check before the insert; a read-then-write would race.
type Ingestor struct {
	logger    *slog.Logger
	store     store.Store
	scheduler Scheduler
	completer *Completer
	now       func() time.Time
}

// NewIngestor constructs an Ingestor.
func NewIngestor(logger *slog.Logger, st store.Store, scheduler Scheduler, completer *Completer) *Ingestor {
	return &Ingestor{
		logger:    logger,
		store:     st,
		scheduler: scheduler,
		completer: completer,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Accept validates and records the payload, scheduling exactly one completion
// task when this delivery is the first for its transaction ID. It never
// blocks on the slow completion step.
func (i *Ingestor) Accept(ctx context.Context, payload WebhookPayload) AcceptOutcome {
	now := i.now()
	tx := domain.Transaction{
		ID:                 payload.TransactionID,
		SourceAccount:      payload.SourceAccount,
		DestinationAccount: payload.DestinationAccount,
		Amount:             payload.Amount,
		Currency:           domain.NormalizeCurrency(payload.Currency),
		Status:             domain.StatusProcessing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := tx.Validate(); err != nil {
		i.logger.Warn("rejected webhook payload",
			"transactionId", payload.TransactionID, "error", err)
		return AcceptRejectedPayload
	}

	inserted, err := i.store.InsertIfAbsent(ctx, tx)
	if err != nil {
		i.logger.Error("webhook insert failed", "transactionId", tx.ID, "error", err)
		return AcceptStoreError
	}
	if !inserted {
		i.logger.Info("duplicate webhook delivery", "transactionId", tx.ID)
		return AcceptDuplicate
	}

	id := tx.ID
	if !i.scheduler.Submit(func(taskCtx context.Context) {
		i.completer.Complete(taskCtx, id)
	}) {
		i.logger.Error("completion task dropped, transaction left PROCESSING",
			"transactionId", id)
		return AcceptDropped
	}

	i.logger.Info("webhook accepted", "transactionId", id)
	return AcceptScheduled
}
