package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/ravikanth/payflux/internal/store"
)

// CompletionStep is the slow external operation that finalizes a transaction.
// Nominal latency is tens of seconds; implementations must honor ctx.
type CompletionStep interface {
	Run(ctx context.Context, transactionID string) error
}

// SimulatedStep stands in for the external processor by sleeping.
type SimulatedStep struct {
	Delay time.Duration
}

func (s SimulatedStep) Run(ctx context.Context, _ string) error {
	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completer performs the asynchronous completion of an accepted transaction:
// run the slow step, then apply the PROCESSING -> PROCESSED transition. Any
// failure is logged and the record stays PROCESSING; there is no retry and
// nothing propagates to the webhook caller, who was acknowledged long ago.
type Completer struct {
	logger *slog.Logger
	store  store.Store
	step   CompletionStep
	now    func() time.Time
}

// NewCompleter constructs a Completer.
func NewCompleter(logger *slog.Logger, st store.Store, step CompletionStep) *Completer {
	return &Completer{
		logger: logger,
		store:  st,
		step:   step,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Complete runs the slow step for the transaction and marks it PROCESSED.
func (c *Completer) Complete(ctx context.Context, transactionID string) {
	start := c.now()
	c.logger.Info("completing transaction", "transactionId", transactionID)

	if err := c.step.Run(ctx, transactionID); err != nil {
		c.logger.Error("completion step failed, transaction left PROCESSING",
			"transactionId", transactionID, "error", err)
		return
	}

	updated, err := c.store.TransitionToProcessed(ctx, transactionID, c.now())
	if err != nil {
		c.logger.Error("transition failed, transaction left PROCESSING",
			"transactionId", transactionID, "error", err)
		return
	}
	if !updated {
		// Already processed or never inserted; either way there is nothing
		// left to do and reapplying must stay a no-op.
		c.logger.Warn("transition applied nothing", "transactionId", transactionID)
		return
	}

	c.logger.Info("transaction processed",
		"transactionId", transactionID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
