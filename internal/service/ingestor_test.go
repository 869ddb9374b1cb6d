package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ravikanth/payflux/internal/domain"
	"github.com/ravikanth/payflux/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingScheduler captures submitted tasks without running them.
type recordingScheduler struct {
	mu     sync.Mutex
	tasks  []Task
	reject bool
}

func (s *recordingScheduler) Submit(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.tasks = append(s.tasks, task)
	return true
}

func (s *recordingScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func payload(id string) WebhookPayload {
	return WebhookPayload{
		TransactionID:      id,
		SourceAccount:      "ACC-A",
		DestinationAccount: "ACC-B",
		Amount:             decimal.NewFromFloat(100.00),
		Currency:           "usd",
	}
}

func newTestIngestor(st store.Store, sched Scheduler) *Ingestor {
	logger := testLogger()
	completer := NewCompleter(logger, st, SimulatedStep{Delay: 0})
	return NewIngestor(logger, st, sched, completer)
}

func TestIngestorAcceptSchedulesOnce(t *testing.T) {
	mem := store.NewMemory()
	sched := &recordingScheduler{}
	ing := newTestIngestor(mem, sched)
	ctx := context.Background()

	if outcome := ing.Accept(ctx, payload("tx1")); outcome != AcceptScheduled {
		t.Fatalf("expected AcceptScheduled, got %v", outcome)
	}
	if outcome := ing.Accept(ctx, payload("tx1")); outcome != AcceptDuplicate {
		t.Fatalf("expected AcceptDuplicate, got %v", outcome)
	}

	if sched.count() != 1 {
		t.Fatalf("expected exactly 1 scheduled task, got %d", sched.count())
	}

	got, err := mem.GetByID(ctx, "tx1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusProcessing {
		t.Fatalf("expected PROCESSING before completion, got %s", got.Status)
	}
	if got.Currency != "USD" {
		t.Fatalf("expected normalized currency USD, got %s", got.Currency)
	}
}

func TestIngestorAcceptConcurrentDuplicates(t *testing.T) {
	mem := store.NewMemory()
	sched := &recordingScheduler{}
	ing := newTestIngestor(mem, sched)

	const deliveries = 32
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ing.Accept(context.Background(), payload("tx1"))
		}()
	}
	wg.Wait()

	if sched.count() != 1 {
		t.Fatalf("expected exactly 1 scheduled task, got %d", sched.count())
	}

	txs, err := mem.List(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly 1 stored record, got %d", len(txs))
	}
}

func TestIngestorAcceptRejectsInvalidPayload(t *testing.T) {
	mem := store.NewMemory()
	sched := &recordingScheduler{}
	ing := newTestIngestor(mem, sched)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*WebhookPayload)
	}{
		{"missing id", func(p *WebhookPayload) { p.TransactionID = "" }},
		{"missing source", func(p *WebhookPayload) { p.SourceAccount = "" }},
		{"zero amount", func(p *WebhookPayload) { p.Amount = decimal.Zero }},
		{"negative amount", func(p *WebhookPayload) { p.Amount = decimal.NewFromInt(-1) }},
		{"bad currency", func(p *WebhookPayload) { p.Currency = "DOLLARS" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := payload("tx-invalid")
			tc.mutate(&p)
			if outcome := ing.Accept(ctx, p); outcome != AcceptRejectedPayload {
				t.Fatalf("expected AcceptRejectedPayload, got %v", outcome)
			}
		})
	}

	if sched.count() != 0 {
		t.Fatalf("expected no scheduled tasks, got %d", sched.count())
	}
	if _, err := mem.GetByID(ctx, "tx-invalid"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected nothing stored, got %v", err)
	}
}

func TestIngestorAcceptStoreFailure(t *testing.T) {
	mem := store.NewMemory().FailWith(errors.New("store down"))
	sched := &recordingScheduler{}
	ing := newTestIngestor(mem, sched)

	if outcome := ing.Accept(context.Background(), payload("tx1")); outcome != AcceptStoreError {
		t.Fatalf("expected AcceptStoreError, got %v", outcome)
	}
	if sched.count() != 0 {
		t.Fatalf("expected no scheduled tasks, got %d", sched.count())
	}
}

func TestIngestorAcceptSchedulerFull(t *testing.T) {
	mem := store.NewMemory()
	sched := &recordingScheduler{reject: true}
	ing := newTestIngestor(mem, sched)
	ctx := context.Background()

	if outcome := ing.Accept(ctx, payload("tx1")); outcome != AcceptDropped {
		t.Fatalf("expected AcceptDropped, got %v", outcome)
	}

	// The record is still stored; it just stays PROCESSING forever.
	got, err := mem.GetByID(ctx, "tx1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", got.Status)
	}
}
