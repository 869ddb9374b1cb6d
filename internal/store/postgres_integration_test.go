//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ravikanth/payflux/internal/domain"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("payflux_test"),
		postgres.WithUsername("payflux"),
		postgres.WithPassword("payflux"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	pg, err := NewPostgres(ctx, connStr, 8)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { pg.Close(ctx) })

	if err := pg.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return pg
}

func pgRecord(id string, createdAt time.Time) domain.Transaction {
	return domain.Transaction{
		ID:                 id,
		SourceAccount:      "ACC-A",
		DestinationAccount: "ACC-B",
		Amount:             decimal.RequireFromString("100.00"),
		Currency:           "USD",
		Status:             domain.StatusProcessing,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func TestPostgresInsertIfAbsent(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	inserted, err := pg.InsertIfAbsent(ctx, pgRecord("tx1", now))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatal("expected inserted=true on first insert")
	}

	inserted, err = pg.InsertIfAbsent(ctx, pgRecord("tx1", now))
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatal("expected inserted=false on duplicate insert")
	}

	got, err := pg.GetByID(ctx, "tx1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", got.Status)
	}
	if !got.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("amount mismatch: %s", got.Amount)
	}
	if got.ProcessedAt != nil {
		t.Fatalf("expected nil processed_at, got %v", got.ProcessedAt)
	}
}

func TestPostgresInsertIfAbsentConcurrent(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := pg.InsertIfAbsent(ctx, pgRecord("tx-race", now))
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			if inserted {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}

func TestPostgresTransitionToProcessed(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	if _, err := pg.InsertIfAbsent(ctx, pgRecord("tx1", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	processedAt := now.Add(30 * time.Second)
	updated, err := pg.TransitionToProcessed(ctx, "tx1", processedAt)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !updated {
		t.Fatal("expected transition to apply")
	}

	got, err := pg.GetByID(ctx, "tx1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusProcessed {
		t.Fatalf("expected PROCESSED, got %s", got.Status)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(processedAt) {
		t.Fatalf("expected processed_at %v, got %v", processedAt, got.ProcessedAt)
	}

	updated, err = pg.TransitionToProcessed(ctx, "tx1", processedAt.Add(time.Minute))
	if err != nil {
		t.Fatalf("reapply transition: %v", err)
	}
	if updated {
		t.Fatal("expected updated=false on reapply")
	}
	got, _ = pg.GetByID(ctx, "tx1")
	if !got.ProcessedAt.Equal(processedAt) {
		t.Fatalf("processed_at changed on reapply: %v", got.ProcessedAt)
	}

	updated, err = pg.TransitionToProcessed(ctx, "missing", processedAt)
	if err != nil {
		t.Fatalf("transition unknown id: %v", err)
	}
	if updated {
		t.Fatal("expected updated=false for unknown id")
	}
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	pg := setupPostgres(t)

	_, err := pg.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresListOrderAndPagination(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("tx%d", i)
		if _, err := pg.InsertIfAbsent(ctx, pgRecord(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	txs, err := pg.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 5 || txs[0].ID != "tx4" || txs[4].ID != "tx0" {
		t.Fatalf("unexpected order: %+v", txs)
	}

	page, err := pg.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "tx2" || page[1].ID != "tx1" {
		t.Fatalf("unexpected page: %+v", page)
	}

	empty, err := pg.List(ctx, 10, 100)
	if err != nil {
		t.Fatalf("list beyond end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty slice, got %d records", len(empty))
	}
}
