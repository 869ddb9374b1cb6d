package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ravikanth/payflux/internal/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const transactionsTable = "transactions"

var transactionColumns = []string{
	"transaction_id",
	"source_account",
	"destination_account",
	"amount::text",
	"currency",
	"status",
	"created_at",
	"processed_at",
	"updated_at",
}

// Postgres implements Store on top of a pgx connection pool. Idempotency
// rests on the table's unique constraint: InsertIfAbsent is a single
// ON CONFLICT DO NOTHING statement and TransitionToProcessed a single guarded
// UPDATE, so no application-level locking is needed.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to PostgreSQL and verifies connectivity.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the transactions table and its indexes if missing.
// Called once at startup.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transactions (
    transaction_id      VARCHAR(255) PRIMARY KEY,
    source_account      VARCHAR(255) NOT NULL,
    destination_account VARCHAR(255) NOT NULL,
    amount              NUMERIC(18, 2) NOT NULL,
    currency            VARCHAR(3) NOT NULL,
    status              VARCHAR(50) NOT NULL DEFAULT 'PROCESSING',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at        TIMESTAMPTZ NULL,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at DESC);
`
	if _, err := p.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) InsertIfAbsent(ctx context.Context, tx domain.Transaction) (bool, error) {
	query, args, err := psql.Insert(transactionsTable).
		Columns("transaction_id", "source_account", "destination_account",
			"amount", "currency", "status", "created_at", "updated_at").
		Values(tx.ID, tx.SourceAccount, tx.DestinationAccount,
			tx.Amount.String(), tx.Currency, tx.Status, tx.CreatedAt, tx.UpdatedAt).
		Suffix("ON CONFLICT (transaction_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert %s: %w", tx.ID, err)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) TransitionToProcessed(ctx context.Context, id string, processedAt time.Time) (bool, error) {
	query, args, err := psql.Update(transactionsTable).
		Set("status", domain.StatusProcessed).
		Set("processed_at", processedAt).
		Set("updated_at", processedAt).
		Where(sq.Eq{"transaction_id": id, "status": domain.StatusProcessing}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build transition %s: %w", id, err)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition transaction %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	query, args, err := psql.Select(transactionColumns...).
		From(transactionsTable).
		Where(sq.Eq{"transaction_id": id}).
		ToSql()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("build get %s: %w", id, err)
	}

	tx, err := scanTransaction(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

func (p *Postgres) List(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	query, args, err := psql.Select(transactionColumns...).
		From(transactionsTable).
		OrderBy("created_at DESC", "transaction_id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close(context.Context) error {
	p.pool.Close()
	return nil
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		tx        domain.Transaction
		amount    string
		processed *time.Time
	)
	if err := row.Scan(&tx.ID, &tx.SourceAccount, &tx.DestinationAccount,
		&amount, &tx.Currency, &tx.Status, &tx.CreatedAt, &processed, &tx.UpdatedAt); err != nil {
		return domain.Transaction{}, err
	}

	dec, err := parseAmount(amount)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Amount = dec
	tx.ProcessedAt = processed
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	if tx.ProcessedAt != nil {
		ts := tx.ProcessedAt.UTC()
		tx.ProcessedAt = &ts
	}
	return tx, nil
}
