package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ravikanth/payflux/internal/domain"
)

// GraphOptions configures the graph-backed store driver.
type GraphOptions struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingGraphURI indicates the graph URI is not provided.
var ErrMissingGraphURI = errors.New("graph URI is required")

// Graph implements Store against Neo4j (or Neptune's openCypher endpoint,
// which is wire-compatible with the Bolt protocol). A uniqueness constraint
// on transaction_id plus MERGE gives the same insert-if-absent atomicity the
// relational driver gets from ON CONFLICT: each call tags the node with a
// fresh claim token on create, so only the creating call reads its own token
// back. Timestamps and amounts are stored as strings (RFC3339 UTC and
// decimal text) to keep ordering and precision portable.
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewGraph establishes a Bolt connection using the official Neo4j driver.
func NewGraph(ctx context.Context, opts GraphOptions) (*Graph, error) {
	if opts.URI == "" {
		return nil, ErrMissingGraphURI
	}

	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.MaxConnections > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnections
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify graph connectivity: %w", err)
	}

	return &Graph{driver: driver, database: opts.Database}, nil
}

// EnsureSchema creates the uniqueness constraint backing InsertIfAbsent.
func (g *Graph) EnsureSchema(ctx context.Context) error {
	const cypher = `CREATE CONSTRAINT transaction_id_unique IF NOT EXISTS
FOR (t:Transaction) REQUIRE t.transaction_id IS UNIQUE`

	if _, err := g.write(ctx, cypher, nil); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}
	return nil
}

const insertIfAbsentCypher = `MERGE (t:Transaction {transaction_id: $id})
ON CREATE SET
    t.source_account = $source,
    t.destination_account = $destination,
    t.amount = $amount,
    t.currency = $currency,
    t.status = $status,
    t.created_at = $createdAt,
    t.updated_at = $updatedAt,
    t.claim = $claim
RETURN t.claim = $claim AS inserted`

func (g *Graph) InsertIfAbsent(ctx context.Context, tx domain.Transaction) (bool, error) {
	params := map[string]any{
		"id":          tx.ID,
		"source":      tx.SourceAccount,
		"destination": tx.DestinationAccount,
		"amount":      tx.Amount.String(),
		"currency":    tx.Currency,
		"status":      tx.Status,
		"createdAt":   formatGraphTime(tx.CreatedAt),
		"updatedAt":   formatGraphTime(tx.UpdatedAt),
		"claim":       uuid.NewString(),
	}

	records, err := g.write(ctx, insertIfAbsentCypher, params)
	if err != nil {
		return false, fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	if len(records) == 0 {
		return false, fmt.Errorf("insert transaction %s: empty result", tx.ID)
	}
	inserted, _ := records[0]["inserted"].(bool)
	return inserted, nil
}

const transitionCypher = `MATCH (t:Transaction {transaction_id: $id})
WHERE t.status = $processing
SET t.status = $processed, t.processed_at = $processedAt, t.updated_at = $processedAt
RETURN count(t) AS updated`

func (g *Graph) TransitionToProcessed(ctx context.Context, id string, processedAt time.Time) (bool, error) {
	params := map[string]any{
		"id":          id,
		"processing":  domain.StatusProcessing,
		"processed":   domain.StatusProcessed,
		"processedAt": formatGraphTime(processedAt),
	}

	records, err := g.write(ctx, transitionCypher, params)
	if err != nil {
		return false, fmt.Errorf("transition transaction %s: %w", id, err)
	}
	if len(records) == 0 {
		return false, nil
	}
	updated, _ := records[0]["updated"].(int64)
	return updated == 1, nil
}

const transactionReturnClause = `RETURN
    t.transaction_id AS transactionId,
    t.source_account AS sourceAccount,
    t.destination_account AS destinationAccount,
    t.amount AS amount,
    t.currency AS currency,
    t.status AS status,
    t.created_at AS createdAt,
    t.processed_at AS processedAt,
    t.updated_at AS updatedAt`

func (g *Graph) GetByID(ctx context.Context, id string) (domain.Transaction, error) {
	cypher := `MATCH (t:Transaction {transaction_id: $id}) ` + transactionReturnClause

	records, err := g.read(ctx, cypher, map[string]any{"id": id})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	if len(records) == 0 {
		return domain.Transaction{}, ErrNotFound
	}
	return graphTransaction(records[0])
}

func (g *Graph) List(ctx context.Context, limit, offset int) ([]domain.Transaction, error) {
	cypher := `MATCH (t:Transaction) ` + transactionReturnClause +
		` ORDER BY t.created_at DESC, t.transaction_id ASC SKIP $offset LIMIT $limit`

	records, err := g.read(ctx, cypher, map[string]any{
		"offset": offset,
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(records))
	for _, rec := range records {
		tx, err := graphTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (g *Graph) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Graph) write(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return g.run(ctx, neo4j.AccessModeWrite, cypher, params)
}

func (g *Graph) read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return g.run(ctx, neo4j.AccessModeRead, cypher, params)
}

func (g *Graph) run(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]map[string]any, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
		AccessMode:   mode,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for res.Next(ctx) {
		rec := res.Record()
		record := make(map[string]any, len(rec.Keys))
		for _, key := range rec.Keys {
			value, _ := rec.Get(key)
			record[key] = value
		}
		records = append(records, record)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func graphTransaction(rec map[string]any) (domain.Transaction, error) {
	tx := domain.Transaction{
		ID:                 stringValue(rec["transactionId"]),
		SourceAccount:      stringValue(rec["sourceAccount"]),
		DestinationAccount: stringValue(rec["destinationAccount"]),
		Currency:           stringValue(rec["currency"]),
		Status:             stringValue(rec["status"]),
	}

	amount, err := parseAmount(stringValue(rec["amount"]))
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Amount = amount

	if tx.CreatedAt, err = parseGraphTime(rec["createdAt"]); err != nil {
		return domain.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseGraphTime(rec["updatedAt"]); err != nil {
		return domain.Transaction{}, err
	}
	if raw := stringValue(rec["processedAt"]); raw != "" {
		ts, err := parseGraphTime(raw)
		if err != nil {
			return domain.Transaction{}, err
		}
		tx.ProcessedAt = &ts
	}
	return tx, nil
}

// graphTimeLayout keeps a fixed-width fraction so ORDER BY on the stored
// string matches chronological order.
const graphTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatGraphTime(t time.Time) string {
	return t.UTC().Format(graphTimeLayout)
}

func parseGraphTime(v any) (time.Time, error) {
	raw := stringValue(v)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts.UTC(), nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
