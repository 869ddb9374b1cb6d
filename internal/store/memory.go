package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ravikanth/payflux/internal/domain"
)

// Memory is an in-memory Store used by unit tests and by the memory driver
// for local development. A single mutex makes both write primitives atomic,
// matching the semantics the SQL drivers get from the database engine.
type Memory struct {
	mu      sync.Mutex
	records map[string]domain.Transaction
	err     error
}

// NewMemory instantiates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]domain.Transaction)}
}

// FailWith forces every subsequent operation to return err. Pass nil to
// restore normal behaviour. Used by tests exercising store-failure paths.
func (m *Memory) FailWith(err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *Memory) InsertIfAbsent(_ context.Context, tx domain.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if _, exists := m.records[tx.ID]; exists {
		return false, nil
	}
	m.records[tx.ID] = tx.Clone()
	return true, nil
}

func (m *Memory) TransitionToProcessed(_ context.Context, id string, processedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	rec, ok := m.records[id]
	if !ok || rec.Status != domain.StatusProcessing {
		return false, nil
	}

	ts := processedAt
	rec.Status = domain.StatusProcessed
	rec.ProcessedAt = &ts
	rec.UpdatedAt = processedAt
	m.records[id] = rec
	return true, nil
}

func (m *Memory) GetByID(_ context.Context, id string) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return domain.Transaction{}, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return domain.Transaction{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) List(_ context.Context, limit, offset int) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	all := make([]domain.Transaction, 0, len(m.records))
	for _, rec := range m.records {
		all = append(all, rec.Clone())
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []domain.Transaction{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Memory) Close(context.Context) error {
	return nil
}
