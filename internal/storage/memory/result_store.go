package memory

import (
	"context"
	"sync"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu     sync.RWMutex
	tables map[domain.ResultTable][]domain.TrialResult
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		tables: make(map[domain.ResultTable][]domain.TrialResult),
	}
}

// SaveResults replaces the contents of a table.
func (s *ResultStore) SaveResults(_ context.Context, table domain.ResultTable, results []*domain.TrialResult) error {
	if table == "" {
		return storage.ErrInvalidInput
	}

	rows := make([]domain.TrialResult, 0, len(results))
	for _, r := range results {
		if r == nil || r.FormulaID == "" {
			return storage.ErrInvalidInput
		}
		rows = append(rows, *r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = rows
	return nil
}

// LoadResults returns a table's rows in saved order. Returns ErrNotFound if never saved.
func (s *ResultStore) LoadResults(_ context.Context, table domain.ResultTable) ([]*domain.TrialResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, storage.ErrNotFound
	}

	out := make([]*domain.TrialResult, len(rows))
	for i := range rows {
		c := rows[i]
		out[i] = &c
	}
	return out, nil
}

var _ storage.ResultStore = (*ResultStore)(nil)
