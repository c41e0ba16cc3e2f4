package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"formula-lab/internal/domain"
	"formula-lab/internal/storage"
)

// MarketStore is an in-memory implementation of storage.MarketStore.
type MarketStore struct {
	mu    sync.RWMutex
	spot  map[string]*domain.SpotBar    // keyed by (symbol, timestamp_ms)
	iv    map[string]*domain.IVPoint    // keyed by (symbol, timestamp_ms)
	basis map[string]*domain.BasisPoint // keyed by (symbol, timestamp_ms)
}

// NewMarketStore creates a new in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		spot:  make(map[string]*domain.SpotBar),
		iv:    make(map[string]*domain.IVPoint),
		basis: make(map[string]*domain.BasisPoint),
	}
}

// marketKey generates a unique key for a market sample.
func marketKey(symbol string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", symbol, timestampMs)
}

// insertAll adds items to data atomically. Fails entire batch on any duplicate.
func insertAll[T any](data map[string]*T, items []*T, key func(*T) (string, bool)) error {
	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(items))

	// First pass: check for duplicates (existing + intra-batch)
	for _, it := range items {
		if it == nil {
			return storage.ErrInvalidInput
		}
		k, ok := key(it)
		if !ok {
			return storage.ErrInvalidInput
		}
		if _, exists := data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert copies
	for _, it := range items {
		k, _ := key(it)
		c := *it
		data[k] = &c
	}
	return nil
}

// InsertSpotBars adds bars atomically. Fails entire batch on any duplicate.
func (s *MarketStore) InsertSpotBars(_ context.Context, bars []*domain.SpotBar) error {
	if len(bars) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAll(s.spot, bars, func(b *domain.SpotBar) (string, bool) {
		return marketKey(b.Symbol, b.TimestampMs), b.Symbol != ""
	})
}

// InsertIVPoints adds samples atomically. Fails entire batch on any duplicate.
func (s *MarketStore) InsertIVPoints(_ context.Context, points []*domain.IVPoint) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAll(s.iv, points, func(p *domain.IVPoint) (string, bool) {
		return marketKey(p.Symbol, p.TimestampMs), p.Symbol != ""
	})
}

// InsertBasisPoints adds samples atomically. Fails entire batch on any duplicate.
func (s *MarketStore) InsertBasisPoints(_ context.Context, points []*domain.BasisPoint) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertAll(s.basis, points, func(p *domain.BasisPoint) (string, bool) {
		return marketKey(p.Symbol, p.TimestampMs), p.Symbol != ""
	})
}

// GetSpotBars retrieves bars within [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetSpotBars(_ context.Context, symbol string, start, end int64) ([]*domain.SpotBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SpotBar
	for _, b := range s.spot {
		if b.Symbol == symbol && b.TimestampMs >= start && b.TimestampMs < end {
			c := *b
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TimestampMs < result[j].TimestampMs })
	return result, nil
}

// GetIVPoints retrieves samples within [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetIVPoints(_ context.Context, symbol string, start, end int64) ([]*domain.IVPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IVPoint
	for _, p := range s.iv {
		if p.Symbol == symbol && p.TimestampMs >= start && p.TimestampMs < end {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TimestampMs < result[j].TimestampMs })
	return result, nil
}

// GetBasisPoints retrieves samples within [start, end), ordered by timestamp ASC.
func (s *MarketStore) GetBasisPoints(_ context.Context, symbol string, start, end int64) ([]*domain.BasisPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BasisPoint
	for _, p := range s.basis {
		if p.Symbol == symbol && p.TimestampMs >= start && p.TimestampMs < end {
			c := *p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TimestampMs < result[j].TimestampMs })
	return result, nil
}

var _ storage.MarketStore = (*MarketStore)(nil)
