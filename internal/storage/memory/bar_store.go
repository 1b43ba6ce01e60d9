package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BarRecord // keyed by (symbol, timestamp)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.BarRecord),
	}
}

// barKey generates a unique key for a bar.
func barKey(symbol string, ts time.Time) string {
	return fmt.Sprintf("%s|%d", symbol, ts.UnixMilli())
}

// copyBar copies the record including its feature map.
func copyBar(b *domain.BarRecord) *domain.BarRecord {
	copy := *b
	copy.Features = make(map[string]float64, len(b.Features))
	for k, v := range b.Features {
		copy.Features[k] = v
	}
	return &copy
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.BarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))

	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Symbol, b.Timestamp)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		s.data[barKey(b.Symbol, b.Timestamp)] = copyBar(b)
	}

	return nil
}

// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
func (s *BarStore) GetByTimeRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.BarRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BarRecord
	for _, b := range s.data {
		if b.Symbol == symbol && !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			result = append(result, copyBar(b))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// Latest returns the newest stored bar timestamp. Returns ErrNotFound if none.
func (s *BarStore) Latest(_ context.Context, symbol string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, b := range s.data {
		if b.Symbol == symbol && b.Timestamp.After(latest) {
			latest = b.Timestamp
		}
	}
	if latest.IsZero() {
		return time.Time{}, storage.ErrNotFound
	}
	return latest, nil
}

var _ storage.BarStore = (*BarStore)(nil)
