package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// ScoredBarStore is an in-memory implementation of storage.ScoredBarStore.
type ScoredBarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ScoredBarRecord // keyed by (run_id, timestamp)
}

// NewScoredBarStore creates a new in-memory scored bar store.
func NewScoredBarStore() *ScoredBarStore {
	return &ScoredBarStore{
		data: make(map[string]*domain.ScoredBarRecord),
	}
}

// InsertBulk adds multiple scored bars. Fails entire batch on duplicate.
func (s *ScoredBarStore) InsertBulk(_ context.Context, bars []*domain.ScoredBarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(bars))

	for _, b := range bars {
		if b == nil || b.RunID == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%d", b.RunID, b.Timestamp.UnixMilli())
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, b := range bars {
		copy := *b
		s.data[fmt.Sprintf("%s|%d", b.RunID, b.Timestamp.UnixMilli())] = &copy
	}

	return nil
}

// GetByRunID retrieves the scored bars of a run, ordered by timestamp ASC.
func (s *ScoredBarStore) GetByRunID(_ context.Context, runID string) ([]*domain.ScoredBarRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ScoredBarRecord
	for _, b := range s.data {
		if b.RunID == runID {
			copy := *b
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.ScoredBarStore = (*ScoredBarStore)(nil)
