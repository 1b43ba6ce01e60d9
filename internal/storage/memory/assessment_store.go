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

// AssessmentStore is an in-memory implementation of storage.AssessmentStore.
type AssessmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AssessmentRecord // keyed by (symbol, bar_time)
}

// NewAssessmentStore creates a new in-memory assessment store.
func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{
		data: make(map[string]*domain.AssessmentRecord),
	}
}

func assessmentKey(symbol string, barTime time.Time) string {
	return fmt.Sprintf("%s|%d", symbol, barTime.UnixMilli())
}

// Insert adds a new assessment. Returns ErrDuplicateKey if (symbol, bar_time) exists.
func (s *AssessmentStore) Insert(_ context.Context, a *domain.AssessmentRecord) error {
	if a == nil || a.Symbol == "" || a.BarTime.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := assessmentKey(a.Symbol, a.BarTime)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[key] = &copy
	return nil
}

// Latest retrieves the assessment with the newest bar_time. Returns ErrNotFound if none.
func (s *AssessmentStore) Latest(_ context.Context, symbol string) (*domain.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.AssessmentRecord
	for _, a := range s.data {
		if a.Symbol != symbol {
			continue
		}
		if latest == nil || a.BarTime.After(latest.BarTime) {
			latest = a
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// GetByTimeRange retrieves assessments with bar_time within [start, end] (inclusive).
func (s *AssessmentStore) GetByTimeRange(_ context.Context, symbol string, start, end time.Time) ([]*domain.AssessmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AssessmentRecord
	for _, a := range s.data {
		if a.Symbol == symbol && !a.BarTime.Before(start) && !a.BarTime.After(end) {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BarTime.Before(result[j].BarTime)
	})

	return result, nil
}

var _ storage.AssessmentStore = (*AssessmentStore)(nil)
