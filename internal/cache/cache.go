// Package cache keeps the latest assessment and analysis report per symbol
// so the API can answer without touching storage.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"candle-bin-lab/internal/analysis"
	"candle-bin-lab/internal/domain"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Store is a JSON value store with expiry.
type Store interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
}

// SignalCache stores typed signal artefacts on top of a Store.
type SignalCache struct {
	store Store
	ttl   time.Duration
}

// NewSignalCache wraps store. A non-positive ttl keeps entries until overwritten.
func NewSignalCache(store Store, ttl time.Duration) *SignalCache {
	if ttl < 0 {
		ttl = 0
	}
	return &SignalCache{store: store, ttl: ttl}
}

func assessmentKey(symbol string) string {
	return "assessment:latest:" + symbol
}

func reportKey(symbol string) string {
	return "report:latest:" + symbol
}

// SetAssessment replaces the latest assessment of its symbol.
func (c *SignalCache) SetAssessment(ctx context.Context, a domain.Assessment) error {
	if err := c.store.Set(ctx, assessmentKey(a.Symbol), a, c.ttl); err != nil {
		return fmt.Errorf("cache assessment: %w", err)
	}
	return nil
}

// LatestAssessment returns the cached assessment or ErrCacheMiss.
func (c *SignalCache) LatestAssessment(ctx context.Context, symbol string) (*domain.Assessment, error) {
	var a domain.Assessment
	if err := c.store.Get(ctx, assessmentKey(symbol), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SetReport replaces the latest analysis report of its symbol.
func (c *SignalCache) SetReport(ctx context.Context, rep *analysis.Report) error {
	if err := c.store.Set(ctx, reportKey(rep.Symbol), rep, c.ttl); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

// Report returns the cached report or ErrCacheMiss.
func (c *SignalCache) Report(ctx context.Context, symbol string) (*analysis.Report, error) {
	var rep analysis.Report
	if err := c.store.Get(ctx, reportKey(symbol), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Invalidate drops every cached artefact of symbol.
func (c *SignalCache) Invalidate(ctx context.Context, symbol string) error {
	return c.store.Delete(ctx, assessmentKey(symbol), reportKey(symbol))
}
