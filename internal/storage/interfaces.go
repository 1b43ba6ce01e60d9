package storage

import (
	"context"
	"time"

	"candle-bin-lab/internal/domain"
)

// TradeStore provides access to trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByRunID retrieves all trades of a run, ordered by entry time ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Trade, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunSummary) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// ListBySymbol retrieves the runs of a symbol, newest first, at most limit rows.
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.RunSummary, error)
}

// AssessmentStore provides access to assessments storage.
type AssessmentStore interface {
	// Insert adds a new assessment. Returns ErrDuplicateKey if (symbol, bar_time) exists.
	Insert(ctx context.Context, a *domain.AssessmentRecord) error

	// Latest retrieves the assessment with the newest bar_time. Returns ErrNotFound if none.
	Latest(ctx context.Context, symbol string) (*domain.AssessmentRecord, error)

	// GetByTimeRange retrieves assessments with bar_time within [start, end] (inclusive), ordered ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.AssessmentRecord, error)
}

// BarStore provides access to bars storage.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.BarRecord) error

	// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.BarRecord, error)

	// Latest returns the newest stored bar timestamp. Returns ErrNotFound if none.
	Latest(ctx context.Context, symbol string) (time.Time, error)
}

// ScoredBarStore provides access to scored_bars storage.
type ScoredBarStore interface {
	// InsertBulk adds multiple scored bars. Fails entire batch on duplicate (run_id, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.ScoredBarRecord) error

	// GetByRunID retrieves the scored bars of a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ScoredBarRecord, error)
}
