package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const selectRunColumns = `
	SELECT
		run_id, symbol, created_at, period_start, period_end,
		buy_threshold, sell_threshold, leverage,
		total_trades, winning_trades, losing_trades, win_rate,
		total_return, avg_return, max_return, min_return,
		sharpe_ratio, max_drawdown, final_equity
	FROM backtest_runs
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunSummary) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO backtest_runs (
			run_id, symbol, created_at, period_start, period_end,
			buy_threshold, sell_threshold, leverage,
			total_trades, winning_trades, losing_trades, win_rate,
			total_return, avg_return, max_return, min_return,
			sharpe_ratio, max_drawdown, final_equity
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Symbol, r.CreatedAt, r.PeriodStart, r.PeriodEnd,
		r.BuyThreshold, r.SellThreshold, r.Leverage,
		r.TotalTrades, r.WinningTrades, r.LosingTrades, r.WinRate,
		r.TotalReturn, r.AvgReturn, r.MaxReturn, r.MinReturn,
		r.SharpeRatio, r.MaxDrawdown, r.FinalEquity,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	row := s.pool.QueryRow(ctx, selectRunColumns+` WHERE run_id = $1`, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// ListBySymbol retrieves the runs of a symbol, newest first.
// A non-positive limit returns every run.
func (s *RunStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.RunSummary, error) {
	query := selectRunColumns + `
		WHERE symbol = $1
		ORDER BY created_at DESC, run_id ASC
	`
	args := []any{symbol}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*domain.RunSummary, error) {
	var r domain.RunSummary

	err := row.Scan(
		&r.RunID, &r.Symbol, &r.CreatedAt, &r.PeriodStart, &r.PeriodEnd,
		&r.BuyThreshold, &r.SellThreshold, &r.Leverage,
		&r.TotalTrades, &r.WinningTrades, &r.LosingTrades, &r.WinRate,
		&r.TotalReturn, &r.AvgReturn, &r.MaxReturn, &r.MinReturn,
		&r.SharpeRatio, &r.MaxDrawdown, &r.FinalEquity,
	)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = r.CreatedAt.UTC()
	r.PeriodStart = r.PeriodStart.UTC()
	r.PeriodEnd = r.PeriodEnd.UTC()
	return &r, nil
}
