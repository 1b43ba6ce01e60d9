package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// AssessmentStore implements storage.AssessmentStore using PostgreSQL.
type AssessmentStore struct {
	pool *Pool
}

// NewAssessmentStore creates a new AssessmentStore.
func NewAssessmentStore(pool *Pool) *AssessmentStore {
	return &AssessmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AssessmentStore = (*AssessmentStore)(nil)

const selectAssessmentColumns = `
	SELECT
		symbol, bar_time, assessment_time, utc_time,
		open, high, low, close, volume,
		buy_score, sell_score, signal_score,
		price_change, price_range, body_size, upper_shadow, lower_shadow,
		recommendation, order_intent, ma30, ma90, created_at
	FROM assessments
`

// Insert adds a new assessment. Returns ErrDuplicateKey if (symbol, bar_time) exists.
func (s *AssessmentStore) Insert(ctx context.Context, a *domain.AssessmentRecord) error {
	if a == nil || a.Symbol == "" || a.BarTime.IsZero() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO assessments (
			symbol, bar_time, assessment_time, utc_time,
			open, high, low, close, volume,
			buy_score, sell_score, signal_score,
			price_change, price_range, body_size, upper_shadow, lower_shadow,
			recommendation, order_intent, ma30, ma90, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22
		)
	`

	_, err := s.pool.Exec(ctx, query,
		a.Symbol, a.BarTime, a.AssessmentTime, a.UTCTime,
		a.Candle.Open, a.Candle.High, a.Candle.Low, a.Candle.Close, a.Volume,
		a.Signals.BuyScore, a.Signals.SellScore, a.Signals.SignalScore,
		a.Analysis.PriceChange, a.Analysis.PriceRange, a.Analysis.BodySize, a.Analysis.UpperShadow, a.Analysis.LowerShadow,
		string(a.Recommendation), string(a.Intent), a.MA30, a.MA90, a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// Latest retrieves the assessment with the newest bar_time. Returns ErrNotFound if none.
func (s *AssessmentStore) Latest(ctx context.Context, symbol string) (*domain.AssessmentRecord, error) {
	row := s.pool.QueryRow(ctx, selectAssessmentColumns+`
		WHERE symbol = $1
		ORDER BY bar_time DESC
		LIMIT 1
	`, symbol)
	a, err := scanAssessment(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest assessment: %w", err)
	}
	return a, nil
}

// GetByTimeRange retrieves assessments with bar_time within [start, end] (inclusive), ordered ASC.
func (s *AssessmentStore) GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.AssessmentRecord, error) {
	rows, err := s.pool.Query(ctx, selectAssessmentColumns+`
		WHERE symbol = $1 AND bar_time >= $2 AND bar_time <= $3
		ORDER BY bar_time ASC
	`, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("get assessments by time range: %w", err)
	}
	defer rows.Close()

	var out []*domain.AssessmentRecord
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment rows: %w", err)
	}

	return out, nil
}

func scanAssessment(row pgx.Row) (*domain.AssessmentRecord, error) {
	var a domain.AssessmentRecord
	var rec, intent string

	err := row.Scan(
		&a.Symbol, &a.BarTime, &a.AssessmentTime, &a.UTCTime,
		&a.Candle.Open, &a.Candle.High, &a.Candle.Low, &a.Candle.Close, &a.Volume,
		&a.Signals.BuyScore, &a.Signals.SellScore, &a.Signals.SignalScore,
		&a.Analysis.PriceChange, &a.Analysis.PriceRange, &a.Analysis.BodySize, &a.Analysis.UpperShadow, &a.Analysis.LowerShadow,
		&rec, &intent, &a.MA30, &a.MA90, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Recommendation = domain.Recommendation(rec)
	a.Intent = domain.OrderIntent(intent)
	a.BarTime = a.BarTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
