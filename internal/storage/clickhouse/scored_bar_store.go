package clickhouse

import (
	"context"
	"fmt"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// ScoredBarStore implements storage.ScoredBarStore using ClickHouse.
type ScoredBarStore struct {
	conn *Conn
}

// NewScoredBarStore creates a new ScoredBarStore.
func NewScoredBarStore(conn *Conn) *ScoredBarStore {
	return &ScoredBarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScoredBarStore = (*ScoredBarStore)(nil)

// InsertBulk adds multiple scored bars. Fails entire batch on duplicate (run_id, timestamp).
// A run is written in one batch, so an existing run_id rejects the batch.
func (s *ScoredBarStore) InsertBulk(ctx context.Context, bars []*domain.ScoredBarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		runID string
		ms    int64
	}
	seen := make(map[key]struct{}, len(bars))
	runs := make(map[string]struct{})
	for _, b := range bars {
		if b == nil || b.RunID == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{b.RunID, toMillis(b.Timestamp)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		runs[b.RunID] = struct{}{}
	}

	for runID := range runs {
		var count uint64
		err := s.conn.QueryRow(ctx, `SELECT count(*) FROM scored_bars WHERE run_id = ?`, runID).Scan(&count)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if count > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO scored_bars (
			run_id, symbol, timestamp_ms, open, high, low, close,
			buy_score, sell_score, signal_score, buy_weight, sell_weight
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.RunID, b.Symbol, toMillis(b.Timestamp),
			b.Open, b.High, b.Low, b.Close,
			b.BuyScore, b.SellScore, b.SignalScore, b.BuyWeight, b.SellWeight,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves the scored bars of a run, ordered by timestamp ASC.
func (s *ScoredBarStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ScoredBarRecord, error) {
	query := `
		SELECT
			run_id, symbol, timestamp_ms, open, high, low, close,
			buy_score, sell_score, signal_score, buy_weight, sell_weight
		FROM scored_bars
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var out []*domain.ScoredBarRecord
	for rows.Next() {
		var b domain.ScoredBarRecord
		var ms int64

		err := rows.Scan(
			&b.RunID, &b.Symbol, &ms,
			&b.Open, &b.High, &b.Low, &b.Close,
			&b.BuyScore, &b.SellScore, &b.SignalScore, &b.BuyWeight, &b.SellWeight,
		)
		if err != nil {
			return nil, fmt.Errorf("scan scored bar row: %w", err)
		}

		b.Timestamp = fromMillis(ms)
		out = append(out, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scored bar rows: %w", err)
	}

	return out, nil
}
