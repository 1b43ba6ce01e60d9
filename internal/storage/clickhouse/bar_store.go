package clickhouse

import (
	"context"
	"fmt"
	"time"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
// Indicator values live in a Map(String, Float64) column.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (symbol, timestamp).
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.BarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		ms     int64
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.Symbol == "" || b.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{b.Symbol, toMillis(b.Timestamp)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, b := range bars {
		exists, err := s.exists(ctx, b.Symbol, toMillis(b.Timestamp))
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			symbol, timestamp_ms, open, high, low, close, volume, features
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		features := b.Features
		if features == nil {
			features = map[string]float64{}
		}
		err = batch.Append(
			b.Symbol, toMillis(b.Timestamp),
			b.Open, b.High, b.Low, b.Close, b.Volume,
			features,
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

// GetByTimeRange retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
func (s *BarStore) GetByTimeRange(ctx context.Context, symbol string, start, end time.Time) ([]*domain.BarRecord, error) {
	query := `
		SELECT symbol, timestamp_ms, open, high, low, close, volume, features
		FROM bars
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, toMillis(start), toMillis(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Latest returns the newest stored bar timestamp. Returns ErrNotFound if none.
func (s *BarStore) Latest(ctx context.Context, symbol string) (time.Time, error) {
	query := `
		SELECT count(*), max(timestamp_ms) FROM bars
		WHERE symbol = ?
	`

	var count uint64
	var ms int64
	if err := s.conn.QueryRow(ctx, query, symbol).Scan(&count, &ms); err != nil {
		return time.Time{}, fmt.Errorf("query latest bar: %w", err)
	}
	if count == 0 {
		return time.Time{}, storage.ErrNotFound
	}
	return fromMillis(ms), nil
}

// exists checks if a bar with the given key exists.
func (s *BarStore) exists(ctx context.Context, symbol string, ms int64) (bool, error) {
	query := `
		SELECT count(*) FROM bars
		WHERE symbol = ? AND timestamp_ms = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, symbol, ms).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanBars(rows chRows) ([]*domain.BarRecord, error) {
	var bars []*domain.BarRecord

	for rows.Next() {
		var b domain.BarRecord
		var ms int64

		err := rows.Scan(
			&b.Symbol, &ms,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
			&b.Features,
		)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Timestamp = fromMillis(ms)
		bars = append(bars, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
