package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

func createTestTrade(runID, tradeID string, entry time.Time) *domain.Trade {
	return &domain.Trade{
		TradeID:       tradeID,
		RunID:         runID,
		Symbol:        "BTCUSDT",
		EntryTime:     entry,
		ExitTime:      entry.Add(8 * time.Hour),
		PositionType:  domain.PositionLong,
		EntryPrice:    100,
		ExitPrice:     104,
		PnL:           0.04,
		PnLLeveraged:  0.08,
		Leverage:      2,
		DurationHours: 8,
		ExitReason:    domain.ExitReasonSignal,
	}
}

func TestTradeStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestRun(t, ctx, pool, "run-1", baseTime)
	store := NewTradeStore(pool)

	trade := createTestTrade("run-1", "trade-001", baseTime)
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)

	assert.Equal(t, trade.RunID, got.RunID)
	assert.Equal(t, trade.PositionType, got.PositionType)
	assert.True(t, trade.EntryTime.Equal(got.EntryTime))
	assert.True(t, trade.ExitTime.Equal(got.ExitTime))
	assert.InDelta(t, trade.PnL, got.PnL, 1e-12)
	assert.InDelta(t, trade.PnLLeveraged, got.PnLLeveraged, 1e-12)
	assert.Equal(t, trade.ExitReason, got.ExitReason)
}

func TestTradeStore_DuplicateAndNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestRun(t, ctx, pool, "run-1", baseTime)
	store := NewTradeStore(pool)

	trade := createTestTrade("run-1", "trade-001", baseTime)
	require.NoError(t, store.Insert(ctx, trade))
	assert.ErrorIs(t, store.Insert(ctx, trade), storage.ErrDuplicateKey)

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_InsertBulk(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestRun(t, ctx, pool, "run-1", baseTime)
	store := NewTradeStore(pool)

	trades := []*domain.Trade{
		createTestTrade("run-1", "t-2", baseTime.Add(24*time.Hour)),
		createTestTrade("run-1", "t-1", baseTime),
	}
	require.NoError(t, store.InsertBulk(ctx, trades))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t-1", got[0].TradeID)
	assert.Equal(t, "t-2", got[1].TradeID)
}

func TestTradeStore_InsertBulk_RollsBackOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestRun(t, ctx, pool, "run-1", baseTime)
	store := NewTradeStore(pool)

	require.NoError(t, store.Insert(ctx, createTestTrade("run-1", "t-2", baseTime)))

	err := store.InsertBulk(ctx, []*domain.Trade{
		createTestTrade("run-1", "t-1", baseTime.Add(time.Hour)),
		createTestTrade("run-1", "t-2", baseTime.Add(2*time.Hour)),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "t-1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "bulk insert must be atomic")
}
