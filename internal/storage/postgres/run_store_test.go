package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/storage"
)

func TestRunStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	run := createTestRun(t, ctx, pool, "run-1", baseTime)
	store := NewRunStore(pool)

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Symbol, got.Symbol)
	assert.True(t, run.PeriodEnd.Equal(got.PeriodEnd))
	assert.Equal(t, run.TotalTrades, got.TotalTrades)
	assert.InDelta(t, run.SharpeRatio, got.SharpeRatio, 1e-12)
	assert.InDelta(t, run.FinalEquity, got.FinalEquity, 1e-12)

	assert.ErrorIs(t, store.Insert(ctx, run), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunStore_ListBySymbol(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	createTestRun(t, ctx, pool, "run-a", baseTime)
	createTestRun(t, ctx, pool, "run-b", baseTime.Add(time.Hour))
	createTestRun(t, ctx, pool, "run-c", baseTime.Add(2*time.Hour))
	store := NewRunStore(pool)

	got, err := store.ListBySymbol(ctx, "BTCUSDT", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-c", got[0].RunID)
	assert.Equal(t, "run-b", got[1].RunID)

	all, err := store.ListBySymbol(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := store.ListBySymbol(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
