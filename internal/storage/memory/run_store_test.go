package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"candle-bin-lab/internal/domain"
	"candle-bin-lab/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.RunSummary{
		RunID:        "run1",
		Symbol:       "BTCUSDT",
		CreatedAt:    t0,
		BuyThreshold: 0.5,
		Summary:      domain.Summary{TotalTrades: 3, TotalReturn: 0.12, FinalEquity: 1.12},
	}
	if err := store.Insert(ctx, run); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TotalTrades != 3 || got.TotalReturn != 0.12 {
		t.Errorf("Summary mismatch: %+v", got.Summary)
	}

	if err := store.Insert(ctx, run); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRunStore_ListBySymbol(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		err := store.Insert(ctx, &domain.RunSummary{
			RunID:     id,
			Symbol:    "BTCUSDT",
			CreatedAt: t0.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}
	if err := store.Insert(ctx, &domain.RunSummary{RunID: "x", Symbol: "ETHUSDT", CreatedAt: t0}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.ListBySymbol(ctx, "BTCUSDT", 2)
	if err != nil {
		t.Fatalf("ListBySymbol failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(got))
	}
	if got[0].RunID != "c" || got[1].RunID != "b" {
		t.Errorf("Expected newest first [c b], got [%s %s]", got[0].RunID, got[1].RunID)
	}

	all, _ := store.ListBySymbol(ctx, "BTCUSDT", 0)
	if len(all) != 3 {
		t.Errorf("Expected 3 runs without limit, got %d", len(all))
	}
}
