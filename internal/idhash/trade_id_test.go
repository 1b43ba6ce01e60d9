package idhash

import (
	"testing"

	"github.com/mr-tron/base58"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name        string
		runID       string
		symbol      string
		entryTimeMs int64
		exitTimeMs  int64
	}{
		{
			name:        "basic trade",
			runID:       "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			symbol:      "BTCUSDT",
			entryTimeMs: 1704067200000,
			exitTimeMs:  1704110400000,
		},
		{
			name:        "forced liquidation",
			runID:       "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
			symbol:      "ETHUSDT",
			entryTimeMs: 1704067200000,
			exitTimeMs:  1704081600000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.runID, tt.symbol, tt.entryTimeMs, tt.exitTimeMs)

			raw, err := base58.Decode(got)
			if err != nil {
				t.Fatalf("ComputeTradeID() is not base58: %v", err)
			}
			if len(raw) != 32 {
				t.Errorf("decoded length = %d, want 32", len(raw))
			}

			got2 := ComputeTradeID(tt.runID, tt.symbol, tt.entryTimeMs, tt.exitTimeMs)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("run", "BTCUSDT", 1000, 2000)

	if base == ComputeTradeID("other_run", "BTCUSDT", 1000, 2000) {
		t.Error("Different run should produce different hash")
	}
	if base == ComputeTradeID("run", "ETHUSDT", 1000, 2000) {
		t.Error("Different symbol should produce different hash")
	}
	if base == ComputeTradeID("run", "BTCUSDT", 1500, 2000) {
		t.Error("Different entry time should produce different hash")
	}
	if base == ComputeTradeID("run", "BTCUSDT", 1000, 2500) {
		t.Error("Different exit time should produce different hash")
	}
}
