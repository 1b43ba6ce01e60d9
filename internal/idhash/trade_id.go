package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|symbol|entry_time_ms|exit_time_ms)
// Returns the base58-encoded hash (43 or 44 characters).
func ComputeTradeID(
	runID string,
	symbol string,
	entryTimeMs int64,
	exitTimeMs int64,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		runID,
		symbol,
		entryTimeMs,
		exitTimeMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
