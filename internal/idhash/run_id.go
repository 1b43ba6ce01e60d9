package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// runNamespace scopes run identifiers.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("candle-bin-lab/backtest-run"))

// ComputeRunID computes a deterministic run_id as a name-based (v5) UUID.
// Formula: UUIDv5(symbol|period_start_ms|period_end_ms|buy_threshold|sell_threshold|leverage|config_hash)
// configHash identifies the settings and statistics the scores were derived
// from (see ComputeConfigHash). Re-running the same series with the same
// parameters yields the same id.
func ComputeRunID(
	symbol string,
	periodStartMs int64,
	periodEndMs int64,
	buyThreshold float64,
	sellThreshold float64,
	leverage float64,
	configHash string,
) string {
	data := fmt.Sprintf("%s|%d|%d|%s|%s|%s|%s",
		symbol,
		periodStartMs,
		periodEndMs,
		formatFloat(buyThreshold),
		formatFloat(sellThreshold),
		formatFloat(leverage),
		configHash,
	)
	return uuid.NewSHA1(runNamespace, []byte(data)).String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ComputeConfigHash digests the parts that shape a run's scores into a short
// hex string. Parts are separated, so ("ab", "c") and ("a", "bc") differ.
func ComputeConfigHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
