package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|instrument|side|entry_time_ms)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID, instrument, side string, entryTimeMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", runID, instrument, side, entryTimeMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeOrderID computes a deterministic order_id for one fill leg.
// Formula: SHA256(trade_id|leg) with leg "entry" or "exit".
func ComputeOrderID(tradeID, leg string) string {
	data := fmt.Sprintf("%s|%s", tradeID, leg)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
