package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id for a validator trade.
// Formula: SHA256(run_id|direction|entry_time|signal_index)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	runID string,
	direction string,
	entryTimeMs int64,
	signalIndex int,
) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		runID,
		direction,
		entryTimeMs,
		signalIndex,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTrialID computes a deterministic trial_id.
// Formula: SHA256(formula_id|params_hash|origin)
func ComputeTrialID(formulaID, paramsHash, origin string) string {
	data := fmt.Sprintf("%s|%s|%s", formulaID, paramsHash, origin)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
