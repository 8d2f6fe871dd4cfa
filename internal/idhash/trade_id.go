package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade id using SHA256.
// Formula: SHA256(trade|signal_id)
// Returns hex-encoded hash (64 characters).
//
// A trade id is a pure function of its signal id, so two attempts to
// convert the same signal collide on primary key and only one trade
// row can ever exist per signal.
func ComputeTradeID(signalID string) string {
	data := fmt.Sprintf("trade|%s", signalID)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
