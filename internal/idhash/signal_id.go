package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeSignalID computes a deterministic signal id using SHA256.
// Formula: SHA256(symbol|unix_ms|direction)
// Returns hex-encoded hash (64 characters).
//
// Determinism makes re-emission of the same crossing idempotent at the
// storage layer: a duplicate insert is rejected by primary key.
func ComputeSignalID(symbol string, ts time.Time, direction string) string {
	data := fmt.Sprintf("%s|%d|%s", symbol, ts.UnixMilli(), direction)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
