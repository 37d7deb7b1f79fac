package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-token-lab/internal/domain"
)

// ComputeCleanupEventID computes a deterministic correlation ID for a
// CleanupEvent using SHA256, for log correlation across the evaluate and
// execute phases of a cleanup transaction.
// Formula: SHA256(mint|reason|timestamp_unix_nano)
func ComputeCleanupEventID(mint string, reason domain.CleanupReason, timestampUnixNano int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, string(reason), timestampUnixNano)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
