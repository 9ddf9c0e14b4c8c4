package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeOperationID computes a deterministic operation_id using SHA256.
// Formula: SHA256(signature|index)
// Returns hex-encoded hash (64 characters).
func ComputeOperationID(signature string, index int) string {
	data := fmt.Sprintf("%s|%d", signature, index)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
