package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// cullBatchSize caps how many rows one culling pass deletes per statement.
const cullBatchSize = 256

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// generateAPIKey generates a new API key
func generateAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return fmt.Sprintf("ec_key_%s", hex.EncodeToString(b))
}

// hashAPIKey hashes an API key for storage
func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// oldestOverLimit picks, from rows ordered oldest first, the ids to delete so
// that total drops to limit or below.
func oldestOverLimit(ids []string, sizes []int64, total, limit int64) []string {
	var victims []string
	for i := range ids {
		if total <= limit {
			break
		}
		victims = append(victims, ids[i])
		total -= sizes[i]
	}
	return victims
}
