package util

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// DefaultAnonymizeSalt is used when ANONYMIZE_SALT is not configured.
// Persisted records must never carry a raw transport user ID.
const DefaultAnonymizeSalt = "mindmirror_anonymize_salt"

// AnonymizeUserID returns a stable, irreversible identifier for a transport
// user ID. The same input always yields the same hash, so records for one
// user remain linkable without storing the original ID.
func AnonymizeUserID(userID string) string {
	salt := os.Getenv("ANONYMIZE_SALT")
	if salt == "" {
		salt = DefaultAnonymizeSalt
	}
	sum := sha256.Sum256([]byte(userID + salt))
	return "user_" + hex.EncodeToString(sum[:])[:16]
}
