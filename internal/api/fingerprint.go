package api

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// Fingerprint returns a base58-encoded SHA-256 fingerprint of a
// credential, safe to include in logs where the raw value never may be.
func Fingerprint(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return base58.Encode(hash[:])
}
