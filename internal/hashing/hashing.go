// Package hashing computes the content fingerprint stored with text
// submissions. The digest is audit metadata only; nothing checks it for
// duplicates before creating a new request.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
