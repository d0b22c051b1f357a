// Package checksum fingerprints document contents. The API exposes the value
// as an ETag and the watcher uses it to drop events that did not change a
// document.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// OfString is Sum for document text.
func OfString(s string) string {
	return Sum([]byte(s))
}
