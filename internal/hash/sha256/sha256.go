// Package sha256 derives content digests for aggregated documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex SHA-256 digest of content.
func Sum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ETag returns a strong HTTP entity tag for content.
func ETag(content string) string {
	return `"` + Sum(content) + `"`
}
