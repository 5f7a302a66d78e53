package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey returns a filesystem-safe identifier for a user ID.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first n hex characters of the sha256 of s.
func ShortHash(s string, n int) string {
	full := HashUserKey(s)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}
