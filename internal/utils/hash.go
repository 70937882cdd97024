package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashString computes an HMAC-SHA256 digest of the given string using the
// provided key and returns it hex-encoded. Used for password hashing and
// comparison.
func HashString(s string, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(s))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHash reports whether the given string hashes to the expected digest
// under the provided key. Comparison is constant-time.
func VerifyHash(s string, key string, expected string) bool {
	computed := HashString(s, key)
	return hmac.Equal([]byte(computed), []byte(expected))
}
