package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the hex encoded SHA-256 digest of data
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashToken derives the value persisted in place of an evidence token
func HashToken(token string) string {
	return SHA256Hex([]byte(token))
}
