package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 of an issued auth token. Only this hash
// is persisted so a leaked store does not leak usable tokens.
func HashToken(token AuthToken) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MatchesHash reports whether token hashes to storedHash, comparing in
// constant time. An empty storedHash never matches.
func MatchesHash(token AuthToken, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1
}
