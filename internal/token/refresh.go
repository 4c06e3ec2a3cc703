package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// refreshBytes is the entropy of a refresh token (384 bits).
const refreshBytes = 48

// NewRefreshRaw returns a hex-encoded cryptographically random token.
func NewRefreshRaw() (string, error) {
	buf := make([]byte, refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashRefresh returns the SHA-256 hex digest stored in place of raw.
func HashRefresh(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
