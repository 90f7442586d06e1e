// Package auth checks the shared API key presented by agents and operators.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// HashKey returns a SHA-256 hash of the key.
func HashKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Verifier holds the hash of the expected key so the plain secret is not
// kept in memory after startup.
type Verifier struct {
	hash []byte
}

// NewVerifier hashes the expected key. An empty key disables checking.
func NewVerifier(key string) *Verifier {
	if strings.TrimSpace(key) == "" {
		return &Verifier{}
	}
	return &Verifier{hash: []byte(HashKey(key))}
}

// Enabled reports whether a key is configured.
func (v *Verifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify compares the presented key in constant time.
func (v *Verifier) Verify(presented string) bool {
	if !v.Enabled() {
		return true
	}
	if strings.TrimSpace(presented) == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashKey(presented)), v.hash) == 1
}
