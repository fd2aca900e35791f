package store

import (
	"crypto/rand"
	"encoding/hex"
)

// newToken generates a random CAS token for backends (Redis, Postgres)
// whose storage model has no natural monotonic counter or revision field.
func newToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
