package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

const hasherKeyLength = 32

// Hasher derives password digests with PBKDF2-SHA256 over an application-wide
// salt. The transform is deterministic: the same plaintext always yields the
// same digest, which is what lets Login compare by value.
//
// The salt is shared across all accounts rather than generated per user, so
// identical passwords produce identical digests. That property is relied on by
// existing stored digests and is kept for compatibility; see DESIGN.md before
// changing it.
type Hasher struct {
	salt       []byte
	iterations int
}

// NewHasher validates the hashing parameters and returns a Hasher.
func NewHasher(salt string, iterations int) (*Hasher, error) {
	if salt == "" {
		return nil, errors.New("hasher: salt must not be empty")
	}
	if iterations < 1 {
		return nil, errors.New("hasher: iterations must be positive")
	}
	return &Hasher{salt: []byte(salt), iterations: iterations}, nil
}

// Hash derives the hex-encoded digest for plaintext. A failure here is an
// infrastructure error and is never treated as a login failure.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if h == nil {
		return "", errors.New("hasher: not configured")
	}
	key := pbkdf2.Key([]byte(plaintext), h.salt, h.iterations, hasherKeyLength, sha256.New)
	if len(key) != hasherKeyLength {
		return "", errors.New("hasher: key derivation failed")
	}
	return hex.EncodeToString(key), nil
}
