package engine

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for malformed cryptographic input, such as an
// empty secret.
var ErrInvalidInput = errors.New("invalid input")

// Commitment publishes and checks hash commitments to secret seeds. The zero
// value uses SHA-256.
type Commitment struct {
	hasher Hasher
}

// NewCommitment returns a commitment scheme over h. A nil hasher means SHA-256.
func NewCommitment(h Hasher) Commitment {
	if h == nil {
		h = SHA256
	}
	return Commitment{hasher: h}
}

// Commit returns the lowercase hex digest of secret.
func (c Commitment) Commit(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("engine: commit: %w: empty secret", ErrInvalidInput)
	}
	sum := c.Hasher().Sum([]byte(secret))
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the commitment for secret and compares it with hash.
// A mismatch is reported as false; only an empty secret is an error.
func (c Commitment) Verify(secret, hash string) (bool, error) {
	if secret == "" {
		return false, fmt.Errorf("engine: verify: %w: empty secret", ErrInvalidInput)
	}
	want, err := hex.DecodeString(hash)
	if err != nil || len(want) != 32 {
		return false, nil
	}
	got := c.Hasher().Sum([]byte(secret))
	return subtle.ConstantTimeCompare(got[:], want) == 1, nil
}

// Hasher returns the underlying hash function.
func (c Commitment) Hasher() Hasher {
	if c.hasher == nil {
		return SHA256
	}
	return c.hasher
}

// Commit hashes secret with SHA-256.
func Commit(secret string) (string, error) {
	return NewCommitment(SHA256).Commit(secret)
}

// VerifyCommitment checks secret against a SHA-256 commitment.
func VerifyCommitment(secret, hash string) (bool, error) {
	return NewCommitment(SHA256).Verify(secret, hash)
}
