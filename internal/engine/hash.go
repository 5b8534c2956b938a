package engine

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Hasher is the fixed-output one-way function behind seed commitments and draws.
type Hasher interface {
	Name() string
	Sum(data []byte) [32]byte
}

// Supported hasher names.
const (
	HashSHA256  = "sha256"
	HashSHA3    = "sha3-256"
	HashBlake2b = "blake2b-256"
)

type sha256Hasher struct{}

func (sha256Hasher) Name() string             { return HashSHA256 }
func (sha256Hasher) Sum(data []byte) [32]byte { return sha256.Sum256(data) }

type sha3Hasher struct{}

func (sha3Hasher) Name() string             { return HashSHA3 }
func (sha3Hasher) Sum(data []byte) [32]byte { return sha3.Sum256(data) }

type blake2bHasher struct{}

func (blake2bHasher) Name() string             { return HashBlake2b }
func (blake2bHasher) Sum(data []byte) [32]byte { return blake2b.Sum256(data) }

// SHA256 is the default hasher. Published commitments and the public
// verification endpoint are defined over it.
var SHA256 Hasher = sha256Hasher{}

// HasherByName resolves a configured hash algorithm.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", HashSHA256:
		return sha256Hasher{}, nil
	case HashSHA3, "sha3":
		return sha3Hasher{}, nil
	case HashBlake2b, "blake2b":
		return blake2bHasher{}, nil
	default:
		return nil, fmt.Errorf("engine: unsupported hash algorithm %q", name)
	}
}
