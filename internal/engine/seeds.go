package engine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	serverSeedBytes = 32
	clientSeedBytes = 16
)

// SeedPair is the complete randomness input for one spin. ServerSeed is
// secret until the pair is retired.
type SeedPair struct {
	ServerSeed     string `json:"server_seed,omitempty"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          uint64 `json:"nonce"`
}

// PublicSeedPair is what a player may see before the server seed is revealed.
type PublicSeedPair struct {
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          uint64 `json:"nonce"`
}

// Public strips the server seed.
func (p SeedPair) Public() PublicSeedPair {
	return PublicSeedPair{
		ServerSeedHash: p.ServerSeedHash,
		ClientSeed:     p.ClientSeed,
		Nonce:          p.Nonce,
	}
}

// WithNonce returns a copy of the pair at nonce n.
func (p SeedPair) WithNonce(n uint64) SeedPair {
	p.Nonce = n
	return p
}

// Validate checks that both seeds are present and that the server seed
// matches its published commitment under c.
func (p SeedPair) Validate(c Commitment) error {
	if p.ServerSeed == "" {
		return fmt.Errorf("engine: %w: server seed is required", ErrInvalidInput)
	}
	if p.ClientSeed == "" {
		return fmt.Errorf("engine: %w: client seed is required", ErrInvalidInput)
	}
	ok, err := c.Verify(p.ServerSeed, p.ServerSeedHash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("engine: %w: server seed does not match its hash", ErrInvalidInput)
	}
	return nil
}

// NewSeedPair generates a fresh server seed, its commitment under c and a
// client seed, starting at nonce 0. An explicit clientSeed is kept as is.
func NewSeedPair(c Commitment, clientSeed string) (SeedPair, error) {
	server, err := NewServerSeed()
	if err != nil {
		return SeedPair{}, err
	}
	if clientSeed == "" {
		if clientSeed, err = NewClientSeed(); err != nil {
			return SeedPair{}, err
		}
	}
	hash, err := c.Commit(server)
	if err != nil {
		return SeedPair{}, err
	}
	return SeedPair{ServerSeed: server, ServerSeedHash: hash, ClientSeed: clientSeed}, nil
}

// NewServerSeed returns 32 crypto-random bytes, hex encoded.
func NewServerSeed() (string, error) {
	return randomHex(serverSeedBytes)
}

// NewClientSeed returns 16 crypto-random bytes, hex encoded.
func NewClientSeed() (string, error) {
	return randomHex(clientSeedBytes)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("engine: read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
