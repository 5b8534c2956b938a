// Package seeds manages each player's active seed pair: committing to a
// server seed, handing out nonces, and revealing the seed on rotation.
package seeds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MJE43/pf-slots/internal/engine"
)

var (
	// ErrNonceReuse means a (server seed, nonce) input was handed out twice.
	ErrNonceReuse = errors.New("nonce reuse")
	// ErrSeedRevealed means the pair was retired and its seed published.
	ErrSeedRevealed = errors.New("server seed already revealed")
	// ErrInvalidPlayer is returned for an empty player ID.
	ErrInvalidPlayer = errors.New("invalid player")
)

// Reservation is one spin's claim on the active pair. Pair.Nonce equals Nonce
// and no other reservation receives the same nonce under the same server seed.
type Reservation struct {
	Pair  engine.SeedPair `json:"pair"`
	Nonce uint64          `json:"nonce"`
}

// Revealed is a retired pair. NextNonce is the first nonce that was never
// handed out, so spins used nonces [0, NextNonce).
type Revealed struct {
	ServerSeed     string                `json:"server_seed"`
	ServerSeedHash string                `json:"server_seed_hash"`
	ClientSeed     string                `json:"client_seed"`
	NextNonce      uint64                `json:"next_nonce"`
	RevealedAt     time.Time             `json:"revealed_at"`
	Next           engine.PublicSeedPair `json:"next"`
}

// PairAt rebuilds the retired pair at nonce n for replaying a spin.
func (r Revealed) PairAt(n uint64) engine.SeedPair {
	return engine.SeedPair{
		ServerSeed:     r.ServerSeed,
		ServerSeedHash: r.ServerSeedHash,
		ClientSeed:     r.ClientSeed,
		Nonce:          n,
	}
}

// Store hands out nonces against committed seed pairs.
type Store interface {
	// Current returns the public view of the active pair, creating one on
	// first use.
	Current(ctx context.Context, player string) (engine.PublicSeedPair, error)
	// Reserve atomically claims the next nonce and advances the counter by
	// the store's stride.
	Reserve(ctx context.Context, player string) (Reservation, error)
	// SetClientSeed retires the active pair and starts a new one under
	// clientSeed.
	SetClientSeed(ctx context.Context, player, clientSeed string) (Revealed, error)
	// Rotate retires the active pair, keeping the client seed.
	Rotate(ctx context.Context, player string) (Revealed, error)
	Close() error
}

// Options are shared by every Store implementation.
type Options struct {
	Commitment engine.Commitment
	// Stride is the nonce step per reservation, normally the draws per spin.
	Stride uint64
}

func (o Options) withDefaults() Options {
	if o.Stride == 0 {
		o.Stride = 1
	}
	return o
}

// Normalize fills defaults. Store implementations outside this package call it.
func (o Options) Normalize() Options { return o.withDefaults() }

// CheckPlayer rejects empty player IDs.
func CheckPlayer(player string) error {
	if player == "" {
		return fmt.Errorf("seeds: %w: player is required", ErrInvalidPlayer)
	}
	return nil
}

// CheckClientSeed rejects empty or oversized client seeds.
func CheckClientSeed(seed string) error {
	if seed == "" {
		return fmt.Errorf("seeds: %w: client seed is required", engine.ErrInvalidInput)
	}
	if len(seed) > 64 {
		return fmt.Errorf("seeds: %w: client seed longer than 64 characters", engine.ErrInvalidInput)
	}
	return nil
}
