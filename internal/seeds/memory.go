package seeds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MJE43/pf-slots/internal/engine"
)

// MemoryStore keeps pairs in process memory.
type MemoryStore struct {
	opts Options

	mu       sync.Mutex
	active   map[string]engine.SeedPair // Nonce is the next unreserved nonce
	revealed map[string]bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:     opts.withDefaults(),
		active:   make(map[string]engine.SeedPair),
		revealed: make(map[string]bool),
	}
}

func (m *MemoryStore) pairLocked(player string) (engine.SeedPair, error) {
	if p, ok := m.active[player]; ok {
		return p, nil
	}
	p, err := engine.NewSeedPair(m.opts.Commitment, "")
	if err != nil {
		return engine.SeedPair{}, err
	}
	m.active[player] = p
	return p, nil
}

func (m *MemoryStore) Current(ctx context.Context, player string) (engine.PublicSeedPair, error) {
	if err := CheckPlayer(player); err != nil {
		return engine.PublicSeedPair{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.pairLocked(player)
	if err != nil {
		return engine.PublicSeedPair{}, err
	}
	return p.Public(), nil
}

func (m *MemoryStore) Reserve(ctx context.Context, player string) (Reservation, error) {
	if err := CheckPlayer(player); err != nil {
		return Reservation{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.pairLocked(player)
	if err != nil {
		return Reservation{}, err
	}
	if m.revealed[p.ServerSeedHash] {
		return Reservation{}, fmt.Errorf("seeds: %w", ErrSeedRevealed)
	}
	n := p.Nonce
	if n+m.opts.Stride < n {
		return Reservation{}, fmt.Errorf("seeds: %w: nonce space exhausted, rotate the seed", ErrNonceReuse)
	}
	next := p
	next.Nonce = n + m.opts.Stride
	m.active[player] = next
	return Reservation{Pair: p.WithNonce(n), Nonce: n}, nil
}

func (m *MemoryStore) SetClientSeed(ctx context.Context, player, clientSeed string) (Revealed, error) {
	if err := CheckClientSeed(clientSeed); err != nil {
		return Revealed{}, err
	}
	return m.rotate(player, clientSeed)
}

func (m *MemoryStore) Rotate(ctx context.Context, player string) (Revealed, error) {
	return m.rotate(player, "")
}

func (m *MemoryStore) rotate(player, clientSeed string) (Revealed, error) {
	if err := CheckPlayer(player); err != nil {
		return Revealed{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, err := m.pairLocked(player)
	if err != nil {
		return Revealed{}, err
	}
	if clientSeed == "" {
		clientSeed = old.ClientSeed
	}
	next, err := engine.NewSeedPair(m.opts.Commitment, clientSeed)
	if err != nil {
		return Revealed{}, err
	}
	m.revealed[old.ServerSeedHash] = true
	m.active[player] = next
	return Revealed{
		ServerSeed:     old.ServerSeed,
		ServerSeedHash: old.ServerSeedHash,
		ClientSeed:     old.ClientSeed,
		NextNonce:      old.Nonce,
		RevealedAt:     time.Now().UTC(),
		Next:           next.Public(),
	}, nil
}

func (m *MemoryStore) Close() error { return nil }
