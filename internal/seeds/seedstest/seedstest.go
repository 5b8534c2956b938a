// Package seedstest checks that a seeds.Store behaves as the spin service
// expects. Each implementation's tests call Run with a fresh store factory.
package seedstest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/seeds"
)

// Stride is the nonce step the factory must configure.
const Stride = 9

// Run exercises store semantics. newStore must return an empty store using
// Stride and SHA-256 commitments.
func Run(t *testing.T, newStore func(t *testing.T) seeds.Store) {
	t.Run("CurrentIsStable", func(t *testing.T) { testCurrentIsStable(t, newStore(t)) })
	t.Run("ReserveAdvancesByStride", func(t *testing.T) { testReserveAdvances(t, newStore(t)) })
	t.Run("ConcurrentReservesAreUnique", func(t *testing.T) { testConcurrentReserves(t, newStore(t)) })
	t.Run("RotateReveals", func(t *testing.T) { testRotate(t, newStore(t)) })
	t.Run("SetClientSeed", func(t *testing.T) { testSetClientSeed(t, newStore(t)) })
	t.Run("PlayersAreIsolated", func(t *testing.T) { testIsolation(t, newStore(t)) })
	t.Run("RejectsBadInput", func(t *testing.T) { testBadInput(t, newStore(t)) })
}

func player(t *testing.T) string {
	return fmt.Sprintf("player-%s", t.Name())
}

func testCurrentIsStable(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	p := player(t)
	a, err := s.Current(ctx, p)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	b, err := s.Current(ctx, p)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if a != b {
		t.Errorf("Current changed between calls: %+v vs %+v", a, b)
	}
	if len(a.ServerSeedHash) != 64 || a.ClientSeed == "" || a.Nonce != 0 {
		t.Errorf("unexpected initial pair %+v", a)
	}
}

func testReserveAdvances(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	p := player(t)
	pub, err := s.Current(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < 3; i++ {
		r, err := s.Reserve(ctx, p)
		if err != nil {
			t.Fatalf("Reserve %d: %v", i, err)
		}
		if r.Nonce != i*Stride || r.Pair.Nonce != r.Nonce {
			t.Errorf("reservation %d nonce = %d/%d, want %d", i, r.Nonce, r.Pair.Nonce, i*Stride)
		}
		if r.Pair.ServerSeedHash != pub.ServerSeedHash || r.Pair.ClientSeed != pub.ClientSeed {
			t.Errorf("reservation %d used a different pair", i)
		}
		ok, err := engine.VerifyCommitment(r.Pair.ServerSeed, r.Pair.ServerSeedHash)
		if err != nil || !ok {
			t.Errorf("reserved server seed does not match its hash: %v", err)
		}
	}
	cur, _ := s.Current(ctx, p)
	if cur.Nonce != 3*Stride {
		t.Errorf("Current nonce = %d, want %d", cur.Nonce, 3*Stride)
	}
}

func testConcurrentReserves(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	p := player(t)
	if _, err := s.Current(ctx, p); err != nil {
		t.Fatal(err)
	}

	const n = 40
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint64]bool)
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.Reserve(ctx, p)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if seen[r.Nonce] {
				errs = append(errs, fmt.Errorf("nonce %d handed out twice", r.Nonce))
			}
			seen[r.Nonce] = true
		}()
	}
	wg.Wait()
	for _, err := range errs {
		t.Error(err)
	}
	if len(seen) != n {
		t.Errorf("got %d distinct nonces, want %d", len(seen), n)
	}
}

func testRotate(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	p := player(t)
	before, err := s.Current(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Reserve(ctx, p)
	if err != nil {
		t.Fatal(err)
	}

	rev, err := s.Rotate(ctx, p)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rev.ServerSeedHash != before.ServerSeedHash || rev.ServerSeed != r.Pair.ServerSeed {
		t.Errorf("revealed pair does not match the committed one")
	}
	if rev.NextNonce != Stride {
		t.Errorf("NextNonce = %d, want %d", rev.NextNonce, Stride)
	}
	if rev.Next.ServerSeedHash == before.ServerSeedHash {
		t.Error("rotation kept the old server seed")
	}
	if rev.Next.ClientSeed != before.ClientSeed || rev.Next.Nonce != 0 {
		t.Errorf("next pair = %+v, want same client seed at nonce 0", rev.Next)
	}

	after, err := s.Reserve(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	if after.Pair.ServerSeedHash != rev.Next.ServerSeedHash || after.Nonce != 0 {
		t.Errorf("reservation after rotation = %+v", after)
	}
}

func testSetClientSeed(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	p := player(t)
	before, err := s.Current(ctx, p)
	if err != nil {
		t.Fatal(err)
	}
	rev, err := s.SetClientSeed(ctx, p, "lucky")
	if err != nil {
		t.Fatalf("SetClientSeed: %v", err)
	}
	if rev.ServerSeedHash != before.ServerSeedHash {
		t.Error("old pair not revealed")
	}
	cur, _ := s.Current(ctx, p)
	if cur.ClientSeed != "lucky" || cur.ServerSeedHash == before.ServerSeedHash {
		t.Errorf("current pair = %+v", cur)
	}
}

func testIsolation(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	a, b := player(t)+"-a", player(t)+"-b"
	if _, err := s.Reserve(ctx, a); err != nil {
		t.Fatal(err)
	}
	rb, err := s.Reserve(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if rb.Nonce != 0 {
		t.Errorf("player b starts at nonce %d, want 0", rb.Nonce)
	}
	pa, _ := s.Current(ctx, a)
	if pa.ServerSeedHash == rb.Pair.ServerSeedHash {
		t.Error("players share a server seed")
	}
}

func testBadInput(t *testing.T, s seeds.Store) {
	ctx := context.Background()
	if _, err := s.Reserve(ctx, ""); !errors.Is(err, seeds.ErrInvalidPlayer) {
		t.Errorf("empty player err = %v", err)
	}
	if _, err := s.SetClientSeed(ctx, player(t), ""); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("empty client seed err = %v", err)
	}
}
