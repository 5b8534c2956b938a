package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"
)

func TestDrawRange(t *testing.T) {
	tests := []struct {
		name string
		pair SeedPair
		n    int
	}{
		{
			name: "single draw",
			pair: SeedPair{ServerSeed: "test_server_seed", ClientSeed: "test_client_seed", Nonce: 1},
			n:    1,
		},
		{
			name: "full grid",
			pair: SeedPair{ServerSeed: "test_server_seed", ClientSeed: "test_client_seed", Nonce: 1},
			n:    9,
		},
		{
			name: "large nonce",
			pair: SeedPair{ServerSeed: "a", ClientSeed: "b", Nonce: 1 << 40},
			n:    64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draws := NewStream(nil).Draws(tt.pair, tt.n)
			if len(draws) != tt.n {
				t.Fatalf("Draws() returned %d values, want %d", len(draws), tt.n)
			}
			for i, f := range draws {
				if f < 0 || f >= 1 {
					t.Errorf("Draw %d is out of range [0, 1): %f", i, f)
				}
			}
		})
	}
}

func TestDrawMatchesMessageConstruction(t *testing.T) {
	pair := SeedPair{ServerSeed: "server", ClientSeed: "client", Nonce: 3}

	sum := sha256.Sum256([]byte("server:client:5"))
	want := float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)

	if got := Draw(pair, 2); got != want {
		t.Errorf("Draw(pair, 2) = %.17f, want %.17f", got, want)
	}
}

func TestDrawDeterministic(t *testing.T) {
	pair := SeedPair{ServerSeed: "deterministic_test", ClientSeed: "client_test", Nonce: 42}

	first := NewStream(nil).Draws(pair, 9)
	second := NewStream(nil).Draws(pair, 9)

	for i := range first {
		if first[i] != second[i] {
			t.Errorf("Draw %d differs: %f != %f", i, first[i], second[i])
		}
	}
}

func TestDrawIndexSharesCounterWithNonce(t *testing.T) {
	// nonce and draw index are summed, so (nonce=n, index=i+1) == (nonce=n+1, index=i).
	pair := SeedPair{ServerSeed: "s", ClientSeed: "c", Nonce: 10}
	if Draw(pair, 1) != Draw(pair.WithNonce(11), 0) {
		t.Error("Expected nonce+drawIndex to address the same draw")
	}
}

func TestDrawDependsOnEverySeedComponent(t *testing.T) {
	base := SeedPair{ServerSeed: "server", ClientSeed: "client", Nonce: 1}
	variants := map[string]SeedPair{
		"server": {ServerSeed: "server2", ClientSeed: "client", Nonce: 1},
		"client": {ServerSeed: "server", ClientSeed: "client2", Nonce: 1},
		"nonce":  {ServerSeed: "server", ClientSeed: "client", Nonce: 2},
	}
	want := Draw(base, 0)
	for name, p := range variants {
		if Draw(p, 0) == want {
			t.Errorf("changing %s did not change the draw", name)
		}
	}
}

func TestDrawsInto(t *testing.T) {
	pair := SeedPair{ServerSeed: "s", ClientSeed: "c", Nonce: 1}

	dst := make([]float64, 16)
	if got := NewStream(nil).DrawsInto(dst, pair, 9); len(got) != 9 {
		t.Errorf("DrawsInto() returned %d values, want 9", len(got))
	}

	small := make([]float64, 2)
	if got := NewStream(nil).DrawsInto(small, pair, 9); len(got) != 9 {
		t.Errorf("DrawsInto() with small buffer returned %d values, want 9", len(got))
	}
}

func TestDigestToFloat(t *testing.T) {
	var zero, max [32]byte
	for i := range max {
		max[i] = 0xff
	}
	var half [32]byte
	half[0] = 0x80

	tests := []struct {
		name string
		sum  [32]byte
		want float64
	}{
		{"all zeros", zero, 0},
		{"all max values", max, float64((uint64(1)<<53)-1) / (1 << 53)},
		{"high bit only", half, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := digestToFloat(tt.sum)
			if got != tt.want {
				t.Errorf("digestToFloat() = %.17f, want %.17f", got, tt.want)
			}
			if got < 0 || got >= 1 {
				t.Errorf("digestToFloat() out of range [0, 1): %f", got)
			}
		})
	}
}

func TestAlternateHashersDiffer(t *testing.T) {
	pair := SeedPair{ServerSeed: "s", ClientSeed: "c", Nonce: 1}
	seen := map[float64]string{}
	for _, name := range []string{HashSHA256, HashSHA3, HashBlake2b} {
		h, err := HasherByName(name)
		if err != nil {
			t.Fatalf("HasherByName(%q): %v", name, err)
		}
		f := NewStream(h).Draw(pair, 0)
		if other, dup := seen[f]; dup {
			t.Errorf("%s and %s produced the same draw", name, other)
		}
		seen[f] = name
	}
}

func BenchmarkDraw(b *testing.B) {
	pair := SeedPair{ServerSeed: "benchmark_server", ClientSeed: "benchmark_client", Nonce: 1}
	s := NewStream(nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Draw(pair, uint64(i%9))
	}
}
