package slots

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
)

func TestNewSymbolTableRejectsBadSymbols(t *testing.T) {
	tests := []struct {
		name    string
		symbols []Symbol
	}{
		{"empty", nil},
		{"zero weight", []Symbol{{ID: "a", Tier: TierLow, Weight: 0}}},
		{"negative payout", []Symbol{{ID: "a", Tier: TierLow, Weight: 1, Payout: -1}}},
		{"duplicate", []Symbol{{ID: "a", Tier: TierLow, Weight: 1}, {ID: "a", Tier: TierLow, Weight: 1}}},
		{"unknown tier", []Symbol{{ID: "a", Tier: "epic", Weight: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSymbolTable(tt.symbols); !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestPickBoundaries(t *testing.T) {
	table, err := NewSymbolTable([]Symbol{
		{ID: "b", Tier: TierLow, Weight: 1},
		{ID: "a", Tier: TierLow, Weight: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	sel, err := NewSelector(table, engine.NewStream(nil))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		draw float64
		want string
	}{
		{0, "a"},
		{0.4999, "a"},
		{0.5, "b"},
		{math.Nextafter(1, 0), "b"},
	}
	for _, tt := range tests {
		if got := sel.Pick(tt.draw); got != tt.want {
			t.Errorf("Pick(%v) = %q, want %q", tt.draw, got, tt.want)
		}
	}
}

func TestSelectGridDeterministic(t *testing.T) {
	pair := engine.SeedPair{ServerSeed: "server", ClientSeed: "client", Nonce: 42}
	table := DefaultSymbolTable()

	a, err := SelectGrid(pair, table, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	b, err := SelectGrid(pair, table, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatalf("same inputs gave different grids:\n%v\n%v", a.Cells(), b.Cells())
	}

	c, _ := SelectGrid(pair.WithNonce(43), table, 3, 3)
	d, _ := SelectGrid(pair.WithNonce(44), table, 3, 3)
	if a.Equal(c) && a.Equal(d) {
		t.Error("three consecutive nonces produced identical grids")
	}
}

func TestSelectGridUsesScanOrder(t *testing.T) {
	pair := engine.SeedPair{ServerSeed: "s", ClientSeed: "c", Nonce: 7}
	table := DefaultSymbolTable()
	sel, _ := NewSelector(table, engine.NewStream(nil))

	g, err := sel.SelectGrid(pair, 3, 3)
	if err != nil {
		t.Fatal(err)
	}
	for reel := 0; reel < 3; reel++ {
		for row := 0; row < 3; row++ {
			want := sel.Pick(engine.Draw(pair, uint64(reel*3+row)))
			if got, _ := g.At(Cell{reel, row}); got != want {
				t.Errorf("cell (%d,%d) = %q, want %q", reel, row, got, want)
			}
		}
	}
}

func TestDominantWeight(t *testing.T) {
	table, err := NewSymbolTable([]Symbol{
		{ID: "common", Tier: TierLow, Payout: 1, Weight: 1e6},
		{ID: "rare", Tier: TierLow, Payout: 1, Weight: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	common := 0
	for nonce := uint64(0); nonce < 200; nonce++ {
		g, err := SelectGrid(engine.SeedPair{ServerSeed: "s", ClientSeed: "c", Nonce: nonce * 9}, table, 3, 3)
		if err != nil {
			t.Fatal(err)
		}
		g.Each(func(_ Cell, id string) {
			if id == "common" {
				common++
			}
		})
	}
	if common < 1790 {
		t.Errorf("dominant symbol drawn %d of 1800 times", common)
	}
}

func TestSymbolFrequencies(t *testing.T) {
	table := DefaultSymbolTable()
	total := table.TotalWeight()
	counts := make(map[string]int)
	const spins = 10000

	for i := uint64(0); i < spins; i++ {
		g, err := SelectGrid(engine.SeedPair{ServerSeed: "freq", ClientSeed: "test", Nonce: i * 9}, table, 3, 3)
		if err != nil {
			t.Fatal(err)
		}
		g.Each(func(_ Cell, id string) { counts[id]++ })
	}

	for _, s := range table.Symbols() {
		want := s.Weight / total
		got := float64(counts[s.ID]) / (spins * 9)
		if math.Abs(got-want) > 0.01 {
			t.Errorf("%s: frequency %.4f, want %.4f", s.ID, got, want)
		}
	}
}

func TestGameSpin(t *testing.T) {
	game := MustDefaultGame()
	pair := engine.SeedPair{ServerSeed: "server", ClientSeed: "client"}

	for nonce := uint64(0); nonce < 50; nonce++ {
		p := pair.WithNonce(nonce * game.DrawsPerSpin())
		a, err := game.Spin(p, dec(10))
		if err != nil {
			t.Fatal(err)
		}
		b, _ := game.Spin(p, dec(10))
		if !a.Grid.Equal(b.Grid) || !a.TotalWin.Equal(b.TotalWin) {
			t.Fatalf("nonce %d: spin not reproducible", nonce)
		}
		again, _ := game.Resolve(a.Grid, dec(10))
		if !again.TotalWin.Equal(a.TotalWin) {
			t.Fatalf("nonce %d: re-resolving the grid changed the win", nonce)
		}
	}

	if _, err := game.Spin(pair, dec(1)); !errors.Is(err, ErrInvalidBet) {
		t.Errorf("low bet err = %v, want ErrInvalidBet", err)
	}
	if _, err := game.Spin(engine.SeedPair{ServerSeed: "s"}, dec(5)); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("missing client seed err = %v, want ErrInvalidInput", err)
	}
}

func BenchmarkSpin(b *testing.B) {
	game := MustDefaultGame()
	pair := engine.SeedPair{ServerSeed: "bench", ClientSeed: "bench"}
	bet := decimal.NewFromInt(10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := game.Spin(pair.WithNonce(uint64(i)*9), bet); err != nil {
			b.Fatal(err)
		}
	}
}

func TestGridFromDrawsMatchesSelectGrid(t *testing.T) {
	game := MustDefaultGame()
	pair := engine.SeedPair{ServerSeed: "s", ClientSeed: "c", Nonce: 90}
	draws := game.Stream().Draws(pair, int(game.DrawsPerSpin()))

	fromDraws, err := game.SpinFromDraws(draws, dec(5))
	if err != nil {
		t.Fatal(err)
	}
	direct, err := game.Spin(pair, dec(5))
	if err != nil {
		t.Fatal(err)
	}
	if !fromDraws.Grid.Equal(direct.Grid) {
		t.Error("GridFromDraws and SelectGrid disagree")
	}
	if _, err := game.SpinFromDraws(draws[:4], dec(5)); !errors.Is(err, ErrConfiguration) {
		t.Errorf("short draws err = %v, want ErrConfiguration", err)
	}
}
