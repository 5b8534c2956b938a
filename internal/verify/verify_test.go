package verify

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/slots"
)

const abcHash = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func TestVerifyCommitment(t *testing.T) {
	svc := NewService(slots.MustDefaultGame())
	xyz, _ := engine.Commit("xyz")

	tests := []struct {
		name string
		seed string
		hash string
		want bool
	}{
		{"matching", "abc", abcHash, true},
		{"other seed", "abc", xyz, false},
		{"garbage hash", "abc", "not-a-hash", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.VerifyCommitment(tt.seed, tt.hash)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := svc.VerifyCommitment("", abcHash); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("empty seed err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.VerifyCommitment("abc", ""); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("empty hash err = %v, want ErrInvalidInput", err)
	}
}

func TestVerifyGrid(t *testing.T) {
	game := slots.MustDefaultGame()
	svc := NewService(game)
	pair := engine.SeedPair{ServerSeed: "abc", ServerSeedHash: abcHash, ClientSeed: "player", Nonce: 18}

	grid, err := game.SelectGrid(pair)
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.Verify(Request{
		ServerSeed: pair.ServerSeed, ServerSeedHash: pair.ServerSeedHash,
		ClientSeed: pair.ClientSeed, Nonce: pair.Nonce, ExpectedGrid: &grid,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.HashValid || res.GridValid == nil || !*res.GridValid {
		t.Fatalf("honest grid rejected: %+v", res)
	}

	cells := grid.Cells()
	orig := cells[1][2]
	if orig == "low-gear" {
		cells[1][2] = "low-token"
	} else {
		cells[1][2] = "low-gear"
	}
	tampered := slots.MustGrid(cells)

	res, err = svc.Verify(Request{
		ServerSeed: pair.ServerSeed, ServerSeedHash: pair.ServerSeedHash,
		ClientSeed: pair.ClientSeed, Nonce: pair.Nonce, ExpectedGrid: &tampered,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.GridValid == nil || *res.GridValid {
		t.Fatal("tampered grid accepted")
	}
	if len(res.Mismatches) != 1 {
		t.Fatalf("mismatches = %+v, want exactly one", res.Mismatches)
	}
	m := res.Mismatches[0]
	if m.Reel != 1 || m.Row != 2 || m.Actual != orig || m.Expected != cells[1][2] {
		t.Errorf("mismatch = %+v", m)
	}
}

func TestVerifyHashMismatchStillAuditsGrid(t *testing.T) {
	game := slots.MustDefaultGame()
	svc := NewService(game)
	xyz, _ := engine.Commit("xyz")
	want, err := game.SelectGrid(engine.SeedPair{ServerSeed: "abc", ClientSeed: "c", Nonce: 9})
	if err != nil {
		t.Fatal(err)
	}
	cells := want.Cells()
	cells[0][0] = "not-a-symbol"
	tampered := slots.MustGrid(cells)

	tests := []struct {
		name      string
		expected  slots.Grid
		gridValid bool
	}{
		{"matching grid", want, true},
		{"tampered grid", tampered, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := tt.expected
			res, err := svc.Verify(Request{ServerSeed: "abc", ServerSeedHash: xyz, ClientSeed: "c", Nonce: 9, ExpectedGrid: &expected})
			if err != nil {
				t.Fatal(err)
			}
			if res.HashValid {
				t.Error("HashValid = true for the wrong seed")
			}
			if res.GridValid == nil {
				t.Fatal("grid audit skipped on a hash mismatch")
			}
			if *res.GridValid != tt.gridValid {
				t.Errorf("GridValid = %v, want %v (mismatches %+v)", *res.GridValid, tt.gridValid, res.Mismatches)
			}
			if !tt.gridValid && len(res.Mismatches) != 1 {
				t.Errorf("mismatches = %+v, want one", res.Mismatches)
			}
		})
	}
}

func TestVerifyWithBetRecomputesOutcome(t *testing.T) {
	game := slots.MustDefaultGame()
	svc := NewService(game)
	bet := decimal.NewFromInt(10)
	pair := engine.SeedPair{ServerSeed: "abc", ServerSeedHash: abcHash, ClientSeed: "player", Nonce: 0}

	want, err := game.Spin(pair, bet)
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.Verify(Request{ServerSeed: "abc", ServerSeedHash: abcHash, ClientSeed: "player", Bet: &bet})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome == nil || !res.Outcome.TotalWin.Equal(want.TotalWin) || !res.Outcome.Grid.Equal(want.Grid) {
		t.Errorf("outcome = %+v, want %+v", res.Outcome, want)
	}
}

func TestCompareShape(t *testing.T) {
	a := slots.MustGrid([][]string{{"x", "y"}, {"x", "y"}})
	b := slots.MustGrid([][]string{{"x", "y", "z"}, {"x", "q", "z"}, {"x", "y", "z"}})
	mm, shape := Compare(a, b)
	if shape == "" {
		t.Error("shape difference not reported")
	}
	if len(mm) != 1 || mm[0].Reel != 1 || mm[0].Row != 1 {
		t.Errorf("mismatches = %+v", mm)
	}
}
