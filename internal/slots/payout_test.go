package slots

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func defaultResolver(t *testing.T, rules Rules) *Resolver {
	t.Helper()
	r, err := NewResolver(DefaultSymbolTable(), ActivePaylines(DefaultPaylines()), rules)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestResolveSingleLineExample(t *testing.T) {
	table, err := NewSymbolTable([]Symbol{
		{ID: "A", Tier: TierLow, Payout: 10, Weight: 1},
		{ID: "B", Tier: TierLow, Payout: 1, Weight: 1},
		{ID: "C", Tier: TierLow, Payout: 1, Weight: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	rules := DefaultRules()
	rules.JackpotSymbol = "A"
	line := Payline{ID: 1, Name: "first reel", Cells: []Cell{{0, 0}, {0, 1}, {0, 2}}, Active: true}
	r, err := NewResolver(table, []Payline{line}, rules)
	if err != nil {
		t.Fatal(err)
	}

	out, err := r.Resolve(MustGrid([][]string{{"A", "A", "A"}, {"B", "B", "B"}, {"C", "C", "C"}}), dec(5))
	if err != nil {
		t.Fatal(err)
	}
	if !out.TotalWin.Equal(dec(50)) {
		t.Errorf("TotalWin = %s, want 50", out.TotalWin)
	}
	if !out.PerLineWins[1].Equal(dec(50)) {
		t.Errorf("line 1 win = %s, want 50", out.PerLineWins[1])
	}
	if out.IsJackpot {
		t.Error("three A cells out of nine is not a jackpot")
	}
}

func TestResolveMultiplierExample(t *testing.T) {
	rules := DefaultRules()
	rules.MinBet = dec(1)
	r := defaultResolver(t, rules)

	g := MustGrid([][]string{
		{"mid-robot", "low-gear", "low-token"},
		{"low-badge", "low-gear", "mid-helmet"},
		{"multiplier-5x", "low-gear", "mid-future"},
	})
	out, err := r.Resolve(g, dec(4))
	if err != nil {
		t.Fatal(err)
	}
	if !out.PerLineWins[2].Equal(dec(20)) {
		t.Fatalf("middle line win = %s, want 20", out.PerLineWins[2])
	}
	if !out.TotalWin.Equal(dec(100)) {
		t.Errorf("TotalWin = %s, want 100", out.TotalWin)
	}
	if out.MultiplierApplied != 5 {
		t.Errorf("MultiplierApplied = %d, want 5", out.MultiplierApplied)
	}
	if len(out.WinningPaylineIDs) != 1 || out.WinningPaylineIDs[0] != 2 {
		t.Errorf("WinningPaylineIDs = %v, want [2]", out.WinningPaylineIDs)
	}
}

func TestResolveJackpotOverridesLines(t *testing.T) {
	r := defaultResolver(t, DefaultRules())
	cells := make([][]string, 3)
	for i := range cells {
		cells[i] = []string{"high-tardi", "high-tardi", "high-tardi"}
	}

	out, err := r.Resolve(MustGrid(cells), dec(10))
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsJackpot {
		t.Fatal("expected jackpot")
	}
	// 10 × 50, not the 5 × 500 the lines would pay.
	if !out.TotalWin.Equal(dec(500)) {
		t.Errorf("TotalWin = %s, want 500", out.TotalWin)
	}
	if len(out.WinningPaylineIDs) != 5 {
		t.Errorf("WinningPaylineIDs = %v, want all five", out.WinningPaylineIDs)
	}
	for id, w := range out.PerLineWins {
		if !w.Equal(dec(100)) {
			t.Errorf("line %d share = %s, want 100", id, w)
		}
	}
}

func TestResolveJackpotSharesSumToTotal(t *testing.T) {
	tests := []struct {
		name  string
		lines int
		bet   int64
		want  int64
	}{
		{"three lines uneven split", 3, 7, 350},
		{"three lines round bet", 3, 10, 500},
		{"five lines even split", 5, 7, 350},
	}
	jackpot := MustGrid([][]string{
		{"high-tardi", "high-tardi", "high-tardi"},
		{"high-tardi", "high-tardi", "high-tardi"},
		{"high-tardi", "high-tardi", "high-tardi"},
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(DefaultSymbolTable(), DefaultPaylines()[:tt.lines], DefaultRules())
			if err != nil {
				t.Fatal(err)
			}
			out, err := r.Resolve(jackpot, dec(tt.bet))
			if err != nil {
				t.Fatal(err)
			}
			if !out.TotalWin.Equal(dec(tt.want)) {
				t.Fatalf("TotalWin = %s, want %d", out.TotalWin, tt.want)
			}
			if len(out.PerLineWins) != tt.lines {
				t.Fatalf("got %d line shares, want %d", len(out.PerLineWins), tt.lines)
			}
			sum := decimal.Zero
			for _, w := range out.PerLineWins {
				sum = sum.Add(w)
			}
			if !sum.Equal(out.TotalWin) {
				t.Errorf("line shares sum to %s, want %s", sum, out.TotalWin)
			}
		})
	}
}

func TestResolveSpecialFirstCellNeverWins(t *testing.T) {
	r := defaultResolver(t, DefaultRules())
	g := MustGrid([][]string{
		{"mid-robot", "free-spin", "low-token"},
		{"low-badge", "low-gear", "mid-helmet"},
		{"mid-robot", "low-gear", "mid-future"},
	})
	out, err := r.Resolve(g, dec(5))
	if err != nil {
		t.Fatal(err)
	}
	if !out.TotalWin.IsZero() {
		t.Errorf("TotalWin = %s, want 0", out.TotalWin)
	}
	if out.FreeSpinsAwarded != 1 {
		t.Errorf("FreeSpinsAwarded = %d, want 1 even without a win", out.FreeSpinsAwarded)
	}
	if out.MultiplierApplied != 1 {
		t.Errorf("MultiplierApplied = %d, want 1", out.MultiplierApplied)
	}
}

func TestResolveSpecialInsideLineIsWild(t *testing.T) {
	r := defaultResolver(t, DefaultRules())
	g := MustGrid([][]string{
		{"mid-robot", "low-gear", "low-token"},
		{"low-badge", "multiplier-2x", "mid-helmet"},
		{"mid-robot", "low-gear", "mid-future"},
	})
	out, err := r.Resolve(g, dec(5))
	if err != nil {
		t.Fatal(err)
	}
	// Middle line: gear, 2x, gear = 5 × 5 = 25, doubled.
	if !out.TotalWin.Equal(dec(50)) {
		t.Errorf("TotalWin = %s, want 50", out.TotalWin)
	}
	if out.MultiplierApplied != 2 {
		t.Errorf("MultiplierApplied = %d, want 2", out.MultiplierApplied)
	}
}

func TestResolveHighestMultiplierWins(t *testing.T) {
	r := defaultResolver(t, DefaultRules())
	g := MustGrid([][]string{
		{"multiplier-2x", "low-gear", "low-token"},
		{"low-badge", "multiplier-10x", "mid-helmet"},
		{"mid-robot", "low-gear", "free-spin"},
	})
	out, err := r.Resolve(g, dec(5))
	if err != nil {
		t.Fatal(err)
	}
	if !out.TotalWin.Equal(dec(250)) {
		t.Errorf("TotalWin = %s, want 250", out.TotalWin)
	}
	if out.MultiplierApplied != 10 {
		t.Errorf("MultiplierApplied = %d, want 10", out.MultiplierApplied)
	}
	if out.FreeSpinsAwarded != 1 {
		t.Errorf("FreeSpinsAwarded = %d, want 1", out.FreeSpinsAwarded)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	r := defaultResolver(t, DefaultRules())
	good := MustGrid([][]string{
		{"low-gear", "low-gear", "low-gear"},
		{"low-gear", "low-gear", "low-gear"},
		{"low-gear", "low-gear", "low-gear"},
	})

	tests := []struct {
		name string
		grid Grid
		bet  decimal.Decimal
		want error
	}{
		{"bet below min", good, decimal.RequireFromString("4.99"), ErrInvalidBet},
		{"bet above max", good, dec(101), ErrInvalidBet},
		{"wrong shape", MustGrid([][]string{{"low-gear", "low-gear"}, {"low-gear", "low-gear"}}), dec(5), ErrConfiguration},
		{"unknown symbol", MustGrid([][]string{
			{"low-gear", "low-gear", "low-gear"},
			{"low-gear", "nope", "low-gear"},
			{"low-gear", "low-gear", "low-gear"},
		}), dec(5), ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Resolve(tt.grid, tt.bet)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if out != nil {
				t.Error("no outcome may be returned on error")
			}
		})
	}

	for _, bet := range []int64{5, 100} {
		if err := r.ValidateBet(dec(bet)); err != nil {
			t.Errorf("bet %d rejected: %v", bet, err)
		}
	}
}

func TestNewResolverConfigErrors(t *testing.T) {
	table := DefaultSymbolTable()
	lines := ActivePaylines(DefaultPaylines())

	noJackpot := DefaultRules()
	noJackpot.JackpotSymbol = "missing"

	badLine := []Payline{{ID: 1, Cells: []Cell{{0, 0}, {1, 0}, {3, 0}}}}
	dupLines := []Payline{lines[0], lines[0]}

	tests := []struct {
		name  string
		lines []Payline
		rules Rules
	}{
		{"no paylines", nil, DefaultRules()},
		{"cell out of bounds", badLine, DefaultRules()},
		{"duplicate ids", dupLines, DefaultRules()},
		{"unknown jackpot symbol", lines, noJackpot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewResolver(table, tt.lines, tt.rules); !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestWinMultiple(t *testing.T) {
	o := &SpinOutcome{BetAmount: dec(5), TotalWin: dec(50)}
	if got := o.WinMultiple(); got != 10 {
		t.Errorf("WinMultiple = %v, want 10", got)
	}
	if got := (&SpinOutcome{}).WinMultiple(); got != 0 {
		t.Errorf("zero bet WinMultiple = %v, want 0", got)
	}
}
