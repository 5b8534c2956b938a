package slots

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rules holds the bet bounds and the jackpot definition.
type Rules struct {
	MinBet            decimal.Decimal
	MaxBet            decimal.Decimal
	JackpotSymbol     string
	JackpotMultiplier int64
	Reels             int
	Rows              int
}

// DefaultRules returns the stock limits: bets 5–100, 50× jackpot on high-tardi, 3×3.
func DefaultRules() Rules {
	return Rules{
		MinBet:            decimal.NewFromInt(5),
		MaxBet:            decimal.NewFromInt(100),
		JackpotSymbol:     "high-tardi",
		JackpotMultiplier: 50,
		Reels:             DefaultReels,
		Rows:              DefaultRows,
	}
}

// SpinOutcome is the read-only result of one spin.
type SpinOutcome struct {
	Grid              Grid                    `json:"grid"`
	BetAmount         decimal.Decimal         `json:"bet_amount"`
	PerLineWins       map[int]decimal.Decimal `json:"per_line_wins"`
	WinningPaylineIDs []int                   `json:"winning_payline_ids"`
	MultiplierApplied int                     `json:"multiplier_applied"`
	IsJackpot         bool                    `json:"is_jackpot"`
	FreeSpinsAwarded  int                     `json:"free_spins_awarded"`
	TotalWin          decimal.Decimal         `json:"total_win"`
}

// WinMultiple is TotalWin / BetAmount, the metric used for scans and RTP.
func (o *SpinOutcome) WinMultiple() float64 {
	if o.BetAmount.IsZero() {
		return 0
	}
	f, _ := o.TotalWin.Div(o.BetAmount).Float64()
	return f
}

// Resolver turns a grid into a SpinOutcome.
type Resolver struct {
	table     *SymbolTable
	evaluator Evaluator
	paylines  []Payline
	rules     Rules
}

// NewResolver validates the paylines against the grid shape and the jackpot
// symbol against the table. paylines are the lines in scope, all of which are
// evaluated regardless of their Active flag.
func NewResolver(t *SymbolTable, paylines []Payline, rules Rules) (*Resolver, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("slots: %w: symbol table is empty", ErrConfiguration)
	}
	if err := ValidatePaylines(paylines, rules.Reels, rules.Rows); err != nil {
		return nil, err
	}
	if _, ok := t.Lookup(rules.JackpotSymbol); !ok {
		return nil, fmt.Errorf("slots: %w: jackpot symbol %q not in symbol table", ErrConfiguration, rules.JackpotSymbol)
	}
	if rules.JackpotMultiplier <= 0 {
		return nil, fmt.Errorf("slots: %w: jackpot multiplier must be positive", ErrConfiguration)
	}
	if rules.MinBet.IsNegative() || rules.MaxBet.LessThan(rules.MinBet) {
		return nil, fmt.Errorf("slots: %w: bet bounds [%s, %s] are invalid", ErrConfiguration, rules.MinBet, rules.MaxBet)
	}

	lines := append([]Payline(nil), paylines...)
	sortPaylines(lines)
	return &Resolver{table: t, evaluator: NewEvaluator(t), paylines: lines, rules: rules}, nil
}

// Rules returns the resolver's rules.
func (r *Resolver) Rules() Rules { return r.rules }

// Paylines returns the lines in scope, ordered by ID.
func (r *Resolver) Paylines() []Payline {
	return append([]Payline(nil), r.paylines...)
}

// ValidateBet checks bet against [MinBet, MaxBet].
func (r *Resolver) ValidateBet(bet decimal.Decimal) error {
	if bet.LessThan(r.rules.MinBet) || bet.GreaterThan(r.rules.MaxBet) {
		return fmt.Errorf("slots: %w: bet %s outside [%s, %s]", ErrInvalidBet, bet, r.rules.MinBet, r.rules.MaxBet)
	}
	return nil
}

func (r *Resolver) validateGrid(g Grid) error {
	if g.Reels() != r.rules.Reels || g.Rows() != r.rules.Rows {
		return fmt.Errorf("slots: %w: grid is %dx%d, want %dx%d", ErrConfiguration, g.Reels(), g.Rows(), r.rules.Reels, r.rules.Rows)
	}
	var unknown string
	g.Each(func(_ Cell, id string) {
		if _, ok := r.table.Lookup(id); !ok && unknown == "" {
			unknown = id
		}
	})
	if unknown != "" {
		return fmt.Errorf("slots: %w: grid holds unknown symbol %q", ErrConfiguration, unknown)
	}
	return nil
}

// Resolve evaluates g for bet. The jackpot takes precedence over line wins;
// otherwise the summed line wins are scaled by the highest multiplier on the
// grid. Free spins accrue whether or not the spin wins.
func (r *Resolver) Resolve(g Grid, bet decimal.Decimal) (*SpinOutcome, error) {
	if err := r.ValidateBet(bet); err != nil {
		return nil, err
	}
	if err := r.validateGrid(g); err != nil {
		return nil, err
	}

	highest, freeSpins, jackpot := r.scan(g)

	out := &SpinOutcome{
		Grid:              g,
		BetAmount:         bet,
		PerLineWins:       make(map[int]decimal.Decimal),
		WinningPaylineIDs: []int{},
		MultiplierApplied: 1,
		FreeSpinsAwarded:  freeSpins,
		TotalWin:          decimal.Zero,
	}

	if jackpot {
		total := bet.Mul(decimal.NewFromInt(r.rules.JackpotMultiplier)).Mul(decimal.NewFromInt(int64(highest)))
		n := int64(len(r.paylines))
		share := total.Div(decimal.NewFromInt(n))
		// The last line takes the rounding remainder so the shares sum to total.
		last := total.Sub(share.Mul(decimal.NewFromInt(n - 1)))
		for i, l := range r.paylines {
			if i == len(r.paylines)-1 {
				out.PerLineWins[l.ID] = last
			} else {
				out.PerLineWins[l.ID] = share
			}
			out.WinningPaylineIDs = append(out.WinningPaylineIDs, l.ID)
		}
		out.TotalWin = total
		out.IsJackpot = true
		out.MultiplierApplied = highest
		return out, nil
	}

	total := decimal.Zero
	for _, l := range r.paylines {
		win := r.evaluator.EvaluateLine(g, l, bet)
		if win.IsPositive() {
			out.PerLineWins[l.ID] = win
			out.WinningPaylineIDs = append(out.WinningPaylineIDs, l.ID)
			total = total.Add(win)
		}
	}
	if total.IsPositive() && highest > 1 {
		total = total.Mul(decimal.NewFromInt(int64(highest)))
		out.MultiplierApplied = highest
	}
	out.TotalWin = total
	return out, nil
}

// scan makes the single pass over all cells: highest multiplier (1 if none),
// summed free spins, and whether every cell holds the jackpot symbol.
func (r *Resolver) scan(g Grid) (highest, freeSpins int, jackpot bool) {
	highest = 1
	jackpot = true
	g.Each(func(_ Cell, id string) {
		s, _ := r.table.Lookup(id)
		if s.Multiplier > highest {
			highest = s.Multiplier
		}
		freeSpins += s.FreeSpins
		if id != r.rules.JackpotSymbol {
			jackpot = false
		}
	})
	return highest, freeSpins, jackpot
}
