package slots

import (
	"fmt"
	"sort"
)

// Tier groups symbols by payout class.
type Tier string

const (
	TierLow     Tier = "low"
	TierMid     Tier = "mid"
	TierHigh    Tier = "high"
	TierSpecial Tier = "special"
)

// Symbol is one paytable entry. Weight is relative to the other entries and
// need not sum to one across the table.
type Symbol struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Tier       Tier    `json:"tier" yaml:"tier"`
	Payout     float64 `json:"payout" yaml:"payout"`
	Weight     float64 `json:"weight" yaml:"weight"`
	Multiplier int     `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
	FreeSpins  int     `json:"free_spins,omitempty" yaml:"free_spins,omitempty"`
}

// IsSpecial reports whether the symbol is a wildcard on paylines: it never
// breaks a match and never anchors one.
func (s Symbol) IsSpecial() bool {
	return s.Tier == TierSpecial || s.Multiplier > 1 || s.FreeSpins > 0
}

// SymbolTable is the immutable paytable, kept sorted by symbol ID.
type SymbolTable struct {
	byID    map[string]Symbol
	ordered []Symbol
}

// NewSymbolTable validates symbols and builds a table.
func NewSymbolTable(symbols []Symbol) (*SymbolTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("slots: %w: symbol table is empty", ErrConfiguration)
	}

	t := &SymbolTable{
		byID:    make(map[string]Symbol, len(symbols)),
		ordered: make([]Symbol, 0, len(symbols)),
	}
	for _, s := range symbols {
		if err := validateSymbol(s); err != nil {
			return nil, err
		}
		if _, dup := t.byID[s.ID]; dup {
			return nil, fmt.Errorf("slots: %w: duplicate symbol %q", ErrConfiguration, s.ID)
		}
		t.byID[s.ID] = s
		t.ordered = append(t.ordered, s)
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].ID < t.ordered[j].ID })
	return t, nil
}

func validateSymbol(s Symbol) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("slots: %w: symbol id is required", ErrConfiguration)
	case s.Weight <= 0:
		return fmt.Errorf("slots: %w: symbol %q weight must be positive", ErrConfiguration, s.ID)
	case s.Payout < 0:
		return fmt.Errorf("slots: %w: symbol %q payout must be non-negative", ErrConfiguration, s.ID)
	case s.Multiplier < 0 || s.Multiplier == 1:
		return fmt.Errorf("slots: %w: symbol %q multiplier must be greater than 1", ErrConfiguration, s.ID)
	case s.FreeSpins < 0:
		return fmt.Errorf("slots: %w: symbol %q free spins must be positive", ErrConfiguration, s.ID)
	}
	switch s.Tier {
	case TierLow, TierMid, TierHigh, TierSpecial:
	default:
		return fmt.Errorf("slots: %w: symbol %q has unknown tier %q", ErrConfiguration, s.ID, s.Tier)
	}
	return nil
}

// Lookup returns the entry for id.
func (t *SymbolTable) Lookup(id string) (Symbol, bool) {
	s, ok := t.byID[id]
	return s, ok
}

// IsWildcard reports whether id is a special symbol in this table.
func (t *SymbolTable) IsWildcard(id string) bool {
	s, ok := t.byID[id]
	return ok && s.IsSpecial()
}

// Symbols returns the entries ordered by ID.
func (t *SymbolTable) Symbols() []Symbol {
	out := make([]Symbol, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Len returns the number of symbols.
func (t *SymbolTable) Len() int {
	return len(t.ordered)
}

// TotalWeight is the sum of all weights, accumulated in ID order.
func (t *SymbolTable) TotalWeight() float64 {
	total := 0.0
	for _, s := range t.ordered {
		total += s.Weight
	}
	return total
}

// DefaultSymbols is the stock T-NGMI paytable with its reel weights.
func DefaultSymbols() []Symbol {
	return []Symbol{
		{ID: "low-gear", Name: "Gear", Tier: TierLow, Payout: 5, Weight: 20},
		{ID: "low-token", Name: "Token", Tier: TierLow, Payout: 8, Weight: 20},
		{ID: "low-badge", Name: "Badge", Tier: TierLow, Payout: 10, Weight: 20},
		{ID: "mid-robot", Name: "Robot", Tier: TierMid, Payout: 15, Weight: 15},
		{ID: "mid-helmet", Name: "Helmet", Tier: TierMid, Payout: 20, Weight: 10},
		{ID: "mid-future", Name: "Future Tech", Tier: TierMid, Payout: 25, Weight: 10},
		{ID: "high-tardi", Name: "TARDI Logo", Tier: TierHigh, Payout: 50, Weight: 5},
		{ID: "multiplier-2x", Name: "2x Multiplier", Tier: TierSpecial, Weight: 5, Multiplier: 2},
		{ID: "multiplier-5x", Name: "5x Multiplier", Tier: TierSpecial, Weight: 3, Multiplier: 5},
		{ID: "multiplier-10x", Name: "10x Multiplier", Tier: TierSpecial, Weight: 2, Multiplier: 10},
		{ID: "free-spin", Name: "Free Spin", Tier: TierSpecial, Weight: 10, FreeSpins: 1},
	}
}

// DefaultSymbolTable builds the table from DefaultSymbols.
func DefaultSymbolTable() *SymbolTable {
	t, err := NewSymbolTable(DefaultSymbols())
	if err != nil {
		panic(err)
	}
	return t
}
