package slots

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Payline is a fixed sequence of cells, one per reel, checked for a match.
type Payline struct {
	ID     int    `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Cells  []Cell `json:"cells" yaml:"cells"`
	Color  string `json:"color" yaml:"color"`
	Active bool   `json:"active" yaml:"active"`
}

// DefaultPaylines returns the ten stock lines; the first five are active.
func DefaultPaylines() []Payline {
	return []Payline{
		{ID: 1, Name: "Top Horizontal", Color: "#ff5252", Active: true, Cells: []Cell{{0, 0}, {1, 0}, {2, 0}}},
		{ID: 2, Name: "Middle Horizontal", Color: "#4caf50", Active: true, Cells: []Cell{{0, 1}, {1, 1}, {2, 1}}},
		{ID: 3, Name: "Bottom Horizontal", Color: "#2196f3", Active: true, Cells: []Cell{{0, 2}, {1, 2}, {2, 2}}},
		{ID: 4, Name: "Diagonal Down", Color: "#ff9800", Active: true, Cells: []Cell{{0, 0}, {1, 1}, {2, 2}}},
		{ID: 5, Name: "Diagonal Up", Color: "#9c27b0", Active: true, Cells: []Cell{{0, 2}, {1, 1}, {2, 0}}},
		{ID: 6, Name: "Left Vertical", Color: "#00bcd4", Cells: []Cell{{0, 0}, {0, 1}, {0, 2}}},
		{ID: 7, Name: "Middle Vertical", Color: "#ffc107", Cells: []Cell{{1, 0}, {1, 1}, {1, 2}}},
		{ID: 8, Name: "Right Vertical", Color: "#e91e63", Cells: []Cell{{2, 0}, {2, 1}, {2, 2}}},
		{ID: 9, Name: "V-Shape", Color: "#8bc34a", Cells: []Cell{{0, 2}, {1, 1}, {2, 2}}},
		{ID: 10, Name: "Inverted V-Shape", Color: "#ff4081", Cells: []Cell{{0, 0}, {1, 1}, {2, 0}}},
	}
}

// ActivePaylines filters lines to the active ones, ordered by ID.
func ActivePaylines(lines []Payline) []Payline {
	out := make([]Payline, 0, len(lines))
	for _, l := range lines {
		if l.Active {
			out = append(out, l)
		}
	}
	sortPaylines(out)
	return out
}

func sortPaylines(lines []Payline) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
}

// ValidatePaylines checks that every line has exactly one in-bounds cell per
// reel count and that IDs are unique.
func ValidatePaylines(lines []Payline, reels, rows int) error {
	if len(lines) == 0 {
		return fmt.Errorf("slots: %w: no paylines configured", ErrConfiguration)
	}
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if seen[l.ID] {
			return fmt.Errorf("slots: %w: duplicate payline id %d", ErrConfiguration, l.ID)
		}
		seen[l.ID] = true
		if len(l.Cells) != reels {
			return fmt.Errorf("slots: %w: payline %d has %d cells, want %d", ErrConfiguration, l.ID, len(l.Cells), reels)
		}
		for _, c := range l.Cells {
			if c.Reel < 0 || c.Reel >= reels || c.Row < 0 || c.Row >= rows {
				return fmt.Errorf("slots: %w: payline %d cell (%d,%d) outside %dx%d grid", ErrConfiguration, l.ID, c.Reel, c.Row, reels, rows)
			}
		}
	}
	return nil
}

// Evaluator scores single paylines against a symbol table.
type Evaluator struct {
	table *SymbolTable
}

// NewEvaluator returns an evaluator over t.
func NewEvaluator(t *SymbolTable) Evaluator {
	return Evaluator{table: t}
}

// LineSymbol returns the anchor symbol of a winning line, or "" when the line
// does not match. The first cell must be a regular symbol; specials elsewhere
// on the line are skipped.
func (e Evaluator) LineSymbol(g Grid, line Payline) string {
	if len(line.Cells) == 0 {
		return ""
	}
	first, ok := g.At(line.Cells[0])
	if !ok || e.table.IsWildcard(first) {
		return ""
	}
	for _, c := range line.Cells[1:] {
		id, ok := g.At(c)
		if !ok {
			return ""
		}
		if id != first && !e.table.IsWildcard(id) {
			return ""
		}
	}
	return first
}

// EvaluateLine returns the win for one payline: payout(anchor) × bet, or zero.
func (e Evaluator) EvaluateLine(g Grid, line Payline, bet decimal.Decimal) decimal.Decimal {
	id := e.LineSymbol(g, line)
	if id == "" {
		return decimal.Zero
	}
	s, ok := e.table.Lookup(id)
	if !ok || s.Payout <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(s.Payout).Mul(bet)
}
