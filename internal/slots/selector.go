package slots

import (
	"fmt"
	"sort"

	"github.com/MJE43/pf-slots/internal/engine"
)

// Default grid shape.
const (
	DefaultReels = 3
	DefaultRows  = 3
)

type cumulativeWeight struct {
	id    string
	upper float64
}

// Selector maps uniform draws onto symbols through a cumulative weight table
// ordered by symbol ID, so a given draw selects the same symbol everywhere.
type Selector struct {
	entries []cumulativeWeight
	total   float64
	stream  engine.Stream
}

// NewSelector builds the cumulative table for t. Draws come from stream.
func NewSelector(t *SymbolTable, stream engine.Stream) (*Selector, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("slots: %w: symbol table is empty", ErrConfiguration)
	}

	entries := make([]cumulativeWeight, 0, t.Len())
	running := 0.0
	for _, s := range t.Symbols() {
		running += s.Weight
		entries = append(entries, cumulativeWeight{id: s.ID, upper: running})
	}
	return &Selector{entries: entries, total: running, stream: stream}, nil
}

// Pick returns the symbol whose interval [previous upper, upper) contains
// draw scaled by the total weight.
func (s *Selector) Pick(draw float64) string {
	scaled := draw * s.total
	i := sort.Search(len(s.entries), func(i int) bool { return s.entries[i].upper > scaled })
	if i == len(s.entries) {
		// Only reachable through float rounding at the very top of the range.
		i = len(s.entries) - 1
	}
	return s.entries[i].id
}

// SelectGrid fills a reels×rows grid, one draw per cell in scan order. The
// draw index of cell (reel, row) is reel*rows + row.
func (s *Selector) SelectGrid(pair engine.SeedPair, reels, rows int) (Grid, error) {
	if reels <= 0 || rows <= 0 {
		return Grid{}, fmt.Errorf("slots: %w: grid must be at least 1x1, got %dx%d", ErrConfiguration, reels, rows)
	}

	cells := make([][]string, reels)
	for r := 0; r < reels; r++ {
		cells[r] = make([]string, rows)
		for row := 0; row < rows; row++ {
			idx := uint64(r*rows + row)
			cells[r][row] = s.Pick(s.stream.Draw(pair, idx))
		}
	}
	return Grid{cells: cells}, nil
}

// GridFromDraws builds a grid from draws already taken in scan order. It is
// SelectGrid for callers that reuse a draw buffer.
func (s *Selector) GridFromDraws(draws []float64, reels, rows int) (Grid, error) {
	if reels <= 0 || rows <= 0 {
		return Grid{}, fmt.Errorf("slots: %w: grid must be at least 1x1, got %dx%d", ErrConfiguration, reels, rows)
	}
	if len(draws) < reels*rows {
		return Grid{}, fmt.Errorf("slots: %w: %d draws for a %dx%d grid", ErrConfiguration, len(draws), reels, rows)
	}
	cells := make([][]string, reels)
	for r := 0; r < reels; r++ {
		cells[r] = make([]string, rows)
		for row := 0; row < rows; row++ {
			cells[r][row] = s.Pick(draws[r*rows+row])
		}
	}
	return Grid{cells: cells}, nil
}

// SelectGrid is a one-shot selection over SHA-256 draws.
func SelectGrid(pair engine.SeedPair, t *SymbolTable, reels, rows int) (Grid, error) {
	sel, err := NewSelector(t, engine.NewStream(nil))
	if err != nil {
		return Grid{}, err
	}
	return sel.SelectGrid(pair, reels, rows)
}
