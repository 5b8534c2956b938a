package slots

import (
	"encoding/json"
	"fmt"
)

// Cell addresses one grid position.
type Cell struct {
	Reel int `json:"reel" yaml:"reel"`
	Row  int `json:"row" yaml:"row"`
}

// Grid maps (reel, row) to a symbol ID. It is never mutated after creation.
type Grid struct {
	cells [][]string
}

// NewGrid copies a reel-major matrix (cells[reel][row]) into a grid. Every
// reel must have the same, non-zero number of rows.
func NewGrid(cells [][]string) (Grid, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return Grid{}, fmt.Errorf("slots: %w: grid is empty", ErrConfiguration)
	}
	rows := len(cells[0])
	out := make([][]string, len(cells))
	for r, reel := range cells {
		if len(reel) != rows {
			return Grid{}, fmt.Errorf("slots: %w: reel %d has %d rows, want %d", ErrConfiguration, r, len(reel), rows)
		}
		out[r] = append([]string(nil), reel...)
	}
	return Grid{cells: out}, nil
}

// MustGrid is NewGrid for literals known to be well formed.
func MustGrid(cells [][]string) Grid {
	g, err := NewGrid(cells)
	if err != nil {
		panic(err)
	}
	return g
}

// Reels returns the number of reels.
func (g Grid) Reels() int { return len(g.cells) }

// Rows returns the number of rows per reel.
func (g Grid) Rows() int {
	if len(g.cells) == 0 {
		return 0
	}
	return len(g.cells[0])
}

// At returns the symbol at c; ok is false outside the grid.
func (g Grid) At(c Cell) (string, bool) {
	if c.Reel < 0 || c.Reel >= g.Reels() || c.Row < 0 || c.Row >= g.Rows() {
		return "", false
	}
	return g.cells[c.Reel][c.Row], true
}

// Cells returns a copy of the reel-major matrix.
func (g Grid) Cells() [][]string {
	out := make([][]string, len(g.cells))
	for i, reel := range g.cells {
		out[i] = append([]string(nil), reel...)
	}
	return out
}

// Each visits every cell in scan order: reel-major, then row.
func (g Grid) Each(fn func(c Cell, symbol string)) {
	for r, reel := range g.cells {
		for row, id := range reel {
			fn(Cell{Reel: r, Row: row}, id)
		}
	}
}

// Equal reports whether two grids hold the same symbols in the same shape.
func (g Grid) Equal(other Grid) bool {
	if g.Reels() != other.Reels() || g.Rows() != other.Rows() {
		return false
	}
	for r := range g.cells {
		for row := range g.cells[r] {
			if g.cells[r][row] != other.cells[r][row] {
				return false
			}
		}
	}
	return true
}

func (g Grid) MarshalJSON() ([]byte, error) {
	if g.cells == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g.cells)
}

func (g *Grid) UnmarshalJSON(data []byte) error {
	var cells [][]string
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	parsed, err := NewGrid(cells)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
