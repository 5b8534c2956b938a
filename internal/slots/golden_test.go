package slots

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/MJE43/pf-slots/internal/engine"
)

type GridVector struct {
	Description string     `json:"description"`
	ServerSeed  string     `json:"server_seed"`
	ClientSeed  string     `json:"client_seed"`
	Nonce       uint64     `json:"nonce"`
	Draws       []float64  `json:"draws"`
	Grid        [][]string `json:"grid"`
}

// Pins the stock game: SHA-256 draws, symbols ordered by ID, reel-major cells.
func TestGridGoldenVectors(t *testing.T) {
	vectors, err := loadGridVectors()
	if err != nil {
		t.Fatalf("Failed to load golden vectors: %v", err)
	}
	if len(vectors) == 0 {
		t.Fatal("no golden vectors")
	}

	game := MustDefaultGame()
	for _, v := range vectors {
		t.Run(v.Description, func(t *testing.T) {
			pair := engine.SeedPair{ServerSeed: v.ServerSeed, ClientSeed: v.ClientSeed, Nonce: v.Nonce}

			draws := engine.NewStream(engine.SHA256).Draws(pair, int(game.DrawsPerSpin()))
			if len(draws) != len(v.Draws) {
				t.Fatalf("Length mismatch: got %d draws, want %d", len(draws), len(v.Draws))
			}
			for i := range draws {
				if draws[i] != v.Draws[i] {
					t.Errorf("Draw %d mismatch: got %.17g, want %.17g", i, draws[i], v.Draws[i])
				}
			}

			want := MustGrid(v.Grid)
			grid, err := game.SelectGrid(pair)
			if err != nil {
				t.Fatal(err)
			}
			if !grid.Equal(want) {
				t.Errorf("SelectGrid = %v, want %v", grid.Cells(), v.Grid)
			}

			fromDraws, err := game.selector.GridFromDraws(v.Draws, DefaultReels, DefaultRows)
			if err != nil {
				t.Fatal(err)
			}
			if !fromDraws.Equal(want) {
				t.Errorf("GridFromDraws = %v, want %v", fromDraws.Cells(), v.Grid)
			}
		})
	}
}

func loadGridVectors() ([]GridVector, error) {
	path := filepath.Join("..", "..", "testdata", "grid_golden.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var vectors []GridVector
	err = json.Unmarshal(data, &vectors)
	return vectors, err
}
