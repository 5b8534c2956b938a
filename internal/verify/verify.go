// Package verify lets any party audit a spin once its server seed is revealed.
package verify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/slots"
)

// Request is what an auditor holds after a seed rotation. Field names match
// the commitment check endpoint.
type Request struct {
	ServerSeed     string           `json:"serverSeed"`
	ServerSeedHash string           `json:"serverSeedHash"`
	ClientSeed     string           `json:"clientSeed"`
	Nonce          uint64           `json:"nonce"`
	ExpectedGrid   *slots.Grid      `json:"expectedGrid,omitempty"`
	Bet            *decimal.Decimal `json:"bet,omitempty"`
}

// CellMismatch is one cell where the recomputed grid disagrees.
type CellMismatch struct {
	Reel     int    `json:"reel"`
	Row      int    `json:"row"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Result reports each check separately. GridValid is nil when no grid was
// checked.
type Result struct {
	HashValid    bool               `json:"hashValid"`
	GridValid    *bool              `json:"gridValid,omitempty"`
	Mismatches   []CellMismatch     `json:"mismatches,omitempty"`
	Grid         *slots.Grid        `json:"grid,omitempty"`
	Outcome      *slots.SpinOutcome `json:"outcome,omitempty"`
	ShapeMessage string             `json:"shapeMessage,omitempty"`
}

// Service recomputes spins with a fixed game configuration.
type Service struct {
	game *slots.Game
}

// NewService returns a verifier for game.
func NewService(game *slots.Game) *Service {
	return &Service{game: game}
}

// VerifyCommitment checks only the hash. Empty inputs are errors; a mismatch
// is a false result.
func (s *Service) VerifyCommitment(serverSeed, serverSeedHash string) (bool, error) {
	if serverSeedHash == "" {
		return false, fmt.Errorf("verify: %w: server seed hash is required", engine.ErrInvalidInput)
	}
	return s.game.Commitment().Verify(serverSeed, serverSeedHash)
}

// Verify checks the commitment and recomputes the grid from the revealed
// seeds. The grid audit runs whenever an expected grid is supplied, whether or
// not the commitment holds; HashValid and GridValid are reported separately.
// With a bet the recomputed outcome is included as well.
func (s *Service) Verify(req Request) (*Result, error) {
	if req.ClientSeed == "" {
		return nil, fmt.Errorf("verify: %w: client seed is required", engine.ErrInvalidInput)
	}
	ok, err := s.VerifyCommitment(req.ServerSeed, req.ServerSeedHash)
	if err != nil {
		return nil, err
	}
	res := &Result{HashValid: ok}

	pair := engine.SeedPair{
		ServerSeed:     req.ServerSeed,
		ServerSeedHash: req.ServerSeedHash,
		ClientSeed:     req.ClientSeed,
		Nonce:          req.Nonce,
	}
	grid, err := s.game.SelectGrid(pair)
	if err != nil {
		return nil, err
	}
	res.Grid = &grid

	if req.ExpectedGrid != nil {
		mismatches, shape := Compare(*req.ExpectedGrid, grid)
		valid := len(mismatches) == 0 && shape == ""
		res.GridValid = &valid
		res.Mismatches = mismatches
		res.ShapeMessage = shape
	}

	if req.Bet != nil {
		out, err := s.game.Resolve(grid, *req.Bet)
		if err != nil {
			return nil, err
		}
		res.Outcome = out
	}
	return res, nil
}

// Compare lists the cells where actual differs from expected. A shape
// difference is reported as a message; cells inside both grids are still compared.
func Compare(expected, actual slots.Grid) ([]CellMismatch, string) {
	var shape string
	if expected.Reels() != actual.Reels() || expected.Rows() != actual.Rows() {
		shape = fmt.Sprintf("expected %dx%d grid, recomputed %dx%d",
			expected.Reels(), expected.Rows(), actual.Reels(), actual.Rows())
	}

	var out []CellMismatch
	actual.Each(func(c slots.Cell, got string) {
		want, ok := expected.At(c)
		if !ok || want == got {
			return
		}
		out = append(out, CellMismatch{Reel: c.Reel, Row: c.Row, Expected: want, Actual: got})
	})
	return out, shape
}
