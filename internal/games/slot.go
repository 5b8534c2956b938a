package games

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/slots"
)

// SlotGameID is the registry ID of the slot game.
const SlotGameID = "slots"

// SlotGame adapts slots.Game to the registry. The metric is the win as a
// multiple of the bet; params may carry "bet" (defaults to the minimum bet).
type SlotGame struct {
	game *slots.Game
}

// NewSlotGame wraps game.
func NewSlotGame(game *slots.Game) *SlotGame {
	return &SlotGame{game: game}
}

// Spec returns metadata about the slot game
func (g *SlotGame) Spec() GameSpec {
	return GameSpec{
		ID:          SlotGameID,
		Name:        "T-NGMI Slots",
		MetricLabel: "win_multiple",
	}
}

// FloatCount is one draw per cell.
func (g *SlotGame) FloatCount(params map[string]any) int {
	return int(g.game.DrawsPerSpin())
}

// BetAmount returns the bet the params select.
func (g *SlotGame) BetAmount(params map[string]any) (float64, error) {
	bet, err := g.bet(params)
	if err != nil {
		return 0, err
	}
	f, _ := bet.Float64()
	return f, nil
}

func (g *SlotGame) bet(params map[string]any) (decimal.Decimal, error) {
	bet, err := decimalParam(params, "bet", g.game.Rules().MinBet)
	if err != nil {
		return decimal.Zero, err
	}
	return bet, g.game.ValidateBet(bet)
}

// Evaluate spins at nonce.
func (g *SlotGame) Evaluate(seeds Seeds, nonce uint64, params map[string]any) (GameResult, error) {
	bet, err := g.bet(params)
	if err != nil {
		return GameResult{}, err
	}
	out, err := g.game.Spin(engine.SeedPair{ServerSeed: seeds.Server, ClientSeed: seeds.Client, Nonce: nonce}, bet)
	if err != nil {
		return GameResult{}, err
	}
	return slotResult(out), nil
}

// EvaluateWithFloats spins using pre-computed draws.
func (g *SlotGame) EvaluateWithFloats(floats []float64, params map[string]any) (GameResult, error) {
	bet, err := g.bet(params)
	if err != nil {
		return GameResult{}, err
	}
	out, err := g.game.SpinFromDraws(floats, bet)
	if err != nil {
		return GameResult{}, err
	}
	return slotResult(out), nil
}

func slotResult(out *slots.SpinOutcome) GameResult {
	return GameResult{
		Metric:      out.WinMultiple(),
		MetricLabel: "win_multiple",
		Details: map[string]any{
			"grid":        out.Grid,
			"total_win":   out.TotalWin.String(),
			"multiplier":  out.MultiplierApplied,
			"jackpot":     out.IsJackpot,
			"free_spins":  out.FreeSpinsAwarded,
			"winning_ids": out.WinningPaylineIDs,
		},
	}
}
