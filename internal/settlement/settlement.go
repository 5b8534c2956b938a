// Package settlement records the financial result of a spin outside the
// engine. The engine decides outcomes; a Settler only moves the amounts.
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Modes accepted by New.
const (
	ModeSimulated = "simulated"
	ModeOnChain   = "onchain"
)

// Request describes one settled spin.
type Request struct {
	SpinID   string          `json:"spinId"`
	Player   string          `json:"player"`
	Bet      decimal.Decimal `json:"bet"`
	Win      decimal.Decimal `json:"win"`
	FreeSpin bool            `json:"freeSpin"`
}

// Net is the player's balance change: the win, less the bet unless the spin
// was free.
func (r Request) Net() decimal.Decimal {
	if r.FreeSpin {
		return r.Win
	}
	return r.Win.Sub(r.Bet)
}

// Receipt identifies a completed settlement.
type Receipt struct {
	Ref       string    `json:"ref"`
	Mode      string    `json:"mode"`
	SettledAt time.Time `json:"settledAt"`
}

// Settler settles spins.
type Settler interface {
	Settle(ctx context.Context, req Request) (Receipt, error)
	Mode() string
}

// Simulated settles in process and only issues a receipt.
type Simulated struct{}

func (Simulated) Mode() string { return ModeSimulated }

func (Simulated) Settle(ctx context.Context, req Request) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if req.SpinID == "" {
		return Receipt{}, fmt.Errorf("settlement: spin id is required")
	}
	return Receipt{
		Ref:       "sim-" + uuid.New().String(),
		Mode:      ModeSimulated,
		SettledAt: time.Now().UTC(),
	}, nil
}

// New returns the settler for mode. An empty mode is simulated.
func New(mode string, cfg Config) (Settler, error) {
	switch mode {
	case "", ModeSimulated:
		return Simulated{}, nil
	case ModeOnChain:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("settlement: onchain mode needs an endpoint")
		}
		return NewOnChain(cfg), nil
	default:
		return nil, fmt.Errorf("settlement: unknown mode %q", mode)
	}
}
