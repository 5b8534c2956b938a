// Package autoplay simulates bet strategies offline. A user script decides
// the next bet after every spin; spins come from the deterministic engine, so
// a session is fully reproducible from its seeds.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/slots"
)

// Stop reasons.
const (
	StopScript       = "script"
	StopMaxSpins     = "max_spins"
	StopBalance      = "insufficient_balance"
	StopCancelled    = "cancelled"
	StopInvalidBet   = "invalid_bet"
	defaultMaxSpins  = 1000
	maxRecordedSpins = 10000
)

// Config is one simulated session.
type Config struct {
	// Pair supplies the seeds; Pair.Nonce is the first nonce used.
	Pair     engine.SeedPair
	Balance  decimal.Decimal
	MaxSpins int
	// CallTimeout bounds each script call. Defaults to one second.
	CallTimeout time.Duration
	MaxLogs     int
}

// SpinRecord is one simulated spin.
type SpinRecord struct {
	Nonce      uint64          `json:"nonce"`
	Bet        decimal.Decimal `json:"bet"`
	Win        decimal.Decimal `json:"win"`
	Multiplier int             `json:"multiplier"`
	Jackpot    bool            `json:"jackpot,omitempty"`
	FreeSpin   bool            `json:"freeSpin,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
}

// Report is a finished session.
type Report struct {
	Stats      *Statistics  `json:"stats"`
	RTP        float64      `json:"rtp"`
	StopReason string       `json:"stopReason"`
	NextNonce  uint64       `json:"nextNonce"`
	Spins      []SpinRecord `json:"spins"`
	Logs       []LogEntry   `json:"logs"`
}

// Run plays script against game until it stops. The script sees these
// globals before each dobet() call:
//
//	balance, nextbet, basebet, previousbet, win, lastwin, multiplier,
//	jackpot, freespins, usefreespins, bets, wins, losses, profit,
//	currentstreak, nonce
//
// and sets nextbet (and optionally usefreespins) for the following spin.
func Run(ctx context.Context, game *slots.Game, script string, cfg Config) (*Report, error) {
	if cfg.Pair.ServerSeed == "" || cfg.Pair.ClientSeed == "" {
		return nil, fmt.Errorf("autoplay: %w: server and client seeds are required", engine.ErrInvalidInput)
	}
	if !cfg.Balance.IsPositive() {
		return nil, fmt.Errorf("autoplay: %w: starting balance must be positive", engine.ErrInvalidInput)
	}
	if cfg.MaxSpins <= 0 {
		cfg.MaxSpins = defaultMaxSpins
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = time.Second
	}
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = 500
	}

	v := newVM(cfg.CallTimeout, cfg.MaxLogs)
	minBet, _ := game.Rules().MinBet.Float64()
	v.set("basebet", minBet)
	v.set("nextbet", minBet)
	v.set("usefreespins", true)
	v.set("balance", cfg.Balance.InexactFloat64())
	if err := v.execute(script); err != nil {
		return nil, err
	}

	stats := newStatistics(cfg.Balance)
	report := &Report{Stats: stats}
	nonce := cfg.Pair.Nonce
	freeSpins := 0
	var lastBet decimal.Decimal

	for {
		if err := ctx.Err(); err != nil {
			report.StopReason = StopCancelled
			break
		}
		if v.stopReason != "" {
			report.StopReason = StopScript
			break
		}
		if stats.Spins >= cfg.MaxSpins {
			report.StopReason = StopMaxSpins
			break
		}

		next, ok := v.float("nextbet")
		if !ok {
			return nil, fmt.Errorf("autoplay: nextbet is not set")
		}
		bet := decimal.NewFromFloat(next).Round(8)
		free := freeSpins > 0 && v.bool("usefreespins")
		if free && !lastBet.IsZero() {
			// Free spins replay the last paid stake.
			bet = lastBet
		}
		if err := game.ValidateBet(bet); err != nil {
			report.StopReason = StopInvalidBet
			report.finish(stats, nonce, v)
			return report, err
		}
		if !free && bet.GreaterThan(stats.Balance) {
			report.StopReason = StopBalance
			break
		}

		outcome, err := game.Spin(cfg.Pair.WithNonce(nonce), bet)
		if err != nil {
			return nil, err
		}
		if free {
			freeSpins--
		} else {
			lastBet = bet
		}
		freeSpins += outcome.FreeSpinsAwarded
		stats.record(bet, outcome.TotalWin, free, outcome.IsJackpot)

		if len(report.Spins) < maxRecordedSpins {
			report.Spins = append(report.Spins, SpinRecord{
				Nonce:      nonce,
				Bet:        bet,
				Win:        outcome.TotalWin,
				Multiplier: outcome.MultiplierApplied,
				Jackpot:    outcome.IsJackpot,
				FreeSpin:   free,
				Balance:    stats.Balance,
			})
		}
		nonce += game.DrawsPerSpin()

		v.spin = stats.Spins
		v.set("balance", stats.Balance.InexactFloat64())
		v.set("previousbet", bet.InexactFloat64())
		v.set("win", outcome.TotalWin.IsPositive())
		v.set("lastwin", outcome.TotalWin.InexactFloat64())
		v.set("multiplier", outcome.WinMultiple())
		v.set("jackpot", outcome.IsJackpot)
		v.set("freespins", freeSpins)
		v.set("bets", stats.Spins)
		v.set("wins", stats.Wins)
		v.set("losses", stats.Losses)
		v.set("profit", stats.Profit.InexactFloat64())
		v.set("currentstreak", stats.CurrentStreak)
		v.set("nonce", nonce)

		if err := v.callDobet(); err != nil {
			report.finish(stats, nonce, v)
			if errors.Is(err, ErrScriptTimeout) {
				report.StopReason = StopScript
			}
			return report, err
		}
	}

	report.finish(stats, nonce, v)
	return report, nil
}

func (r *Report) finish(stats *Statistics, nonce uint64, v *vm) {
	r.RTP = stats.RTP()
	r.NextNonce = nonce
	r.Logs = v.logs
}
