package autoplay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/slots"
)

func testConfig(maxSpins int) Config {
	return Config{
		Pair: engine.SeedPair{
			ServerSeed: "autoplay-server-seed",
			ClientSeed: "autoplay-client-seed",
		},
		Balance:     decimal.NewFromInt(1000),
		MaxSpins:    maxSpins,
		CallTimeout: 500 * time.Millisecond,
	}
}

const flat = `
nextbet = 10
dobet = function() {
	nextbet = 10
}
`

func TestFlatBettingIsReproducible(t *testing.T) {
	game := slots.MustDefaultGame()
	ctx := context.Background()

	a, err := Run(ctx, game, flat, testConfig(60))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(ctx, game, flat, testConfig(60))
	if err != nil {
		t.Fatal(err)
	}
	if a.StopReason != StopMaxSpins || a.Stats.Spins != 60 {
		t.Fatalf("stop = %s after %d spins", a.StopReason, a.Stats.Spins)
	}
	if !a.Stats.Balance.Equal(b.Stats.Balance) || a.RTP != b.RTP {
		t.Error("same seeds produced different sessions")
	}
	if want := a.Stats.StartBal.Add(a.Stats.Profit); !a.Stats.Balance.Equal(want) {
		t.Errorf("balance %s != start + profit %s", a.Stats.Balance, want)
	}
	if a.NextNonce != 60*game.DrawsPerSpin() {
		t.Errorf("NextNonce = %d", a.NextNonce)
	}
}

func TestSpinsMatchEngine(t *testing.T) {
	game := slots.MustDefaultGame()
	cfg := testConfig(20)
	report, err := Run(context.Background(), game, flat, cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i, rec := range report.Spins {
		if rec.Nonce != uint64(i)*game.DrawsPerSpin() {
			t.Fatalf("spin %d nonce = %d", i, rec.Nonce)
		}
		out, err := game.Spin(cfg.Pair.WithNonce(rec.Nonce), rec.Bet)
		if err != nil {
			t.Fatal(err)
		}
		if !out.TotalWin.Equal(rec.Win) {
			t.Errorf("spin %d win = %s, engine says %s", i, rec.Win, out.TotalWin)
		}
	}
}

func TestStopReasons(t *testing.T) {
	tests := []struct {
		name      string
		script    string
		balance   int64
		wantStop  string
		wantSpins int
		wantErr   error
	}{
		{
			name:      "script stop",
			script:    `nextbet = 5; dobet = function() { if (bets >= 3) stop() }`,
			balance:   1000,
			wantStop:  StopScript,
			wantSpins: 3,
		},
		{
			name:     "insufficient balance",
			script:   `nextbet = 100; dobet = function() {}`,
			balance:  10,
			wantStop: StopBalance,
		},
		{
			name:     "bet below minimum",
			script:   `nextbet = 1; dobet = function() {}`,
			balance:  1000,
			wantStop: StopInvalidBet,
			wantErr:  slots.ErrInvalidBet,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(100)
			cfg.Balance = decimal.NewFromInt(tt.balance)
			report, err := Run(context.Background(), slots.MustDefaultGame(), tt.script, cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if report.StopReason != tt.wantStop || report.Stats.Spins != tt.wantSpins {
				t.Errorf("stop = %s after %d spins, want %s after %d",
					report.StopReason, report.Stats.Spins, tt.wantStop, tt.wantSpins)
			}
		})
	}
}

func TestScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"syntax", `dobet = function( {`, "script"},
		{"no dobet", `nextbet = 5`, "dobet() function is not defined"},
		{"throws", `dobet = function() { throw new Error("boom") }`, "boom"},
		{"no require", `if (typeof require !== "undefined") { throw new Error("require exposed") }; dobet = function() { require("fs") }`, "dobet()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), slots.MustDefaultGame(), tt.script, testConfig(5))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestRunawayScriptIsInterrupted(t *testing.T) {
	cfg := testConfig(5)
	cfg.CallTimeout = 50 * time.Millisecond
	_, err := Run(context.Background(), slots.MustDefaultGame(), `dobet = function() { while (true) {} }`, cfg)
	if !errors.Is(err, ErrScriptTimeout) {
		t.Errorf("err = %v, want ErrScriptTimeout", err)
	}
}

func TestLogsAndCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := Run(ctx, slots.MustDefaultGame(), `log("hello", 1); dobet = function() {}`, testConfig(5))
	if err != nil {
		t.Fatal(err)
	}
	if report.StopReason != StopCancelled || report.Stats.Spins != 0 {
		t.Errorf("stop = %s after %d spins", report.StopReason, report.Stats.Spins)
	}
	if len(report.Logs) != 1 || report.Logs[0].Message != "hello 1" {
		t.Errorf("logs = %+v", report.Logs)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfg := testConfig(5)
	cfg.Pair.ServerSeed = ""
	if _, err := Run(context.Background(), slots.MustDefaultGame(), flat, cfg); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	cfg = testConfig(5)
	cfg.Balance = decimal.Zero
	if _, err := Run(context.Background(), slots.MustDefaultGame(), flat, cfg); !errors.Is(err, engine.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}
