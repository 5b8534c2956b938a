package slots

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
)

// Config describes a complete slot game.
type Config struct {
	Symbols  []Symbol
	Paylines []Payline
	Rules    Rules
	Hasher   engine.Hasher
}

// DefaultConfig is the stock game: default symbols, the five active
// paylines, default rules and SHA-256.
func DefaultConfig() Config {
	return Config{
		Symbols:  DefaultSymbols(),
		Paylines: ActivePaylines(DefaultPaylines()),
		Rules:    DefaultRules(),
		Hasher:   engine.SHA256,
	}
}

// Game wires selection and resolution for one configuration. It is safe for
// concurrent use; nothing in it changes after construction.
type Game struct {
	table      *SymbolTable
	selector   *Selector
	resolver   *Resolver
	commitment engine.Commitment
	stream     engine.Stream
}

// NewGame validates cfg and builds the game.
func NewGame(cfg Config) (*Game, error) {
	table, err := NewSymbolTable(cfg.Symbols)
	if err != nil {
		return nil, err
	}
	stream := engine.NewStream(cfg.Hasher)
	sel, err := NewSelector(table, stream)
	if err != nil {
		return nil, err
	}
	res, err := NewResolver(table, cfg.Paylines, cfg.Rules)
	if err != nil {
		return nil, err
	}
	return &Game{
		table:      table,
		selector:   sel,
		resolver:   res,
		commitment: engine.NewCommitment(cfg.Hasher),
		stream:     stream,
	}, nil
}

// MustDefaultGame builds the stock game.
func MustDefaultGame() *Game {
	g, err := NewGame(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return g
}

// Spin validates the bet, then selects and resolves the grid for pair.
// Nothing is computed for a rejected bet.
func (g *Game) Spin(pair engine.SeedPair, bet decimal.Decimal) (*SpinOutcome, error) {
	if err := g.resolver.ValidateBet(bet); err != nil {
		return nil, err
	}
	if pair.ServerSeed == "" || pair.ClientSeed == "" {
		return nil, fmt.Errorf("slots: %w: server and client seeds are required", engine.ErrInvalidInput)
	}
	grid, err := g.SelectGrid(pair)
	if err != nil {
		return nil, err
	}
	return g.resolver.Resolve(grid, bet)
}

// SelectGrid produces the grid for pair without resolving it.
func (g *Game) SelectGrid(pair engine.SeedPair) (Grid, error) {
	rules := g.resolver.Rules()
	return g.selector.SelectGrid(pair, rules.Reels, rules.Rows)
}

// SpinFromDraws is Spin over draws the caller already computed for the pair,
// in scan order. Used by the nonce-range scanner.
func (g *Game) SpinFromDraws(draws []float64, bet decimal.Decimal) (*SpinOutcome, error) {
	if err := g.resolver.ValidateBet(bet); err != nil {
		return nil, err
	}
	rules := g.resolver.Rules()
	grid, err := g.selector.GridFromDraws(draws, rules.Reels, rules.Rows)
	if err != nil {
		return nil, err
	}
	return g.resolver.Resolve(grid, bet)
}

// Resolve evaluates an existing grid.
func (g *Game) Resolve(grid Grid, bet decimal.Decimal) (*SpinOutcome, error) {
	return g.resolver.Resolve(grid, bet)
}

// ValidateBet checks bet against the configured bounds.
func (g *Game) ValidateBet(bet decimal.Decimal) error {
	return g.resolver.ValidateBet(bet)
}

// DrawsPerSpin is the number of draws one spin consumes (reels × rows).
func (g *Game) DrawsPerSpin() uint64 {
	rules := g.resolver.Rules()
	return uint64(rules.Reels * rules.Rows)
}

func (g *Game) Table() *SymbolTable           { return g.table }
func (g *Game) Rules() Rules                  { return g.resolver.Rules() }
func (g *Game) Paylines() []Payline           { return g.resolver.Paylines() }
func (g *Game) Commitment() engine.Commitment { return g.commitment }
func (g *Game) Stream() engine.Stream         { return g.stream }
