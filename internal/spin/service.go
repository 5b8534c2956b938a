// Package spin runs a player's spin end to end: nonce reservation, outcome,
// history, settlement and the live feed.
package spin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/live"
	"github.com/MJE43/pf-slots/internal/seeds"
	"github.com/MJE43/pf-slots/internal/settlement"
	"github.com/MJE43/pf-slots/internal/slots"
	"github.com/MJE43/pf-slots/internal/store"
)

// ErrNoFreeSpins is returned when a free spin is requested with an empty balance.
var ErrNoFreeSpins = errors.New("no free spins available")

// Publisher receives outcome events. *live.Hub implements it.
type Publisher interface {
	Publish(ev live.Event)
}

// Request is one spin request.
type Request struct {
	Player      string          `json:"player"`
	Bet         decimal.Decimal `json:"bet"`
	UseFreeSpin bool            `json:"useFreeSpin"`
}

// Result is what the player gets back. The server seed is absent until the
// pair is rotated.
type Result struct {
	SpinID             string                `json:"spinId"`
	Seeds              engine.PublicSeedPair `json:"seeds"`
	Outcome            *slots.SpinOutcome    `json:"outcome"`
	FreeSpin           bool                  `json:"freeSpin"`
	FreeSpinsRemaining int                   `json:"freeSpinsRemaining"`
	Settlement         *settlement.Receipt   `json:"settlement,omitempty"`
}

// SeedState is a player's public seed view plus free-spin balance.
type SeedState struct {
	engine.PublicSeedPair
	FreeSpins int `json:"freeSpins"`
}

// Service wires the engine to persistence.
type Service struct {
	game      *slots.Game
	seeds     seeds.Store
	history   store.History
	settler   settlement.Settler
	publisher Publisher
	logger    *log.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithSettler replaces the simulated settler.
func WithSettler(s settlement.Settler) Option {
	return func(svc *Service) { svc.settler = s }
}

// WithPublisher sends outcomes to p.
func WithPublisher(p Publisher) Option {
	return func(svc *Service) { svc.publisher = p }
}

// WithLogger replaces the default "[SPIN] " logger.
func WithLogger(l *log.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// NewService creates a Service. The seed store must reserve nonces with a
// stride of game.DrawsPerSpin().
func NewService(game *slots.Game, seedStore seeds.Store, history store.History, opts ...Option) *Service {
	svc := &Service{
		game:    game,
		seeds:   seedStore,
		history: history,
		settler: settlement.Simulated{},
		logger:  log.New(log.Writer(), "[SPIN] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Game returns the engine the service spins.
func (s *Service) Game() *slots.Game { return s.game }

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

// Spin plays one round. A settlement failure is logged and leaves the spin
// recorded without a receipt. A consumed free spin is refunded only when the
// round fails before it is recorded.
func (s *Service) Spin(ctx context.Context, req Request) (*Result, error) {
	if err := seeds.CheckPlayer(req.Player); err != nil {
		return nil, err
	}
	if err := s.game.ValidateBet(req.Bet); err != nil {
		return nil, err
	}

	if req.UseFreeSpin {
		ok, err := s.history.ConsumeFreeSpin(ctx, req.Player)
		if err != nil {
			return nil, fmt.Errorf("spin: consume free spin: %w", err)
		}
		if !ok {
			return nil, ErrNoFreeSpins
		}
	}

	result, recorded, err := s.play(ctx, req)
	if err != nil {
		if req.UseFreeSpin && !recorded {
			if _, rerr := s.history.AddFreeSpins(ctx, req.Player, 1); rerr != nil {
				s.logger.Printf("free_spin_refund_failed player=%s err=%v", req.Player, rerr)
			}
		}
		return nil, err
	}
	return result, nil
}

// play reports whether the spin reached history, even when it then fails.
func (s *Service) play(ctx context.Context, req Request) (*Result, bool, error) {
	start := time.Now()

	res, err := s.seeds.Reserve(ctx, req.Player)
	if err != nil {
		return nil, false, fmt.Errorf("spin: reserve nonce: %w", err)
	}
	outcome, err := s.game.Spin(res.Pair, req.Bet)
	if err != nil {
		return nil, false, err
	}

	record := &store.Spin{
		ID:             uuid.New().String(),
		Player:         req.Player,
		ServerSeedHash: res.Pair.ServerSeedHash,
		ClientSeed:     res.Pair.ClientSeed,
		Nonce:          res.Nonce,
		Bet:            outcome.BetAmount,
		Grid:           outcome.Grid,
		WinningLines:   outcome.WinningPaylineIDs,
		TotalWin:       outcome.TotalWin,
		Multiplier:     outcome.MultiplierApplied,
		Jackpot:        outcome.IsJackpot,
		FreeSpins:      outcome.FreeSpinsAwarded,
		FreeSpin:       req.UseFreeSpin,
	}
	if err := s.history.SaveSpin(ctx, record); err != nil {
		return nil, false, fmt.Errorf("spin: record: %w", err)
	}

	var balance int
	if outcome.FreeSpinsAwarded > 0 {
		balance, err = s.history.AddFreeSpins(ctx, req.Player, outcome.FreeSpinsAwarded)
	} else {
		balance, err = s.history.FreeSpins(ctx, req.Player)
	}
	if err != nil {
		return nil, true, fmt.Errorf("spin: free spin balance: %w", err)
	}

	result := &Result{
		SpinID:             record.ID,
		Seeds:              res.Pair.Public(),
		Outcome:            outcome,
		FreeSpin:           req.UseFreeSpin,
		FreeSpinsRemaining: balance,
	}

	receipt, err := s.settler.Settle(ctx, settlement.Request{
		SpinID:   record.ID,
		Player:   req.Player,
		Bet:      outcome.BetAmount,
		Win:      outcome.TotalWin,
		FreeSpin: req.UseFreeSpin,
	})
	if err != nil {
		s.logger.Printf("settlement_failed spin=%s mode=%s err=%v", record.ID, s.settler.Mode(), err)
	} else {
		result.Settlement = &receipt
		if err := s.history.SetSettlementRef(ctx, record.ID, receipt.Ref); err != nil {
			s.logger.Printf("settlement_ref_failed spin=%s err=%v", record.ID, err)
		}
	}

	s.logger.Printf("spin player=%s seed=%s nonce=%d bet=%s win=%s multiplier=%d jackpot=%t free=%t took=%s",
		req.Player, shortHash(res.Pair.ServerSeedHash), res.Nonce, outcome.BetAmount, outcome.TotalWin,
		outcome.MultiplierApplied, outcome.IsJackpot, req.UseFreeSpin, time.Since(start))

	if s.publisher != nil {
		s.publisher.Publish(live.Event{Type: live.EventSpin, Player: req.Player, Data: result})
		if outcome.IsJackpot {
			s.publisher.Publish(live.Event{Type: live.EventJackpot, Data: map[string]any{
				"player":   req.Player,
				"totalWin": outcome.TotalWin,
				"spinId":   record.ID,
			}})
		}
	}
	return result, true, nil
}

// Seeds returns the player's active public pair and free-spin balance.
func (s *Service) Seeds(ctx context.Context, player string) (*SeedState, error) {
	pub, err := s.seeds.Current(ctx, player)
	if err != nil {
		return nil, err
	}
	balance, err := s.history.FreeSpins(ctx, player)
	if err != nil {
		return nil, fmt.Errorf("spin: free spin balance: %w", err)
	}
	return &SeedState{PublicSeedPair: pub, FreeSpins: balance}, nil
}

// SetClientSeed retires the active pair and starts a new one under clientSeed.
func (s *Service) SetClientSeed(ctx context.Context, player, clientSeed string) (*seeds.Revealed, error) {
	rev, err := s.seeds.SetClientSeed(ctx, player, clientSeed)
	if err != nil {
		return nil, err
	}
	return s.revealed(ctx, player, rev)
}

// Rotate retires the active pair and reveals its server seed.
func (s *Service) Rotate(ctx context.Context, player string) (*seeds.Revealed, error) {
	rev, err := s.seeds.Rotate(ctx, player)
	if err != nil {
		return nil, err
	}
	return s.revealed(ctx, player, rev)
}

func (s *Service) revealed(ctx context.Context, player string, rev seeds.Revealed) (*seeds.Revealed, error) {
	n, err := s.history.RevealSeed(ctx, rev.ServerSeedHash, rev.ServerSeed)
	if err != nil {
		return nil, fmt.Errorf("spin: reveal seed in history: %w", err)
	}
	s.logger.Printf("seed_rotated player=%s seed=%s next_nonce=%d spins_revealed=%d",
		player, shortHash(rev.ServerSeedHash), rev.NextNonce, n)
	if s.publisher != nil {
		s.publisher.Publish(live.Event{Type: live.EventRotate, Player: player, Data: rev})
	}
	return &rev, nil
}

// History returns a page of the player's spins.
func (s *Service) History(ctx context.Context, query store.SpinsQuery) (*store.SpinsList, error) {
	if err := seeds.CheckPlayer(query.Player); err != nil {
		return nil, err
	}
	return s.history.ListSpins(ctx, query)
}

// GetSpin returns one of the player's spins.
func (s *Service) GetSpin(ctx context.Context, player, id string) (*store.Spin, error) {
	spin, err := s.history.GetSpin(ctx, id)
	if err != nil {
		return nil, err
	}
	if spin.Player != player {
		return nil, store.ErrNotFound
	}
	return spin, nil
}
