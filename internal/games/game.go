package games

import (
	"sort"
	"sync"
)

// Seeds identifies the seed pair a nonce range is evaluated under.
type Seeds struct {
	Server string `json:"server"`
	Client string `json:"client"`
}

// GameSpec describes a registered game.
type GameSpec struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MetricLabel string `json:"metric_label"`
}

// GameResult is the outcome of evaluating one nonce.
type GameResult struct {
	Metric      float64 `json:"metric"`
	MetricLabel string  `json:"metric_label"`
	Details     any     `json:"details,omitempty"`
}

// Game is a provably fair game that can be replayed at any nonce.
type Game interface {
	Spec() GameSpec

	// FloatCount is the number of draws one evaluation consumes. It is also
	// the nonce stride between consecutive rounds.
	FloatCount(params map[string]any) int

	Evaluate(seeds Seeds, nonce uint64, params map[string]any) (GameResult, error)

	// EvaluateWithFloats evaluates pre-computed draws for one round.
	EvaluateWithFloats(floats []float64, params map[string]any) (GameResult, error)
}

// Wagered is implemented by games whose metric is a multiple of the stake.
// BetAmount reports the stake for params so totals can be derived.
type Wagered interface {
	BetAmount(params map[string]any) (float64, error)
}

// Registry holds the games available to the scanner and the API.
type Registry struct {
	mu    sync.RWMutex
	games map[string]Game
}

// NewRegistry returns a registry holding games.
func NewRegistry(games ...Game) *Registry {
	r := &Registry{games: make(map[string]Game, len(games))}
	for _, g := range games {
		r.Register(g)
	}
	return r
}

// Register adds or replaces a game by its ID.
func (r *Registry) Register(game Game) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[game.Spec().ID] = game
}

// Get retrieves a game by ID.
func (r *Registry) Get(id string) (Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// List returns the registered specs ordered by ID.
func (r *Registry) List() []GameSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]GameSpec, 0, len(r.games))
	for _, g := range r.games {
		specs = append(specs, g.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].ID < specs[j].ID })
	return specs
}
