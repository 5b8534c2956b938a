package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/slots"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// History persists spins and the free-spin balance that spins award.
type History interface {
	SaveSpin(ctx context.Context, spin *Spin) error
	GetSpin(ctx context.Context, id string) (*Spin, error)
	ListSpins(ctx context.Context, query SpinsQuery) (*SpinsList, error)
	RevealSeed(ctx context.Context, serverSeedHash, serverSeed string) (int64, error)
	SetSettlementRef(ctx context.Context, spinID, ref string) error

	AddFreeSpins(ctx context.Context, player string, n int) (int, error)
	ConsumeFreeSpin(ctx context.Context, player string) (bool, error)
	FreeSpins(ctx context.Context, player string) (int, error)
}

// Runs persists nonce-range scans.
type Runs interface {
	SaveRun(ctx context.Context, run *Run, hits []Hit) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, page, perPage int) (*RunsList, error)
	GetRunHits(ctx context.Context, runID string, page, perPage int) (*HitsPage, error)
}

// Spin is one recorded spin. ServerSeed stays empty until the pair is rotated.
type Spin struct {
	ID             string          `json:"id"`
	Player         string          `json:"player"`
	ServerSeedHash string          `json:"server_seed_hash"`
	ServerSeed     string          `json:"server_seed,omitempty"`
	ClientSeed     string          `json:"client_seed"`
	Nonce          uint64          `json:"nonce"`
	Bet            decimal.Decimal `json:"bet"`
	Grid           slots.Grid      `json:"grid"`
	WinningLines   []int           `json:"winning_lines"`
	TotalWin       decimal.Decimal `json:"total_win"`
	Multiplier     int             `json:"multiplier"`
	Jackpot        bool            `json:"jackpot"`
	FreeSpins      int             `json:"free_spins_awarded"`
	FreeSpin       bool            `json:"free_spin"`
	SettlementRef  string          `json:"settlement_ref,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SpinsQuery selects a page of one player's spins, newest first.
type SpinsQuery struct {
	Player  string `json:"player"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// SpinsList is a page of spins.
type SpinsList struct {
	Spins      []Spin `json:"spins"`
	TotalCount int    `json:"totalCount"`
	Page       int    `json:"page"`
	PerPage    int    `json:"perPage"`
	TotalPages int    `json:"totalPages"`
}

// Run is a persisted scan.
type Run struct {
	ID             string    `json:"id"`
	Game           string    `json:"game"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	NonceStart     uint64    `json:"nonce_start"`
	NonceEnd       uint64    `json:"nonce_end"`
	ParamsJSON     string    `json:"params_json"`
	TargetOp       string    `json:"target_op"`
	TargetVal      float64   `json:"target_val"`
	HitLimit       int       `json:"hit_limit"`
	TimedOut       bool      `json:"timed_out"`
	HitCount       int       `json:"hit_count"`
	TotalEvaluated uint64    `json:"total_evaluated"`
	RTP            float64   `json:"rtp"`
	EngineVersion  string    `json:"engine_version"`
	CreatedAt      time.Time `json:"created_at"`
}

// Hit is one matching nonce of a run.
type Hit struct {
	ID     int64   `json:"id"`
	RunID  string  `json:"run_id"`
	Nonce  uint64  `json:"nonce"`
	Metric float64 `json:"metric"`
}

// HitWithDelta carries the nonce distance to the previous hit of the run.
type HitWithDelta struct {
	Hit
	DeltaNonce *uint64 `json:"delta_nonce,omitempty"`
}

// RunsList is a page of runs.
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// HitsPage is a page of hits.
type HitsPage struct {
	Hits       []HitWithDelta `json:"hits"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
}

func paginate(page, perPage, defaultPer int) (int, int, int) {
	if perPage <= 0 {
		perPage = defaultPer
	}
	if perPage > 500 {
		perPage = 500
	}
	if page <= 0 {
		page = 1
	}
	return page, perPage, (page - 1) * perPage
}

func totalPages(count, perPage int) int {
	return (count + perPage - 1) / perPage
}
