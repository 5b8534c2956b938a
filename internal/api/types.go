package api

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/games"
	"github.com/MJE43/pf-slots/internal/scan"
	"github.com/MJE43/pf-slots/internal/slots"
	"github.com/MJE43/pf-slots/internal/verify"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeInvalidSeed   = "invalid_seed"
	ErrTypeInvalidNonce  = "invalid_nonce"
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeInvalidBet    = "invalid_bet"
	ErrTypeValidation    = "validation_error"

	// Auth errors
	ErrTypeUnauthorized = "unauthorized"

	// Game-related errors
	ErrTypeGameNotFound   = "game_not_found"
	ErrTypeGameEvaluation = "game_evaluation_error"
	ErrTypeNoFreeSpins    = "no_free_spins"
	ErrTypeNonceReuse     = "nonce_reuse"
	ErrTypeNotFound       = "not_found"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidSeed, ErrTypeInvalidNonce, ErrTypeInvalidParams, ErrTypeInvalidBet, ErrTypeValidation:
		return CategoryValidation
	case ErrTypeUnauthorized:
		return CategoryAuth
	case ErrTypeGameNotFound, ErrTypeGameEvaluation, ErrTypeNoFreeSpins, ErrTypeNonceReuse, ErrTypeNotFound:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VerifyRequest is the auditor's commitment check. Pointer fields tell a
// missing field from an empty one.
type VerifyRequest struct {
	ServerSeed     *string `json:"serverSeed"`
	ServerSeedHash *string `json:"serverSeedHash"`
	ClientSeed     *string `json:"clientSeed"`
	Nonce          *uint64 `json:"nonce"`
}

// VerifyResponse is false, not an error, when the hash does not match.
type VerifyResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// GridVerifyResponse wraps a full audit.
type GridVerifyResponse struct {
	verify.Result
	EngineVersion string         `json:"engineVersion"`
	Echo          verify.Request `json:"echo"`
}

// ScanResponse represents the complete scan response
type ScanResponse struct {
	RunID         string           `json:"run_id,omitempty"`
	Hits          []scan.Hit       `json:"hits"`
	Summary       scan.Summary     `json:"summary"`
	EngineVersion string           `json:"engine_version"`
	Echo          scan.ScanRequest `json:"echo"`
}

// SeedHashRequest represents a seed hashing request
type SeedHashRequest struct {
	ServerSeed string `json:"server_seed"`
}

// SeedHashResponse represents a seed hashing response
type SeedHashResponse struct {
	Hash          string `json:"hash"`
	Algorithm     string `json:"algorithm"`
	EngineVersion string `json:"engine_version"`
}

// PaytableResponse publishes everything needed to recompute a spin.
type PaytableResponse struct {
	Symbols           []slots.Symbol   `json:"symbols"`
	Paylines          []slots.Payline  `json:"paylines"`
	MinBet            decimal.Decimal  `json:"min_bet"`
	MaxBet            decimal.Decimal  `json:"max_bet"`
	JackpotSymbol     string           `json:"jackpot_symbol"`
	JackpotMultiplier int64            `json:"jackpot_multiplier"`
	Reels             int              `json:"reels"`
	Rows              int              `json:"rows"`
	DrawsPerSpin      uint64           `json:"draws_per_spin"`
	Hash              string           `json:"hash"`
	Games             []games.GameSpec `json:"games"`
	EngineVersion     string           `json:"engine_version"`
}

// TokenRequest asks for a session for a wallet address.
type TokenRequest struct {
	Player string `json:"player"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Player    string `json:"player"`
}

// SpinRequest is the player's wager. The player comes from the token.
type SpinRequest struct {
	Bet         decimal.Decimal `json:"bet"`
	UseFreeSpin bool            `json:"useFreeSpin"`
}

// ClientSeedRequest replaces the active client seed.
type ClientSeedRequest struct {
	ClientSeed string `json:"clientSeed"`
}
