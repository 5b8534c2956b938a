package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MJE43/pf-slots/internal/scan"
)

const (
	maxNonceRange = 10_000_000
	maxHitLimit   = 100_000
	maxTimeoutMs  = 300_000
	maxPerPage    = 500
)

// FieldError names the request field a validation failure is about.
type FieldError struct {
	field   string
	message string
}

func (e *FieldError) Error() string { return e.message }

func invalid(field, format string, args ...any) *FieldError {
	return &FieldError{field: field, message: fmt.Sprintf(format, args...)}
}

// ValidateScanRequest checks the bounds the scanner itself does not enforce.
func ValidateScanRequest(req *scan.ScanRequest) *FieldError {
	if req.Game == "" {
		return invalid("game", "game is required")
	}
	if req.Seeds.Server == "" {
		return invalid("seeds.server", "server seed is required")
	}
	if req.Seeds.Client == "" {
		return invalid("seeds.client", "client seed is required")
	}
	if req.NonceEnd < req.NonceStart {
		return invalid("nonce_end", "nonce_end (%d) must be >= nonce_start (%d)", req.NonceEnd, req.NonceStart)
	}
	if req.NonceEnd-req.NonceStart > maxNonceRange {
		return invalid("nonce_end", "nonce range too large (max %d nonces)", maxNonceRange)
	}
	if req.TargetOp == "" {
		return invalid("target_op", "target_op is required")
	}
	if !req.TargetOp.Valid() {
		return invalid("target_op", "target_op must be one of: eq, gt, ge, lt, le, between, outside")
	}
	if (req.TargetOp == scan.OpBetween || req.TargetOp == scan.OpOutside) && req.TargetVal > req.TargetVal2 {
		return invalid("target_val2", "target_val must be <= target_val2 for '%s'", req.TargetOp)
	}
	if req.Limit < 0 || req.Limit > maxHitLimit {
		return invalid("limit", "limit must be between 0 and %d", maxHitLimit)
	}
	if req.TimeoutMs < 0 || req.TimeoutMs > maxTimeoutMs {
		return invalid("timeout_ms", "timeout_ms must be between 0 and %d", maxTimeoutMs)
	}
	if req.Tolerance < 0 {
		return invalid("tolerance", "tolerance must be >= 0")
	}
	return nil
}

// ValidateSeedHashRequest validates a seed hash request
func ValidateSeedHashRequest(req *SeedHashRequest) *FieldError {
	if req.ServerSeed == "" {
		return invalid("server_seed", "server_seed is required")
	}
	return nil
}

// ValidateVerifyRequest reports the first missing field.
func ValidateVerifyRequest(req *VerifyRequest) *FieldError {
	switch {
	case req.ServerSeed == nil:
		return invalid("serverSeed", "serverSeed is required")
	case req.ServerSeedHash == nil:
		return invalid("serverSeedHash", "serverSeedHash is required")
	case req.ClientSeed == nil:
		return invalid("clientSeed", "clientSeed is required")
	case req.Nonce == nil:
		return invalid("nonce", "nonce is required")
	}
	return nil
}

// pageParams reads ?page= and ?perPage=. Absent values are zero and left to
// the store's defaults.
func pageParams(r *http.Request) (int, int, *FieldError) {
	page, err := intQuery(r, "page")
	if err != nil {
		return 0, 0, err
	}
	perPage, err := intQuery(r, "perPage")
	if err != nil {
		return 0, 0, err
	}
	if perPage > maxPerPage {
		return 0, 0, invalid("perPage", "perPage must be <= %d", maxPerPage)
	}
	return page, perPage, nil
}

func intQuery(r *http.Request, key string) (int, *FieldError) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, invalid(key, "%s must be a non-negative integer", key)
	}
	return n, nil
}
