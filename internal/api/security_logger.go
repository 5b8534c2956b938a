package api

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/pf-slots/internal/games"
	"github.com/MJE43/pf-slots/internal/scan"
)

// SecurityLogger writes audit lines in which seeds only ever appear hashed.
type SecurityLogger struct {
	logger *log.Logger
}

// NewSecurityLogger creates a security logger writing to out.
func NewSecurityLogger(out io.Writer) *SecurityLogger {
	return &SecurityLogger{
		logger: log.New(out, "[SECURITY] ", log.LstdFlags|log.LUTC),
	}
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// LogScanOperation records a nonce-range scan.
func (sl *SecurityLogger) LogScanOperation(requestID string, req scan.ScanRequest, result *scan.ScanResult) {
	sl.logger.Printf(
		"scan_operation request_id=%s game=%s server_hash=%s client_hash=%s nonce_range=%d-%d target_op=%s target_val=%f limit=%d hits=%d evaluated=%d rtp=%.6f timed_out=%t params=%+v engine_version=%s timestamp=%s",
		requestID,
		req.Game,
		hashSeed(req.Seeds.Server),
		hashSeed(req.Seeds.Client),
		req.NonceStart,
		req.NonceEnd,
		req.TargetOp,
		req.TargetVal,
		req.Limit,
		result.Summary.HitsFound,
		result.Summary.TotalEvaluated,
		result.Summary.RTP,
		result.Summary.TimedOut,
		sl.sanitizeParams(req.Params),
		EngineVersion,
		now(),
	)
}

// LogVerifyOperation records an audit of a revealed seed.
func (sl *SecurityLogger) LogVerifyOperation(requestID, serverSeed, clientSeed string, nonce uint64, hashValid bool, gridValid *bool) {
	grid := "unchecked"
	if gridValid != nil {
		grid = fmt.Sprintf("%t", *gridValid)
	}
	sl.logger.Printf(
		"verify_operation request_id=%s server_hash=%s client_hash=%s nonce=%d hash_valid=%t grid_valid=%s engine_version=%s timestamp=%s",
		requestID,
		hashSeed(serverSeed),
		hashSeed(clientSeed),
		nonce,
		hashValid,
		grid,
		EngineVersion,
		now(),
	)
}

// LogSeedHashOperation logs seed hashing operations (only the hash, never the raw seed)
func (sl *SecurityLogger) LogSeedHashOperation(requestID, serverSeed, resultHash string) {
	sl.logger.Printf(
		"seed_hash_operation request_id=%s input_hash=%s result_hash=%s engine_version=%s timestamp=%s",
		requestID,
		hashSeed(serverSeed),
		resultHash,
		EngineVersion,
		now(),
	)
}

// LogSpinOperation records a settled spin against its committed hash.
func (sl *SecurityLogger) LogSpinOperation(requestID, player, serverSeedHash string, nonce uint64, bet, win decimal.Decimal, jackpot bool) {
	sl.logger.Printf(
		"spin_operation request_id=%s player=%s seed=%s nonce=%d bet=%s win=%s jackpot=%t engine_version=%s timestamp=%s",
		requestID,
		player,
		shortHash(serverSeedHash),
		nonce,
		bet.String(),
		win.String(),
		jackpot,
		EngineVersion,
		now(),
	)
}

// LogSecurityEvent logs security-related events (failed validations, rejected tokens)
func (sl *SecurityLogger) LogSecurityEvent(requestID, eventType, description string, context map[string]interface{}, remoteAddr string) {
	sl.logger.Printf(
		"security_event request_id=%s type=%s description=%q context=%+v remote_addr=%s engine_version=%s timestamp=%s",
		requestID,
		eventType,
		description,
		sl.sanitizeContext(context),
		remoteAddr,
		EngineVersion,
		now(),
	)
}

// LogPerformanceMetrics logs performance-related metrics for monitoring
func (sl *SecurityLogger) LogPerformanceMetrics(requestID, operation string, duration time.Duration, itemsProcessed uint64, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	sl.logger.Printf(
		"performance_metrics request_id=%s operation=%s duration=%v items_processed=%d status=%s engine_version=%s timestamp=%s",
		requestID,
		operation,
		duration,
		itemsProcessed,
		status,
		EngineVersion,
		now(),
	)
}

// LogAuditEvent logs audit events for compliance and debugging
func (sl *SecurityLogger) LogAuditEvent(requestID, action, resource, outcome string, details map[string]interface{}) {
	sl.logger.Printf(
		"audit_event request_id=%s action=%s resource=%s outcome=%s details=%+v engine_version=%s timestamp=%s",
		requestID,
		action,
		resource,
		outcome,
		sl.sanitizeContext(details),
		EngineVersion,
		now(),
	)
}

// LogSystemStartup logs system startup information
func (sl *SecurityLogger) LogSystemStartup(addr string, config map[string]interface{}) {
	sl.logger.Printf(
		"system_startup addr=%s config=%+v engine_version=%s git_commit=%s build_time=%s timestamp=%s",
		addr,
		sl.sanitizeContext(config),
		EngineVersion,
		GitCommit,
		BuildTime,
		now(),
	)
}

// LogSystemShutdown logs system shutdown information
func (sl *SecurityLogger) LogSystemShutdown(reason string, uptime time.Duration) {
	sl.logger.Printf(
		"system_shutdown reason=%s uptime=%v engine_version=%s timestamp=%s",
		reason,
		uptime,
		EngineVersion,
		now(),
	)
}

// hashSeed returns the first 16 hex chars of the seed's SHA-256.
func hashSeed(seed string) string {
	if seed == "" {
		return "empty"
	}
	hash := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(hash[:])[:16]
}

// shortHash trims an already-public commitment hash.
func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}

func (sl *SecurityLogger) sanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for key, value := range params {
		switch key {
		case "server_seed", "serverSeed", "server", "client_seed", "clientSeed", "client":
			if strVal, ok := value.(string); ok {
				sanitized[key+"_hash"] = hashSeed(strVal)
			} else {
				sanitized[key+"_hash"] = "non_string_value"
			}
		case "secret", "password", "token", "api_key":
			sanitized[key] = "[REDACTED]"
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}

func (sl *SecurityLogger) sanitizeContext(context map[string]interface{}) map[string]interface{} {
	if context == nil {
		return nil
	}

	sanitized := make(map[string]interface{}, len(context))
	for key, value := range context {
		switch key {
		case "server_seed", "serverSeed", "server", "client_seed", "clientSeed", "client":
			if strVal, ok := value.(string); ok {
				sanitized[key+"_hash"] = hashSeed(strVal)
			} else {
				sanitized[key+"_hash"] = fmt.Sprintf("non_string_value_%T", value)
			}
		case "secret", "password", "token", "api_key", "authorization", "signing_key":
			sanitized[key] = "[REDACTED]"
		case "seeds":
			if s, ok := value.(games.Seeds); ok {
				sanitized["server_seed_hash"] = hashSeed(s.Server)
				sanitized["client_seed_hash"] = hashSeed(s.Client)
			} else {
				sanitized[key] = "[SEEDS_OBJECT]"
			}
		default:
			sanitized[key] = value
		}
	}
	return sanitized
}
