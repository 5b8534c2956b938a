package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/pf-slots/internal/auth"
	"github.com/MJE43/pf-slots/internal/engine"
	"github.com/MJE43/pf-slots/internal/scan"
	"github.com/MJE43/pf-slots/internal/seeds"
	"github.com/MJE43/pf-slots/internal/slots"
	"github.com/MJE43/pf-slots/internal/spin"
	"github.com/MJE43/pf-slots/internal/store"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

var errServiceUnavailable = errors.New("not configured")

func errUnavailable(component string) error {
	return fmt.Errorf("%s: %w", component, errServiceUnavailable)
}

// classify maps a domain error to a response status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, ErrTypeUnauthorized
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest, ErrTypeInvalidSeed
	case errors.Is(err, slots.ErrInvalidBet):
		return http.StatusBadRequest, ErrTypeInvalidBet
	case errors.Is(err, seeds.ErrInvalidPlayer):
		return http.StatusBadRequest, ErrTypeValidation
	case errors.Is(err, scan.ErrGameNotFound):
		return http.StatusBadRequest, ErrTypeGameNotFound
	case errors.Is(err, scan.ErrInvalidRange), errors.Is(err, scan.ErrInvalidTarget):
		return http.StatusBadRequest, ErrTypeInvalidParams
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, spin.ErrNoFreeSpins):
		return http.StatusConflict, ErrTypeNoFreeSpins
	case errors.Is(err, seeds.ErrNonceReuse), errors.Is(err, seeds.ErrSeedRevealed):
		return http.StatusConflict, ErrTypeNonceReuse
	case errors.Is(err, slots.ErrConfiguration):
		return http.StatusInternalServerError, ErrTypeGameEvaluation
	case errors.Is(err, errServiceUnavailable):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, ErrTypeTimeout
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger         *log.Logger
	securityLogger *SecurityLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger, securityLogger *SecurityLogger) *ErrorHandler {
	return &ErrorHandler{
		logger:         logger,
		securityLogger: securityLogger,
	}
}

// HandleError classifies err and writes the matching response. Internal
// errors are reported without their message.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var engineErr EngineError
	if errors.As(err, &engineErr) {
		eh.logError(r, engineErr, http.StatusBadRequest)
		eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
		return
	}

	status, errType := classify(err)
	b := NewError(errType, err.Error()).
		WithRequestID(requestID).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method)
	if status == http.StatusInternalServerError {
		eh.logger.Printf("internal_error request_id=%s err=%v", requestID, err)
		b = NewError(errType, "Internal server error").
			WithRequestID(requestID).
			WithContext("path", r.URL.Path)
	}
	engineErr = b.Build()

	if errType == ErrTypeUnauthorized || errType == ErrTypeNonceReuse {
		eh.securityLogger.LogSecurityEvent(requestID, errType, err.Error(),
			map[string]interface{}{"path": r.URL.Path}, r.RemoteAddr)
	}

	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	requestID := middleware.GetReqID(r.Context())

	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.securityLogger.LogSecurityEvent(
		requestID,
		"validation_failure",
		message,
		map[string]interface{}{
			"field": field,
			"path":  r.URL.Path,
		},
		r.RemoteAddr,
	)

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// HandleTimeoutError handles timeout-specific errors
func (eh *ErrorHandler) HandleTimeoutError(w http.ResponseWriter, r *http.Request, operation string, timeoutMs int) {
	requestID := middleware.GetReqID(r.Context())

	engineErr := NewError(ErrTypeTimeout, fmt.Sprintf("Operation timed out: %s", operation)).
		WithRequestID(requestID).
		WithContext("operation", operation).
		WithContext("timeout_ms", timeoutMs).
		WithContext("path", r.URL.Path).
		Build()

	eh.logError(r, engineErr, http.StatusRequestTimeout)
	eh.writeErrorResponse(w, http.StatusRequestTimeout, engineErr)
}

func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)

	logLevel := "ERROR"
	if category == CategoryValidation || category == CategoryAuth || status < 500 {
		logLevel = "WARN"
	}

	fields := make(map[string]interface{}, len(engineErr.Context))
	for key, value := range engineErr.Context {
		// raw seeds never reach the log
		if key == "server_seed" || key == "client_seed" {
			continue
		}
		fields[key] = value
	}

	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s path=%s message=%q context=%+v",
		logLevel, engineErr.Type, category, status, engineErr.RequestID, r.URL.Path, engineErr.Message, fields,
	)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Printf("error_encode_failed request_id=%s err=%v", engineErr.RequestID, err)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr,
				)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
