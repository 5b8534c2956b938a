// Package api serves the slot engine over HTTP: public audit endpoints,
// authenticated player routes and the live outcome feed.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MJE43/pf-slots/internal/auth"
	"github.com/MJE43/pf-slots/internal/games"
	"github.com/MJE43/pf-slots/internal/live"
	"github.com/MJE43/pf-slots/internal/scan"
	"github.com/MJE43/pf-slots/internal/slots"
	"github.com/MJE43/pf-slots/internal/spin"
	"github.com/MJE43/pf-slots/internal/store"
	"github.com/MJE43/pf-slots/internal/verify"
)

// Pinger reports database reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the server routes to. Game is required; any other
// nil dependency makes the routes it backs report unavailability.
type Deps struct {
	Game     *slots.Game
	Spins    *spin.Service
	Verifier *verify.Service
	Registry *games.Registry
	Scanner  *scan.Scanner
	Runs     store.Runs
	DB       Pinger
	Hub      *live.Hub
	Issuer   *auth.Issuer

	CORSOrigins    []string
	RequestTimeout time.Duration
	LogOutput      io.Writer
}

// Server handles HTTP requests
type Server struct {
	deps           Deps
	errorHandler   *ErrorHandler
	logger         *log.Logger
	securityLogger *SecurityLogger
	ops            *opMonitor
	startTime      time.Time
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	out := deps.LogOutput
	if out == nil {
		out = os.Stdout
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 60 * time.Second
	}
	logger := log.New(out, "[API] ", log.LstdFlags|log.Lshortfile)
	securityLogger := NewSecurityLogger(out)

	return &Server{
		deps:           deps,
		errorHandler:   NewErrorHandler(logger, securityLogger),
		logger:         logger,
		securityLogger: securityLogger,
		ops:            newOpMonitor(),
		startTime:      time.Now(),
	}
}

// SecurityLogger exposes the audit logger for startup and shutdown lines.
func (s *Server) SecurityLogger() *SecurityLogger { return s.securityLogger }

// Uptime is the time since NewServer.
func (s *Server) Uptime() time.Duration { return time.Since(s.startTime) }

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.SecurityLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Engine-Version", "X-Error-Type", "X-Error-Category", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.deps.RequestTimeout))
		r.Get("/health", s.handleHealthCheck)
		r.Get("/health/ready", s.handleReadiness)
		r.Get("/health/live", s.handleLiveness)
		r.Get("/metrics", s.handleMetrics)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The feed outlives any request timeout.
		r.With(s.Authenticate).Get("/ws", s.handleLive)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.deps.RequestTimeout))

			r.Get("/version", s.handleVersion)
			r.Post("/verify", s.handleVerify)
			r.Post("/verify/grid", s.handleVerifyGrid)
			r.Post("/seed/hash", s.handleSeedHash)
			r.Get("/paytable", s.handlePaytable)
			r.Post("/scan", s.handleScan)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Get("/runs/{id}/hits", s.handleRunHits)
			r.Post("/auth/token", s.handleToken)

			r.Group(func(r chi.Router) {
				r.Use(s.Authenticate)
				r.Post("/spin", s.handleSpin)
				r.Get("/seeds", s.handleSeeds)
				r.Put("/seeds/client", s.handleSetClientSeed)
				r.Post("/seeds/rotate", s.handleRotate)
				r.Get("/history", s.handleHistory)
				r.Get("/history/{id}", s.handleGetSpin)
			})
		})
	})

	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.deps.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.deps.CORSOrigins
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("response_encode_failed status=%d err=%v", status, err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return false
	}
	return true
}
