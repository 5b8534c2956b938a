package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const pingTimeout = 2 * time.Second

// HealthCheckResponse represents a comprehensive health check response
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

// SystemInfo contains system information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	GOMAXPROCS    int    `json:"gomaxprocs"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	MemoryTotal   uint64 `json:"memory_total_bytes"`
	MemorySys     uint64 `json:"memory_sys_bytes"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// MetricsResponse represents basic performance metrics
type MetricsResponse struct {
	Timestamp     string               `json:"timestamp"`
	EngineVersion string               `json:"engine_version"`
	Uptime        string               `json:"uptime"`
	System        SystemInfo           `json:"system"`
	LiveClients   int                  `json:"live_clients"`
	Operations    map[string]OpMetrics `json:"operations"`
	RequestID     string               `json:"request_id,omitempty"`
}

// OpMetrics counts requests to one route.
type OpMetrics struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	ErrorRequests   uint64  `json:"error_requests"`
	AvgDurationMs   float64 `json:"avg_duration_ms"`
	LastRequest     string  `json:"last_request,omitempty"`

	totalDuration time.Duration
}

// opMonitor aggregates per-route request metrics.
type opMonitor struct {
	mu  sync.Mutex
	ops map[string]*OpMetrics
}

func newOpMonitor() *opMonitor {
	return &opMonitor{ops: make(map[string]*OpMetrics)}
}

func (m *opMonitor) record(op string, status int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	om, ok := m.ops[op]
	if !ok {
		om = &OpMetrics{}
		m.ops[op] = om
	}
	om.TotalRequests++
	if status >= 400 {
		om.ErrorRequests++
	} else {
		om.SuccessRequests++
	}
	om.totalDuration += d
	om.AvgDurationMs = float64(om.totalDuration.Microseconds()) / 1000 / float64(om.TotalRequests)
	om.LastRequest = time.Now().UTC().Format(time.RFC3339)
}

func (m *opMonitor) snapshot() map[string]OpMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]OpMetrics, len(m.ops))
	for k, v := range m.ops {
		out[k] = *v
	}
	return out
}

// handleHealthCheck provides comprehensive health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	start := time.Now()

	checks := map[string]HealthCheck{
		"game":     s.checkGameHealth(),
		"database": s.checkDatabaseHealth(r.Context()),
		"scanner":  s.checkScannerHealth(),
	}

	overallStatus := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			overallStatus = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && overallStatus == HealthStatusHealthy:
			overallStatus = HealthStatusDegraded
		}
	}

	response := HealthCheckResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        s.Uptime().String(),
		Checks:        checks,
		System:        s.getSystemInfo(),
		RequestID:     requestID,
	}

	// degraded still answers 200
	statusCode := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	s.securityLogger.LogAuditEvent(
		requestID,
		"health_check",
		"system",
		string(overallStatus),
		map[string]interface{}{
			"duration":    time.Since(start),
			"checks":      len(checks),
			"status_code": statusCode,
		},
	)

	s.writeJSON(w, statusCode, response)
}

// handleMetrics reports per-route counters gathered by the logging middleware.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	systemInfo := s.getSystemInfo()

	clients := 0
	if s.deps.Hub != nil {
		clients = s.deps.Hub.Clients()
	}

	response := MetricsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		Uptime:        s.Uptime().String(),
		System:        systemInfo,
		LiveClients:   clients,
		Operations:    s.ops.snapshot(),
		RequestID:     requestID,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleReadiness is ready once the game is loaded and the database answers.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	ready := true
	message := "Ready"
	if s.deps.Game == nil {
		ready, message = false, "Game not configured"
	} else if db := s.checkDatabaseHealth(r.Context()); db.Status == HealthStatusUnhealthy {
		ready, message = false, db.Message
	}

	response := map[string]interface{}{
		"ready":          ready,
		"message":        message,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"request_id":     requestID,
	}

	statusCode := http.StatusOK
	outcome := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		outcome = "not_ready"
	}
	s.securityLogger.LogAuditEvent(requestID, "readiness_check", "system", outcome,
		map[string]interface{}{"message": message})

	s.writeJSON(w, statusCode, response)
}

// handleLiveness answers whenever the process is serving.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alive":          true,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"engine_version": EngineVersion,
		"uptime":         s.Uptime().String(),
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkGameHealth() HealthCheck {
	start := time.Now()
	status := HealthStatusHealthy
	var message string

	switch g := s.deps.Game; {
	case g == nil:
		status, message = HealthStatusUnhealthy, "Game not configured"
	case len(g.Paylines()) == 0:
		status, message = HealthStatusDegraded, "No active paylines"
	default:
		message = fmt.Sprintf("%d symbols, %d active paylines, %s draws",
			g.Table().Len(), len(g.Paylines()), g.Commitment().Hasher().Name())
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func (s *Server) checkDatabaseHealth(ctx context.Context) HealthCheck {
	start := time.Now()
	status := HealthStatusHealthy
	message := "Database connection healthy"

	if s.deps.DB == nil {
		status, message = HealthStatusDegraded, "Database not configured"
	} else {
		ctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.deps.DB.Ping(ctx); err != nil {
			status, message = HealthStatusUnhealthy, "Database ping failed: "+err.Error()
		}
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func (s *Server) checkScannerHealth() HealthCheck {
	start := time.Now()
	status := HealthStatusHealthy
	message := "Scanner healthy"

	if s.deps.Scanner == nil {
		status, message = HealthStatusDegraded, "Scanner not initialized"
	}

	return HealthCheck{
		Status:      status,
		Message:     message,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

func (s *Server) getSystemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		MemoryAlloc:   m.Alloc,
		MemoryTotal:   m.TotalAlloc,
		MemorySys:     m.Sys,
		GCCycles:      m.NumGC,
	}
}
