package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/pf-slots/internal/auth"
)

// SecurityLoggingMiddleware logs requests without exposing sensitive data
func (s *Server) SecurityLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		s.logger.Printf(
			"request_start method=%s path=%s request_id=%s remote_addr=%s user_agent=%q engine_version=%s",
			r.Method,
			r.URL.Path,
			requestID,
			r.RemoteAddr,
			r.UserAgent(),
			EngineVersion,
		)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		s.ops.record(r.Method+" "+pattern, ww.Status(), duration)

		s.logger.Printf(
			"request_completed method=%s path=%s status=%d duration=%v request_id=%s bytes_written=%d engine_version=%s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			duration,
			requestID,
			ww.BytesWritten(),
			EngineVersion,
		)
	})
}

// Authenticate requires a bearer token and puts its player on the context.
// Websocket clients may pass the token as ?token= since browsers cannot set
// headers on the upgrade request.
func (s *Server) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Issuer == nil {
			s.errorHandler.HandleError(w, r, errUnavailable("auth"))
			return
		}
		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			s.errorHandler.HandleError(w, r, auth.ErrMissingToken)
			return
		}
		player, err := s.deps.Issuer.Verify(token)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPlayer(r.Context(), player)))
	})
}
