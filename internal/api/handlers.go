package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/pf-slots/internal/auth"
	"github.com/MJE43/pf-slots/internal/scan"
	"github.com/MJE43/pf-slots/internal/seeds"
	"github.com/MJE43/pf-slots/internal/spin"
	"github.com/MJE43/pf-slots/internal/store"
	"github.com/MJE43/pf-slots/internal/verify"
)

const defaultScanTimeoutMs = 60_000

// handleVerify checks a revealed seed against its commitment. Missing fields
// are a 400; a mismatch is a 200 with valid=false.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Verifier == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("verifier"))
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, VerifyResponse{Error: "invalid JSON format"})
		return
	}
	if ferr := ValidateVerifyRequest(&req); ferr != nil {
		s.securityLogger.LogSecurityEvent(requestID, "validation_failure", ferr.message,
			map[string]interface{}{"field": ferr.field, "path": r.URL.Path}, r.RemoteAddr)
		s.writeJSON(w, http.StatusBadRequest, VerifyResponse{Error: ferr.message})
		return
	}

	valid, err := s.deps.Verifier.VerifyCommitment(*req.ServerSeed, *req.ServerSeedHash)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, VerifyResponse{Error: err.Error()})
		return
	}

	s.securityLogger.LogVerifyOperation(requestID, *req.ServerSeed, *req.ClientSeed, *req.Nonce, valid, nil)

	resp := VerifyResponse{Valid: valid}
	if !valid {
		resp.Error = "server seed does not match the committed hash"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleVerifyGrid recomputes a spin and compares it with the grid the
// player was shown.
func (s *Server) handleVerifyGrid(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Verifier == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("verifier"))
		return
	}

	var req verify.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.Verifier.Verify(req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogVerifyOperation(requestID, req.ServerSeed, req.ClientSeed, req.Nonce, res.HashValid, res.GridValid)

	s.writeJSON(w, http.StatusOK, GridVerifyResponse{
		Result:        *res,
		EngineVersion: EngineVersion,
		Echo:          req,
	})
}

func (s *Server) handleSeedHash(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())

	var req SeedHashRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if ferr := ValidateSeedHashRequest(&req); ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.field, ferr.message)
		return
	}

	commitment := s.deps.Game.Commitment()
	hash, err := commitment.Commit(req.ServerSeed)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogSeedHashOperation(requestID, req.ServerSeed, hash)

	s.writeJSON(w, http.StatusOK, SeedHashResponse{
		Hash:          hash,
		Algorithm:     commitment.Hasher().Name(),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handlePaytable(w http.ResponseWriter, r *http.Request) {
	g := s.deps.Game
	rules := g.Rules()
	resp := PaytableResponse{
		Symbols:           g.Table().Symbols(),
		Paylines:          g.Paylines(),
		MinBet:            rules.MinBet,
		MaxBet:            rules.MaxBet,
		JackpotSymbol:     rules.JackpotSymbol,
		JackpotMultiplier: rules.JackpotMultiplier,
		Reels:             rules.Reels,
		Rows:              rules.Rows,
		DrawsPerSpin:      g.DrawsPerSpin(),
		Hash:              g.Commitment().Hasher().Name(),
		EngineVersion:     EngineVersion,
	}
	if s.deps.Registry != nil {
		resp.Games = s.deps.Registry.List()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleScan replays a nonce range and stores the run when a run store is
// configured.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Scanner == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("scanner"))
		return
	}

	var req scan.ScanRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if ferr := ValidateScanRequest(&req); ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.field, ferr.message)
		return
	}
	if req.TimeoutMs == 0 {
		req.TimeoutMs = defaultScanTimeoutMs
	}

	start := time.Now()
	result, err := s.deps.Scanner.Scan(r.Context(), req)
	if err != nil {
		s.securityLogger.LogPerformanceMetrics(requestID, "scan", time.Since(start), 0, false)
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogPerformanceMetrics(requestID, "scan", time.Since(start), result.Summary.TotalEvaluated, true)
	s.securityLogger.LogScanOperation(requestID, req, result)

	resp := ScanResponse{
		Hits:          result.Hits,
		Summary:       result.Summary,
		EngineVersion: result.EngineVersion,
		Echo:          req,
	}
	if s.deps.Runs != nil {
		run, err := s.saveRun(r, req, result)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		resp.RunID = run.ID
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// saveRun persists the scan. Only the hash of the server seed is stored.
func (s *Server) saveRun(r *http.Request, req scan.ScanRequest, result *scan.ScanResult) (*store.Run, error) {
	hash, err := s.deps.Game.Commitment().Commit(req.Seeds.Server)
	if err != nil {
		return nil, err
	}
	params := []byte("{}")
	if req.Params != nil {
		if params, err = json.Marshal(req.Params); err != nil {
			return nil, err
		}
	}

	run := &store.Run{
		Game:           req.Game,
		ServerSeedHash: hash,
		ClientSeed:     req.Seeds.Client,
		NonceStart:     req.NonceStart,
		NonceEnd:       req.NonceEnd,
		ParamsJSON:     string(params),
		TargetOp:       string(req.TargetOp),
		TargetVal:      req.TargetVal,
		HitLimit:       req.Limit,
		TimedOut:       result.Summary.TimedOut,
		HitCount:       len(result.Hits),
		TotalEvaluated: result.Summary.TotalEvaluated,
		RTP:            result.Summary.RTP,
		EngineVersion:  result.EngineVersion,
	}
	hits := make([]store.Hit, len(result.Hits))
	for i, h := range result.Hits {
		hits[i] = store.Hit{Nonce: h.Nonce, Metric: h.Metric}
	}
	if err := s.deps.Runs.SaveRun(r.Context(), run, hits); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("runs"))
		return
	}
	page, perPage, ferr := pageParams(r)
	if ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.field, ferr.message)
		return
	}
	list, err := s.deps.Runs.ListRuns(r.Context(), page, perPage)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("runs"))
		return
	}
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunHits(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("runs"))
		return
	}
	page, perPage, ferr := pageParams(r)
	if ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.field, ferr.message)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Runs.GetRun(r.Context(), id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	hits, err := s.deps.Runs.GetRunHits(r.Context(), id, page, perPage)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hits)
}

// handleToken opens a session for a wallet address.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Issuer == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("auth"))
		return
	}

	var req TokenRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := seeds.CheckPlayer(req.Player); err != nil {
		s.errorHandler.HandleValidationError(w, r, "player", "player is required")
		return
	}

	token, expires, err := s.deps.Issuer.Issue(req.Player)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogAuditEvent(requestID, "token_issued", "session", "success",
		map[string]interface{}{"player": req.Player, "expires_at": expires.Format(time.RFC3339)})

	s.writeJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		Player:    req.Player,
	})
}

// player returns the authenticated player. Authenticate guarantees one.
func player(r *http.Request) string {
	p, _ := auth.PlayerFrom(r.Context())
	return p
}

func (s *Server) handleSpin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Spins == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("spins"))
		return
	}

	var req SpinRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.Spins.Spin(r.Context(), spin.Request{
		Player:      player(r),
		Bet:         req.Bet,
		UseFreeSpin: req.UseFreeSpin,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	s.securityLogger.LogSpinOperation(requestID, player(r), res.Seeds.ServerSeedHash, res.Seeds.Nonce,
		res.Outcome.BetAmount, res.Outcome.TotalWin, res.Outcome.IsJackpot)
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSeeds(w http.ResponseWriter, r *http.Request) {
	if s.deps.Spins == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("spins"))
		return
	}
	state, err := s.deps.Spins.Seeds(r.Context(), player(r))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSetClientSeed(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Spins == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("spins"))
		return
	}

	var req ClientSeedRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := seeds.CheckClientSeed(req.ClientSeed); err != nil {
		s.errorHandler.HandleValidationError(w, r, "clientSeed", err.Error())
		return
	}

	rev, err := s.deps.Spins.SetClientSeed(r.Context(), player(r), req.ClientSeed)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogAuditEvent(requestID, "client_seed_changed", "seeds", "success",
		map[string]interface{}{"player": player(r), "revealed_hash": shortHash(rev.ServerSeedHash)})
	s.writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetReqID(r.Context())
	if s.deps.Spins == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("spins"))
		return
	}
	rev, err := s.deps.Spins.Rotate(r.Context(), player(r))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.securityLogger.LogAuditEvent(requestID, "seed_rotated", "seeds", "success",
		map[string]interface{}{"player": player(r), "revealed_hash": shortHash(rev.ServerSeedHash)})
	s.writeJSON(w, http.StatusOK, rev)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Spins == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("spins"))
		return
	}
	page, perPage, ferr := pageParams(r)
	if ferr != nil {
		s.errorHandler.HandleValidationError(w, r, ferr.field, ferr.message)
		return
	}
	list, err := s.deps.Spins.History(r.Context(), store.SpinsQuery{Player: player(r), Page: page, PerPage: perPage})
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetSpin(w http.ResponseWriter, r *http.Request) {
	if s.deps.Spins == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("spins"))
		return
	}
	sp, err := s.deps.Spins.GetSpin(r.Context(), player(r), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sp)
}

// handleLive upgrades to the player's outcome feed.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		s.errorHandler.HandleError(w, r, errUnavailable("live feed"))
		return
	}
	s.deps.Hub.ServeWS(w, r, player(r))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}
