package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/realarmaansidhu/NuestraBoveda/common/version"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/audit"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ensemble"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/gate"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/oracle"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/vault"
)

type unlockRequest struct {
	Input string `json:"input"`
}

type identifyRequest struct {
	Persona string `json:"persona"`
}

type oracleRequest struct {
	Mood string `json:"mood"`
}

type ghostRequest struct {
	Message string `json:"message"`
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	StartedAt   time.Time         `json:"started_at"`
	UptimeSecs  float64           `json:"uptime_seconds"`
	Sessions    int               `json:"sessions"`
	Providers   []string          `json:"providers"`
	Secrets     map[string]string `json:"secrets,omitempty"`
	AuditEvents int64             `json:"audit_events"`
}

// handleCreateSession opens a fresh locked session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindSession, Outcome: "created"})
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

// handleUnlock runs one gate attempt for the session. The audit row
// records the outcome only, never the candidate.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req unlockRequest
	if !readJSON(w, r, &req) {
		return
	}

	decision := s.gate.Validate(sess.Ledger(), req.Input)
	s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindUnlock, Outcome: decision.String()})

	switch decision {
	case gate.Granted:
		sess.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"unlocked": true})
	case gate.Automation:
		writeError(w, http.StatusTooManyRequests, gate.AutomationMessage)
	case gate.Lockout:
		writeError(w, http.StatusTooManyRequests, gate.LockoutMessage)
	default:
		writeError(w, http.StatusForbidden, gate.DeniedMessage)
	}
}

// handlePersonas lists the registered persona names.
func (s *Server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"personas": s.personas.Names()})
}

// handleIdentify binds the session to one of the registered personas.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req identifyRequest
	if !readJSON(w, r, &req) {
		return
	}

	p, ok := s.personas.Resolve(req.Persona)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown persona")
		return
	}
	partner, _ := s.personas.Partner(p.Name)

	sess.Identify(p.Name)
	s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindIdentify, Outcome: p.Name})
	writeJSON(w, http.StatusOK, map[string]string{"persona": p.Name, "partner": partner.Name})
}

// handleOracle asks the provider chain for the memory matching a mood.
func (s *Server) handleOracle(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req oracleRequest
	if !readJSON(w, r, &req) {
		return
	}
	current := sess.Persona()
	if current == "" {
		writeError(w, http.StatusConflict, "no persona selected")
		return
	}

	sel, err := s.oracle.Pick(r.Context(), current, req.Mood)
	if err != nil {
		s.oracleError(w, r, sess.ID, err)
		return
	}

	s.record(r.Context(), audit.Event{
		SessionID: sess.ID,
		Kind:      audit.KindOracle,
		Outcome:   "picked",
		Provider:  sel.Provider,
		Detail:    sel.FilePath,
	})
	writeJSON(w, http.StatusOK, sel)
}

// oracleError maps oracle failures onto their HTTP shapes. An
// exhausted provider chain forwards its diagnostic payload untouched.
func (s *Server) oracleError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	var unavailable *oracle.UnavailableError
	switch {
	case errors.Is(err, oracle.ErrNoMemories):
		s.record(r.Context(), audit.Event{SessionID: sessionID, Kind: audit.KindOracle, Outcome: "empty"})
		writeError(w, http.StatusNotFound, "The memory banks are empty.")
	case errors.As(err, &unavailable):
		s.record(r.Context(), audit.Event{SessionID: sessionID, Kind: audit.KindOracle, Outcome: "unavailable"})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, unavailable.Payload)
	case errors.Is(err, oracle.ErrGibberish):
		s.record(r.Context(), audit.Event{SessionID: sessionID, Kind: audit.KindOracle, Outcome: "gibberish"})
		writeError(w, http.StatusBadGateway, "The oracle spoke in riddles. Try again.")
	default:
		s.logger.Error("httpapi: oracle pick failed", "error", err)
		s.record(r.Context(), audit.Event{SessionID: sessionID, Kind: audit.KindOracle, Outcome: "error"})
		writeError(w, http.StatusInternalServerError, "oracle failed")
	}
}

// handleGhost produces the partner's reply to one chat message.
func (s *Server) handleGhost(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	var req ghostRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if sess.Persona() == "" {
		writeError(w, http.StatusConflict, "no persona selected")
		return
	}

	rep, err := s.ghost.Reply(r.Context(), sess, req.Message)
	if err != nil {
		s.logger.Error("httpapi: ghost reply failed", "error", err)
		s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindGhost, Outcome: "error"})
		writeError(w, http.StatusInternalServerError, "ghost writer failed")
		return
	}

	s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindGhost, Outcome: "replied", Provider: rep.Provider})
	writeJSON(w, http.StatusOK, rep)
}

// handleGhostHistory returns the session's ghost conversation so far.
func (s *Server) handleGhostHistory(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"turns": sess.Transcript()})
}

// handleAsset streams one archive asset.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	data, err := s.vault.Bytes(rel)
	if err != nil {
		if errors.Is(err, vault.ErrMissing) {
			s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindAsset, Outcome: "missing", Detail: rel})
			writeError(w, http.StatusNotFound, "asset missing")
			return
		}
		s.logger.Error("httpapi: asset read failed", "path", rel, "error", err)
		writeError(w, http.StatusInternalServerError, "asset read failed")
		return
	}

	s.record(r.Context(), audit.Event{SessionID: sess.ID, Kind: audit.KindAsset, Outcome: "served", Detail: rel})
	w.Header().Set("Content-Type", contentType(rel, data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// contentType prefers the extension and sniffs when it is unregistered.
func contentType(rel string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(rel))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// handleHealth responds with a simple ok JSON payload.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: version.Version})
}

// handleStatus responds with runtime statistics. Secret values are
// never included, only which source each one resolves from.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:     "ok",
		Version:    version.Version,
		StartedAt:  s.startedAt,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Sessions:   s.sessions.Count(),
		Providers:  []string{},
	}
	if s.chain != nil {
		resp.Providers = s.chain.Available()
	}
	if s.secrets != nil {
		resp.Secrets = s.secrets.Probe(
			ensemble.GeminiKeyName,
			ensemble.MistralKeyName,
			ensemble.GroqKeyName,
			vault.VaultKeyName,
		)
	}
	if s.store != nil {
		if n, err := s.store.CountEvents(r.Context()); err == nil {
			resp.AuditEvents = n
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// auditEventResponse is one row of GET /api/audit/recent.
type auditEventResponse struct {
	ID        int64     `json:"id"`
	At        time.Time `json:"at"`
	TraceID   string    `json:"trace_id,omitempty"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome"`
	Provider  string    `json:"provider,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// handleAuditRecent lists the newest audit rows. Rows carry outcomes
// only; candidate passphrases are never stored, so none can leak here.
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "audit trail disabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	rows, err := s.store.RecentEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("httpapi: audit query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}

	events := make([]auditEventResponse, 0, len(rows))
	for _, e := range rows {
		events = append(events, auditEventResponse{
			ID:        e.ID,
			At:        e.At,
			TraceID:   e.TraceID,
			SessionID: e.SessionID,
			Kind:      e.Kind,
			Outcome:   e.Outcome,
			Provider:  e.Provider.String,
			Detail:    e.Detail.String,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
