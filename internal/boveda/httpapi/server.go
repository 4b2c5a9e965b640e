// Package httpapi exposes the vault over HTTP.
//
// Clients open a session, pass the access gate with POST /api/unlock,
// pick a persona, and only then reach the archive, the oracle and the
// ghost writer. Routes under /api (except session creation and the
// persona listing) name their session with the X-Boveda-Session
// header; gated routes additionally require that the session has been
// unlocked. The server never redirects, clients drive the progression
// themselves.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/realarmaansidhu/NuestraBoveda/common/trace"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/audit"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ensemble"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/gate"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ghostwriter"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/oracle"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/persona"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/secrets"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/session"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/store"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/vault"
)

const (
	// SessionHeader names the session a request acts on.
	SessionHeader = "X-Boveda-Session"
	// TraceHeader carries the request trace ID; generated when absent.
	TraceHeader = "X-Trace-Id"

	maxBodyBytes = 1 << 20
)

// Oracle picks a memory for a mood. Implemented by *oracle.Oracle.
type Oracle interface {
	Pick(ctx context.Context, current, mood string) (oracle.Selection, error)
}

// Ghost replies in the voice of the session persona's partner.
// Implemented by *ghostwriter.GhostWriter.
type Ghost interface {
	Reply(ctx context.Context, sess *session.Session, message string) (ghostwriter.Reply, error)
}

// Config wires a Server. Gate, Sessions, Vault, Personas, Oracle and
// Ghost are required; Chain, Secrets, Store and Audit may be nil, the
// affected endpoints then report less or record nothing.
type Config struct {
	Addr     string
	Gate     *gate.Gate
	Sessions *session.Manager
	Vault    *vault.Store
	Personas *persona.Registry
	Oracle   Oracle
	Ghost    Ghost
	Chain    *ensemble.Ensemble
	Secrets  *secrets.Resolver
	Store    *store.Store
	Audit    audit.Recorder
	Logger   *slog.Logger
}

// Server serves the vault API.
type Server struct {
	addr      string
	gate      *gate.Gate
	sessions  *session.Manager
	vault     *vault.Store
	personas  *persona.Registry
	oracle    Oracle
	ghost     Ghost
	chain     *ensemble.Ensemble
	secrets   *secrets.Resolver
	store     *store.Store
	audit     audit.Recorder
	logger    *slog.Logger
	router    chi.Router
	startedAt time.Time
	server    *http.Server
}

// New creates and configures the HTTP server (does not start it).
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.Noop{}
	}
	s := &Server{
		addr:      cfg.Addr,
		gate:      cfg.Gate,
		sessions:  cfg.Sessions,
		vault:     cfg.Vault,
		personas:  cfg.Personas,
		oracle:    cfg.Oracle,
		ghost:     cfg.Ghost,
		chain:     cfg.Chain,
		secrets:   cfg.Secrets,
		store:     cfg.Store,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
		startedAt: time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(s.withTrace)
	r.Use(s.logRequests)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleCreateSession)
		r.Get("/personas", s.handlePersonas)

		r.Group(func(r chi.Router) {
			r.Use(s.withSession)
			r.Post("/unlock", s.handleUnlock)

			r.Group(func(r chi.Router) {
				r.Use(s.requireUnlocked)
				r.Post("/identify", s.handleIdentify)
				r.Post("/oracle", s.handleOracle)
				r.Post("/ghost", s.handleGhost)
				r.Get("/ghost/history", s.handleGhostHistory)
				r.Get("/asset", s.handleAsset)
				r.Get("/audit/recent", s.handleAuditRecent)
			})
		})
	})
	return r
}

// ServeHTTP implements http.Handler so the server can be tested
// without a live network listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening in the background. Blocks until the listener
// is established so the caller knows the port is open before returning.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.addr, err)
	}

	// An oracle or ghost call may spend up to three provider timeouts
	// before answering, so the write timeout covers that worst case.
	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("httpapi: listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("httpapi: server stopped", "error", err)
		}
	}()

	// Shutdown when ctx is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("httpapi: shutdown error", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("httpapi: shutdown error", "error", err)
	}
}

type contextKey int

const sessionKey contextKey = iota

// sessionFrom returns the session attached by withSession.
func sessionFrom(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// withTrace attaches a trace ID to the request context, reusing the
// caller's X-Trace-Id header when present.
func (s *Server) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TraceHeader)
		if id == "" {
			id = trace.GenerateID()
		}
		w.Header().Set(TraceHeader, id)
		next.ServeHTTP(w, r.WithContext(trace.WithID(r.Context(), id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("httpapi: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"trace_id", trace.FromContext(r.Context()))
	})
}

// withSession resolves the X-Boveda-Session header to a live session.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "session required")
			return
		}
		sess, ok := s.sessions.Get(id)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown or expired session")
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUnlocked rejects requests whose session has not passed the gate.
func (s *Server) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := sessionFrom(r.Context()); sess == nil || !sess.Unlocked() {
			writeError(w, http.StatusForbidden, "vault is locked")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// record stamps the event with the request trace ID before sinking it.
func (s *Server) record(ctx context.Context, e audit.Event) {
	e.TraceID = trace.FromContext(ctx)
	s.audit.Record(ctx, e)
}

// writeJSON serialises v as JSON and writes it to w with the given
// status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("httpapi: failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// readJSON decodes the request body into v. On failure it writes a 400
// and reports false.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
