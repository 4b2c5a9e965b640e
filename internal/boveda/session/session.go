// Package session tracks per-visitor state for the vault.
//
// A session moves through three states: locked when created, unlocked
// once the access gate accepts a passphrase, and identified once the
// visitor claims a persona. Every session owns its own attempt ledger
// and ghost-conversation transcript; nothing here is persisted, so a
// restart relocks the vault.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/gate"
)

// DefaultTTL is how long an idle session survives before the janitor
// removes it.
const DefaultTTL = 12 * time.Hour

// Turn is one exchange in a session's ghost conversation.
type Turn struct {
	Speaker string    `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// Session is the state of one visitor. Safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	ledger *gate.Ledger

	mu         sync.Mutex
	lastSeen   time.Time
	unlocked   bool
	persona    string
	transcript []Turn
}

// Ledger returns the session's attempt ledger.
func (s *Session) Ledger() *gate.Ledger { return s.ledger }

// Unlock marks the vault open for this session.
func (s *Session) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocked = true
}

// Unlocked reports whether the gate has been passed.
func (s *Session) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unlocked
}

// Identify records which persona the visitor claims.
func (s *Session) Identify(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = name
}

// Persona returns the claimed persona, or "" before identification.
func (s *Session) Persona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

// State names the session's position in the locked, unlocked,
// identified progression.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.unlocked:
		return "locked"
	case s.persona == "":
		return "unlocked"
	default:
		return "identified"
	}
}

// AppendTurn adds one exchange to the ghost transcript.
func (s *Session) AppendTurn(speaker, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, Turn{Speaker: speaker, Text: text, At: time.Now()})
}

// Transcript returns a copy of the ghost conversation so far.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) seen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Config wires a Manager. A zero TTL falls back to DefaultTTL.
type Config struct {
	TTL    time.Duration
	Logger *slog.Logger
}

// Manager creates, finds and expires sessions. Safe for concurrent use.
type Manager struct {
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns an empty session registry.
func NewManager(cfg Config) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// Create registers a new locked session and returns it.
func (m *Manager) Create() *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastSeen:  now,
		ledger:    gate.NewLedger(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Debug("session: created", "session_id", s.ID)
	return s
}

// Get finds a live session and refreshes its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if ok {
		s.touch(time.Now())
	}
	return s, ok
}

// Count reports how many sessions are live.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune removes sessions idle past the TTL as of now, returning how
// many were dropped.
func (m *Manager) Prune(now time.Time) int {
	cutoff := now.Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for id, s := range m.sessions {
		if s.seen().Before(cutoff) {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Janitor prunes expired sessions every interval until ctx ends. Run it
// on its own goroutine.
func (m *Manager) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(time.Now()); n > 0 {
				m.logger.Debug("session: pruned expired sessions", "count", n)
			}
		}
	}
}
