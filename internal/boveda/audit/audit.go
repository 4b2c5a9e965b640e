// Package audit records noteworthy vault activity.
//
// Auditing is strictly best-effort: recorders swallow their own
// failures and must never block or break the request path. Unlock
// events carry the decision outcome but never the candidate passphrase.
package audit

import (
	"context"
	"log/slog"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/store"
)

// Event kinds.
const (
	KindSession  = "session"
	KindUnlock   = "unlock"
	KindIdentify = "identify"
	KindOracle   = "oracle"
	KindGhost    = "ghost"
	KindAsset    = "asset"
)

// Event is one recorded interaction.
type Event struct {
	TraceID   string
	SessionID string
	Kind      string
	Outcome   string
	Provider  string
	Detail    string
}

// Recorder sinks audit events.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Noop discards all events. Used when no database is configured.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(context.Context, Event) {}

// SQLite persists events to the vault database.
type SQLite struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSQLite returns a Recorder backed by st.
func NewSQLite(st *store.Store, logger *slog.Logger) *SQLite {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLite{store: st, logger: logger}
}

// Record implements Recorder. Failures are logged and dropped.
func (a *SQLite) Record(ctx context.Context, e Event) {
	if err := a.store.InsertEvent(ctx, e.TraceID, e.SessionID, e.Kind, e.Outcome, e.Provider, e.Detail); err != nil {
		a.logger.Warn("audit: record failed", "kind", e.Kind, "outcome", e.Outcome, "error", err)
	}
}
