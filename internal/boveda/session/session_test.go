package session_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/session"
)

func newTestManager(t *testing.T, ttl time.Duration) *session.Manager {
	t.Helper()
	return session.NewManager(session.Config{
		TTL:    ttl,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t, 0)

	s := m.Create()
	if s.ID == "" {
		t.Fatal("created session has no ID")
	}

	got, ok := m.Get(s.ID)
	if !ok || got != s {
		t.Errorf("Get(%q) = (%p, %v), want the created session", s.ID, got, ok)
	}

	if _, ok := m.Get("not-a-session"); ok {
		t.Error("Get on an unknown ID reported ok")
	}

	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestManager_UniqueIDs(t *testing.T) {
	m := newTestManager(t, 0)
	a, b := m.Create(), m.Create()
	if a.ID == b.ID {
		t.Errorf("two sessions share ID %q", a.ID)
	}
}

func TestSession_StateProgression(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	if got := s.State(); got != "locked" {
		t.Errorf("fresh session state = %q, want locked", got)
	}
	if s.Unlocked() {
		t.Error("fresh session reports unlocked")
	}

	s.Unlock()
	if got := s.State(); got != "unlocked" {
		t.Errorf("state after unlock = %q, want unlocked", got)
	}

	s.Identify("Anghily")
	if got := s.State(); got != "identified" {
		t.Errorf("state after identify = %q, want identified", got)
	}
	if got := s.Persona(); got != "Anghily" {
		t.Errorf("Persona = %q, want Anghily", got)
	}
}

func TestSession_TranscriptIsCopied(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	s.AppendTurn("Anghily", "hola")
	s.AppendTurn("Armaan", "hola amor")

	turns := s.Transcript()
	if len(turns) != 2 {
		t.Fatalf("len(Transcript) = %d, want 2", len(turns))
	}
	if turns[0].Speaker != "Anghily" || turns[1].Text != "hola amor" {
		t.Errorf("transcript contents wrong: %+v", turns)
	}

	// Mutating the copy must not leak back into the session.
	turns[0].Text = "changed"
	if got := s.Transcript()[0].Text; got != "hola" {
		t.Errorf("session transcript mutated through the copy: %q", got)
	}
}

func TestSession_LedgerIsStable(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	if s.Ledger() == nil {
		t.Fatal("session has no ledger")
	}
	if s.Ledger() != s.Ledger() {
		t.Error("Ledger returns different instances")
	}
}

func TestManager_PruneExpiresIdleSessions(t *testing.T) {
	const ttl = time.Hour
	m := newTestManager(t, ttl)

	base := time.Now()
	idle := m.Create()
	keep := m.Create()

	// Nothing is pruned while every session is inside the TTL.
	if n := m.Prune(base.Add(30 * time.Minute)); n != 0 {
		t.Errorf("early prune dropped %d sessions, want 0", n)
	}

	// Refresh one session, then prune with a cutoff falling between the
	// creation time and the refresh: only the idle session goes.
	time.Sleep(50 * time.Millisecond)
	if _, ok := m.Get(keep.ID); !ok {
		t.Fatal("refresh Get failed")
	}

	if n := m.Prune(base.Add(ttl + 25*time.Millisecond)); n != 1 {
		t.Errorf("prune dropped %d sessions, want 1", n)
	}
	if _, ok := m.Get(idle.ID); ok {
		t.Error("idle session survived pruning")
	}
	if _, ok := m.Get(keep.ID); !ok {
		t.Error("refreshed session was pruned")
	}
}

func TestManager_JanitorStopsWithContext(t *testing.T) {
	m := newTestManager(t, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Janitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	m.Create()
	time.Sleep(30 * time.Millisecond)
	if m.Count() != 0 {
		t.Errorf("janitor left %d expired sessions", m.Count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after context cancellation")
	}
}

func TestManager_ConcurrentSafety(t *testing.T) {
	m := newTestManager(t, time.Minute)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 20; j++ {
				s := m.Create()
				m.Get(s.ID)
				s.Unlock()
				s.AppendTurn("x", "y")
				m.Prune(time.Now())
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
