package gate

import (
	"sync"
	"time"
)

// Ledger tracks the unlock attempts of a single session: the time of the
// most recent request and the timestamps of failed candidates still
// inside the lockout window.
//
// A Ledger is safe for concurrent use. It lives as long as the session
// and is never persisted.
type Ledger struct {
	mu          sync.Mutex
	lastRequest time.Time
	failures    []time.Time
}

// NewLedger returns an empty ledger for a fresh session.
func NewLedger() *Ledger { return &Ledger{} }

// FailureCount reports how many failed attempts remain inside window.
func (l *Ledger) FailureCount(window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-window)
	count := 0
	for _, t := range l.failures {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// pruneLocked drops failures at or before cutoff. Callers hold l.mu.
func (l *Ledger) pruneLocked(cutoff time.Time) {
	valid := l.failures[:0] // reuse backing array
	for _, t := range l.failures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	l.failures = valid
}
