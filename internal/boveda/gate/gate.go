// Package gate validates vault unlock attempts.
//
// The passphrase is a fixed date, 1 January 2026, accepted in a closed
// set of spellings. Validation runs three checks in order:
//
//  1. Pacing: a request arriving within half a second of the previous
//     one is treated as automation and refused outright.
//  2. Lockout: ten failed attempts inside an hour lock the session.
//  3. Matching: the candidate is lowercased, stripped of ordinal
//     suffixes and separators, and compared against the allow-list.
//
// The allow-list is closed on purpose. Spellings such as "2026-01-01"
// (year first) are rejected; accepting a new variant means adding it to
// the list, never loosening the match.
//
// A Gate is stateless and safe for concurrent use; all per-session state
// lives in the Ledger passed to Validate.
package gate

import (
	"regexp"
	"strings"
	"time"
)

// Decision is the outcome of one unlock attempt.
type Decision int

const (
	// Denied means the candidate did not match the passphrase.
	Denied Decision = iota
	// Granted means the candidate matched and the vault unlocks.
	Granted
	// Automation means the request arrived faster than a person types.
	Automation
	// Lockout means the session has too many recent failures.
	Lockout
)

// Throttled reports whether the decision refused the attempt without
// evaluating the candidate.
func (d Decision) Throttled() bool { return d == Automation || d == Lockout }

func (d Decision) String() string {
	switch d {
	case Denied:
		return "denied"
	case Granted:
		return "granted"
	case Automation:
		return "automation"
	case Lockout:
		return "lockout"
	default:
		return "unknown"
	}
}

// User-facing refusal notices. Denied deliberately reveals nothing about
// how close the candidate came.
const (
	DeniedMessage     = "Access Denied."
	AutomationMessage = "Automation Detected. Slow down."
	LockoutMessage    = "System Locked. Too many attempts. Try again later."
)

const (
	// DefaultPaceInterval is the minimum gap between requests before the
	// pacing check flags automation.
	DefaultPaceInterval = 500 * time.Millisecond

	// DefaultFailureWindow is how long a failed attempt counts against
	// the lockout threshold.
	DefaultFailureWindow = time.Hour

	// DefaultMaxFailures is the number of windowed failures that locks a
	// session out.
	DefaultMaxFailures = 10
)

// Candidates are cleaned before matching: ordinal suffixes, separators
// and whitespace all disappear, so "Jan 1st, 2026" becomes "jan12026".
var stripPattern = regexp.MustCompile(`st|nd|rd|th|/|-|,|\s`)

// monthTokens is the plausibility pre-check: a candidate that names
// neither January nor a day/month digit is rejected without cleaning.
var monthTokens = []string{"jan", "01", "1"}

var validCandidates = map[string]struct{}{
	"1jan2026": {},
	"1jan26":   {},
	"jan12026": {},
	"jan126":   {},
	"01012026": {},
	"010126":   {},
	"1126":     {},
	"112026":   {},
}

// Config adjusts the throttling thresholds. Zero values fall back to the
// defaults above.
type Config struct {
	PaceInterval  time.Duration
	FailureWindow time.Duration
	MaxFailures   int
}

// Gate evaluates unlock attempts against the passphrase rules.
type Gate struct {
	paceInterval  time.Duration
	failureWindow time.Duration
	maxFailures   int
}

// New returns a Gate with the given thresholds.
func New(cfg Config) *Gate {
	if cfg.PaceInterval <= 0 {
		cfg.PaceInterval = DefaultPaceInterval
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = DefaultFailureWindow
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &Gate{
		paceInterval:  cfg.PaceInterval,
		failureWindow: cfg.FailureWindow,
		maxFailures:   cfg.MaxFailures,
	}
}

// Validate evaluates one unlock attempt, recording it in the ledger.
//
// The last-request time is updated on every call, including refused
// ones, so hammering the endpoint never escapes the pacing check. Only
// evaluated candidates that fail to match count toward lockout.
func (g *Gate) Validate(l *Ledger, candidate string) Decision {
	return g.validate(l, candidate, time.Now())
}

func (g *Gate) validate(l *Ledger, candidate string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	paced := !l.lastRequest.IsZero() && now.Sub(l.lastRequest) < g.paceInterval
	l.lastRequest = now
	if paced {
		return Automation
	}

	l.pruneLocked(now.Add(-g.failureWindow))
	if len(l.failures) >= g.maxFailures {
		return Lockout
	}

	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if !plausible(candidate) {
		l.failures = append(l.failures, now)
		return Denied
	}

	cleaned := stripPattern.ReplaceAllString(candidate, "")
	if _, ok := validCandidates[cleaned]; ok {
		return Granted
	}

	l.failures = append(l.failures, now)
	return Denied
}

func plausible(candidate string) bool {
	if !strings.Contains(candidate, "26") {
		return false
	}
	for _, tok := range monthTokens {
		if strings.Contains(candidate, tok) {
			return true
		}
	}
	return false
}
