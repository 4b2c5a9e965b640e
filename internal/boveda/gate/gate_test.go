package gate_test

import (
	"testing"
	"time"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/gate"
)

// fastGate returns a gate whose pacing threshold is small enough that
// tests can space calls with short sleeps instead of half-second waits.
func fastGate(cfg gate.Config) *gate.Gate {
	if cfg.PaceInterval == 0 {
		cfg.PaceInterval = time.Millisecond
	}
	return gate.New(cfg)
}

// pace sleeps long enough to clear a fastGate's pacing threshold.
func pace() { time.Sleep(2 * time.Millisecond) }

func TestGate_AcceptedSpellings(t *testing.T) {
	candidates := []string{
		"1jan2026",
		"1 Jan 2026",
		"1st Jan 2026",
		"Jan 1st, 2026",
		"jan 1 2026",
		"01/01/2026",
		"01-01-26",
		"1/1/26",
		"1-1-2026",
		"  1 JAN 2026  ",
		"jan126",
		"112026",
	}

	for _, c := range candidates {
		t.Run(c, func(t *testing.T) {
			g := gate.New(gate.Config{})
			// A fresh ledger's first request is never paced.
			if got := g.Validate(gate.NewLedger(), c); got != gate.Granted {
				t.Errorf("Validate(%q) = %v, want granted", c, got)
			}
		})
	}
}

func TestGate_RejectedCandidates(t *testing.T) {
	cases := []struct {
		name      string
		candidate string
	}{
		{"empty", ""},
		{"whitespace-only", "   "},
		{"year-first", "2026-01-01"}, // not in the allow-list, by design
		{"wrong-day", "2 Jan 2026"},
		{"wrong-month", "1 Feb 2026"},
		{"wrong-year", "01/01/2027"},
		{"unrelated", "password"},
		{"year-fragment", "26"},
		{"month-fragment", "jan"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := gate.New(gate.Config{})
			if got := g.Validate(gate.NewLedger(), tc.candidate); got != gate.Denied {
				t.Errorf("Validate(%q) = %v, want denied", tc.candidate, got)
			}
		})
	}
}

func TestGate_PacingFlagsAutomation(t *testing.T) {
	g := gate.New(gate.Config{})
	l := gate.NewLedger()

	if got := g.Validate(l, "wrong"); got != gate.Denied {
		t.Fatalf("first attempt = %v, want denied", got)
	}

	// Immediately again, well inside the default half-second threshold.
	if got := g.Validate(l, "1 jan 2026"); got != gate.Automation {
		t.Errorf("paced attempt = %v, want automation", got)
	}
}

func TestGate_PacingRecoversAfterGap(t *testing.T) {
	g := fastGate(gate.Config{PaceInterval: 20 * time.Millisecond})
	l := gate.NewLedger()

	g.Validate(l, "wrong")
	if got := g.Validate(l, "wrong"); got != gate.Automation {
		t.Fatalf("back-to-back attempt = %v, want automation", got)
	}

	time.Sleep(25 * time.Millisecond)

	if got := g.Validate(l, "1 jan 2026"); got != gate.Granted {
		t.Errorf("attempt after gap = %v, want granted", got)
	}
}

func TestGate_PacedAttemptsKeepRefreshingThreshold(t *testing.T) {
	g := fastGate(gate.Config{PaceInterval: 20 * time.Millisecond})
	l := gate.NewLedger()

	g.Validate(l, "wrong")

	// Hammering never lets a request through: each refused attempt still
	// moves the last-request time forward.
	for i := 0; i < 3; i++ {
		if got := g.Validate(l, "1 jan 2026"); got != gate.Automation {
			t.Fatalf("hammered attempt %d = %v, want automation", i, got)
		}
	}
}

func TestGate_LockoutAfterMaxFailures(t *testing.T) {
	g := fastGate(gate.Config{MaxFailures: 3})
	l := gate.NewLedger()

	for i := 0; i < 3; i++ {
		if got := g.Validate(l, "wrong"); got != gate.Denied {
			t.Fatalf("attempt %d = %v, want denied", i, got)
		}
		pace()
	}

	// Even the correct passphrase is refused once locked out.
	if got := g.Validate(l, "1 jan 2026"); got != gate.Lockout {
		t.Errorf("attempt after %d failures = %v, want lockout", 3, got)
	}
}

func TestGate_AutomationDoesNotCountTowardLockout(t *testing.T) {
	g := fastGate(gate.Config{PaceInterval: 20 * time.Millisecond, MaxFailures: 2})
	l := gate.NewLedger()

	g.Validate(l, "wrong") // failure 1
	if got := g.Validate(l, "wrong"); got != gate.Automation {
		t.Fatalf("paced attempt = %v, want automation", got)
	}

	if got := l.FailureCount(time.Hour); got != 1 {
		t.Errorf("FailureCount after automation refusal = %d, want 1", got)
	}
}

func TestGate_LockoutExpiresWithWindow(t *testing.T) {
	g := fastGate(gate.Config{FailureWindow: 50 * time.Millisecond, MaxFailures: 2})
	l := gate.NewLedger()

	g.Validate(l, "wrong")
	pace()
	g.Validate(l, "wrong")
	pace()

	if got := g.Validate(l, "wrong"); got != gate.Lockout {
		t.Fatalf("attempt at threshold = %v, want lockout", got)
	}

	// Let the failures age out of the window.
	time.Sleep(60 * time.Millisecond)

	if got := g.Validate(l, "1 jan 2026"); got != gate.Granted {
		t.Errorf("attempt after window expiry = %v, want granted", got)
	}
}

func TestGate_GrantedLeavesFailuresInPlace(t *testing.T) {
	g := fastGate(gate.Config{})
	l := gate.NewLedger()

	g.Validate(l, "wrong")
	pace()
	if got := g.Validate(l, "1 jan 2026"); got != gate.Granted {
		t.Fatal("expected granted")
	}

	if got := l.FailureCount(time.Hour); got != 1 {
		t.Errorf("FailureCount after grant = %d, want 1 (grants do not clear history)", got)
	}
}

func TestDecision_Throttled(t *testing.T) {
	cases := []struct {
		d    gate.Decision
		want bool
	}{
		{gate.Granted, false},
		{gate.Denied, false},
		{gate.Automation, true},
		{gate.Lockout, true},
	}
	for _, tc := range cases {
		if got := tc.d.Throttled(); got != tc.want {
			t.Errorf("%v.Throttled() = %v, want %v", tc.d, got, tc.want)
		}
	}
}

func TestGate_ConcurrentSafety(t *testing.T) {
	// Hammer one ledger from multiple goroutines to surface data races
	// under -race. Outcomes are whatever pacing dictates.
	g := gate.New(gate.Config{})
	l := gate.NewLedger()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 20; j++ {
				g.Validate(l, "1 jan 2026")
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
