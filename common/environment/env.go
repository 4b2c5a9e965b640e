// Package environment provides small typed helpers around os.Getenv.
//
// Every accessor treats an empty value the same as an unset variable, so
// `export BOVEDA_DB_PATH=` behaves like not setting it at all. Parse
// failures on typed accessors fall back to the supplied default rather
// than aborting startup.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// String returns the value of the named variable, or "" when unset.
func String(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// StringOr returns the value of the named variable, or fallback when the
// variable is unset or empty.
func StringOr(name, fallback string) string {
	if v := String(name); v != "" {
		return v
	}
	return fallback
}

// RequiredString returns the value of the named variable, or an error
// when it is unset or empty.
func RequiredString(name string) (string, error) {
	v := String(name)
	if v == "" {
		return "", fmt.Errorf("environment: required variable %s is not set", name)
	}
	return v, nil
}

// LookupFirst returns the value of the first named variable that is set
// and non-empty, along with its name. It reports ok=false when none of
// the candidates carry a value.
func LookupFirst(names ...string) (name, value string, ok bool) {
	for _, n := range names {
		if v := String(n); v != "" {
			return n, v, true
		}
	}
	return "", "", false
}

// BoolOr parses the named variable as a boolean, returning fallback when
// unset or unparsable. Accepts the forms strconv.ParseBool accepts.
func BoolOr(name string, fallback bool) bool {
	v := String(name)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// IntOr parses the named variable as an int, returning fallback when
// unset or unparsable.
func IntOr(name string, fallback int) int {
	v := String(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// DurationOr parses the named variable as a time.Duration ("30s",
// "12h"), returning fallback when unset or unparsable.
func DurationOr(name string, fallback time.Duration) time.Duration {
	v := String(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// StringSliceOr splits the named variable on commas, trimming whitespace
// around each element and dropping empties. Returns fallback when the
// variable is unset or yields no elements.
func StringSliceOr(name string, fallback []string) []string {
	v := String(name)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
