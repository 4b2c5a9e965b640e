// Package redact scrubs credentials from strings before they reach logs
// or user-visible error payloads.
//
// Provider SDKs are fond of echoing the request back in their error
// messages, and at least one upstream carries the API key as a URL query
// parameter. Everything that logs a provider error goes through this
// package first.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces each redacted value.
const Placeholder = "[REDACTED]"

var (
	// key=... or api_key=... in URLs and form bodies.
	urlKeyPattern = regexp.MustCompile(`(?i)([?&](?:api[_-]?key|key|token|access[_-]?token)=)[^&\s"']+`)
	// Authorization headers quoted inside error strings.
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/-]+=*`)
)

var sensitiveKeyWords = []string{
	"key", "token", "secret", "password", "credential", "authorization",
}

// String masks every occurrence of secret within s. Secrets shorter than
// four characters are left alone to avoid mangling ordinary text.
func String(s, secret string) string {
	if len(secret) < 4 {
		return s
	}
	return strings.ReplaceAll(s, secret, Placeholder)
}

// Error masks the given secrets in err's message and additionally strips
// credential-shaped URL parameters and bearer tokens. Returns "" for a
// nil error.
func Error(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, s := range secrets {
		msg = String(msg, s)
	}
	msg = urlKeyPattern.ReplaceAllString(msg, "${1}"+Placeholder)
	msg = bearerPattern.ReplaceAllString(msg, "${1}"+Placeholder)
	return msg
}

// Map returns a copy of m with values of sensitive-looking keys masked.
// The input map is not modified.
func Map(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = Placeholder
		} else {
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	for _, w := range sensitiveKeyWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
