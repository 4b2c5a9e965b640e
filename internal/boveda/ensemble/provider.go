// Package ensemble queries a fixed chain of LLM providers, falling back
// in order until one answers.
//
// Invariants callers rely on:
//
//   - Providers are tried strictly in order. The first success wins and
//     later providers are never contacted.
//   - A failing provider gets exactly one attempt per call. There are
//     no retries; the chain just moves on and records the failure.
//   - Each attempt runs under its own deadline, so one hung provider
//     cannot stall the whole chain.
//   - Generate never returns an error. When every provider fails the
//     Result carries a fallback notice under the reserved provider
//     name "none".
package ensemble

import (
	"context"
	"time"
)

// FallbackProvider is the reserved provider name reported when the
// entire chain failed.
const FallbackProvider = "none"

// DefaultTimeout bounds each individual provider attempt.
const DefaultTimeout = 30 * time.Second

// Secret names looked up when assembling the default chain.
const (
	GeminiKeyName  = "GOOGLE_API_KEY"
	MistralKeyName = "MISTRAL_API_KEY"
	GroqKeyName    = "GROQ_API_KEY"
)

// Request is one generation request.
type Request struct {
	// System is an optional system instruction.
	System string
	// Prompt is the user-turn prompt.
	Prompt string
	// JSONMode asks the provider for a single JSON object instead of
	// free text.
	JSONMode bool
}

// Result is the outcome of a Generate call.
type Result struct {
	// Text is the completion, or the fallback notice when the chain
	// failed.
	Text string
	// Provider names the backend that answered, or FallbackProvider.
	Provider string
}

// Failed reports whether the whole chain failed and Text holds the
// fallback notice rather than a completion.
func (r Result) Failed() bool { return r.Provider == FallbackProvider }

// Provider is one LLM backend in the chain.
type Provider interface {
	// Name is the short vendor label used in failure notices and status
	// listings ("Gemini", "Mistral", "Groq").
	Name() string

	// DisplayName is the label reported in Result.Provider when this
	// backend answers ("Gemini 2.0 Flash", "Mistral Large").
	DisplayName() string

	// Generate produces one completion. Implementations honor ctx
	// cancellation and are safe for concurrent use.
	Generate(ctx context.Context, req Request) (string, error)
}
