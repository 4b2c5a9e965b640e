package ensemble

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/realarmaansidhu/NuestraBoveda/common/redact"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/secrets"
)

// Config wires an Ensemble. Zero values fall back to DefaultTimeout and
// slog.Default().
type Config struct {
	Secrets *secrets.Resolver
	Timeout time.Duration
	Logger  *slog.Logger
}

// Ensemble walks an ordered provider chain. Safe for concurrent use.
type Ensemble struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// New assembles the default Gemini, Mistral, Groq chain from whatever
// credentials resolve. A provider without credentials, or one that
// fails to construct, is left out of the chain rather than failing
// startup; an empty chain still serves fallback notices.
func New(ctx context.Context, cfg Config) *Ensemble {
	e := NewWithProviders(cfg)

	if key, err := cfg.Secrets.Resolve(GeminiKeyName); err == nil {
		if p, perr := NewGemini(ctx, GeminiConfig{APIKey: key}); perr != nil {
			e.logger.Warn("ensemble: gemini unavailable", "error", redact.Error(perr, key))
		} else {
			e.providers = append(e.providers, p)
		}
	} else {
		e.logger.Info("ensemble: gemini credentials not configured")
	}

	if key, err := cfg.Secrets.Resolve(MistralKeyName); err == nil {
		e.providers = append(e.providers, NewMistral(ProviderConfig{APIKey: key}))
	} else {
		e.logger.Info("ensemble: mistral credentials not configured")
	}

	if key, err := cfg.Secrets.Resolve(GroqKeyName); err == nil {
		e.providers = append(e.providers, NewGroq(ProviderConfig{APIKey: key}))
	} else {
		e.logger.Info("ensemble: groq credentials not configured")
	}

	e.logger.Info("ensemble: chain assembled", "providers", e.Available())
	return e
}

// NewWithProviders returns an Ensemble over an explicit chain. Tests use
// it to inject stub providers.
func NewWithProviders(cfg Config, providers ...Provider) *Ensemble {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ensemble{
		providers: providers,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
}

// Available lists the chain's provider names in call order.
func (e *Ensemble) Available() []string {
	names := make([]string, len(e.providers))
	for i, p := range e.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate walks the chain in order and returns the first completion.
//
// Each provider gets one attempt under its own deadline. Failures are
// collected; if the whole chain fails the Result carries the fallback
// notice under the "none" provider instead of an error, shaped as JSON
// when the request asked for JSON.
func (e *Ensemble) Generate(ctx context.Context, req Request) Result {
	var details []string

	for _, p := range e.providers {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		text, err := p.Generate(attemptCtx, req)
		cancel()

		if err == nil {
			e.logger.Debug("ensemble: provider answered", "provider", p.Name())
			return Result{Text: text, Provider: p.DisplayName()}
		}

		msg := redact.Error(err)
		details = append(details, fmt.Sprintf("%s failed: %s", p.Name(), msg))
		e.logger.Warn("ensemble: provider failed", "provider", p.Name(), "error", msg)
	}

	if len(e.providers) == 0 {
		details = append(details, "no providers configured")
	}

	e.logger.Error("ensemble: all providers failed", "details", details)
	return fallbackResult(req.JSONMode, details)
}

// Close releases providers that hold SDK clients.
func (e *Ensemble) Close() {
	for _, p := range e.providers {
		if c, ok := p.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

func fallbackResult(jsonMode bool, details []string) Result {
	if jsonMode {
		payload, _ := json.Marshal(struct {
			Error   string   `json:"error"`
			Details []string `json:"details"`
		}{
			Error:   "All LLMs failed",
			Details: details,
		})
		return Result{Text: string(payload), Provider: FallbackProvider}
	}

	notice := fmt.Sprintf("System Malfunction. All AI Cores Unresponsive. Errors: [%s]",
		strings.Join(details, "; "))
	return Result{Text: notice, Provider: FallbackProvider}
}
