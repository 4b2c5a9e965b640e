// Package oracle picks the memory that best fits a mood and writes a
// short poetic note about it in the partner's voice.
//
// The oracle always asks for strict JSON and distrusts what it gets
// back: markdown fences are stripped, the shape is checked, and an
// answer that still does not parse is reported as gibberish together
// with the provider that produced it.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ensemble"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/persona"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/vault"
)

// ErrNoMemories is returned when the archive's memories index is empty,
// before any provider is contacted.
var ErrNoMemories = errors.New("oracle: memory banks are empty")

// ErrGibberish is returned when the model's answer is not the strict
// JSON the oracle demanded.
var ErrGibberish = errors.New("oracle: gibberish answer")

// UnavailableError reports that the whole provider chain failed. Payload
// carries the canonical failure JSON for passing through to clients.
type UnavailableError struct {
	Payload string
}

func (e *UnavailableError) Error() string { return "oracle: " + e.Payload }

// Generator is the slice of the provider ensemble the oracle needs.
type Generator interface {
	Generate(ctx context.Context, req ensemble.Request) ensemble.Result
}

// MemorySource supplies the memories index.
type MemorySource interface {
	Memories() []vault.Memory
}

// Selection is the oracle's answer.
type Selection struct {
	Reasoning string `json:"reasoning"`
	FilePath  string `json:"file_path"`
	Message   string `json:"poetic_message"`
	MediaKind string `json:"media_kind"`
	Provider  string `json:"provider"`
}

const pickPromptTmpl = `You are the magical curator of a couple's love story.
User (%s) is feeling: '%s'.
Target Persona (Author of message): %s.
Here are the available memories: %s
Task: 1. Analyze the user's mood ('%s') deeply. 2. Select the ONE memory from the provided list that BEST resonates with this mood. Do NOT just pick the first one. 3. Write a short, poetic, loving message.
Return STRICT JSON format: {"reasoning": "Why I chose this memory for this mood...", "file_path": "assets/Filename.ext", "poetic_message": "Your message here..."}`

// Config wires an Oracle.
type Config struct {
	Generator Generator
	Memories  MemorySource
	Personas  *persona.Registry
	Logger    *slog.Logger
}

// Oracle curates memories by mood. Safe for concurrent use.
type Oracle struct {
	generator Generator
	memories  MemorySource
	personas  *persona.Registry
	logger    *slog.Logger
}

// New returns an Oracle.
func New(cfg Config) *Oracle {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Oracle{
		generator: cfg.Generator,
		memories:  cfg.Memories,
		personas:  cfg.Personas,
		logger:    cfg.Logger,
	}
}

// Pick selects the memory resonating with mood, writing its note in the
// voice of current's partner.
func (o *Oracle) Pick(ctx context.Context, current, mood string) (Selection, error) {
	memories := o.memories.Memories()
	if len(memories) == 0 {
		return Selection{}, ErrNoMemories
	}

	partner, ok := o.personas.Partner(current)
	if !ok {
		return Selection{}, fmt.Errorf("oracle: unknown persona %q", current)
	}

	index, err := json.Marshal(memories)
	if err != nil {
		return Selection{}, fmt.Errorf("oracle: encode memories index: %w", err)
	}

	prompt := fmt.Sprintf(pickPromptTmpl, current, mood, partner.Name, index, mood)

	res := o.generator.Generate(ctx, ensemble.Request{Prompt: prompt, JSONMode: true})
	if res.Failed() {
		return Selection{}, &UnavailableError{Payload: res.Text}
	}

	var answer struct {
		Reasoning     string `json:"reasoning"`
		FilePath      string `json:"file_path"`
		PoeticMessage string `json:"poetic_message"`
	}
	if err := json.Unmarshal([]byte(stripFences(res.Text)), &answer); err != nil {
		o.logger.Warn("oracle: unparseable answer", "provider", res.Provider, "raw", res.Text)
		return Selection{}, fmt.Errorf("%w from %s: %q", ErrGibberish, res.Provider, res.Text)
	}
	if answer.FilePath == "" || answer.PoeticMessage == "" {
		o.logger.Warn("oracle: incomplete answer", "provider", res.Provider, "raw", res.Text)
		return Selection{}, fmt.Errorf("%w from %s: %q", ErrGibberish, res.Provider, res.Text)
	}

	return Selection{
		Reasoning: answer.Reasoning,
		FilePath:  answer.FilePath,
		Message:   answer.PoeticMessage,
		MediaKind: vault.MediaKind(answer.FilePath),
		Provider:  res.Provider,
	}, nil
}

// stripFences peels the markdown fences models habitually wrap JSON in
// even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
