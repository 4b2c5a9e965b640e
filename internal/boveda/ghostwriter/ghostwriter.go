// Package ghostwriter drafts chat replies in the partner's voice.
//
// The ghost is primed with the tail of the couple's exported chat
// transcript and told to be the partner, not to imitate one. Replies
// come back as plain text; when every provider fails the malfunction
// notice becomes the reply rather than an error, so the conversation
// surface never breaks.
package ghostwriter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ensemble"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/persona"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/session"
)

const systemPromptTmpl = `You are simulating %s in a WhatsApp conversation with %s.
Here is the COMPLETE chat history between them: %s
RULES: 1. Analyze the history DEEPLY. Mimic %s's exact slang, emoji usage, sentence length, and tone. 2. Reply directly to the user's last message. 3. Do NOT sound like an AI. Be the person. 4. Reply ONLY with the message text.`

// Generator is the slice of the provider ensemble the ghost needs.
type Generator interface {
	Generate(ctx context.Context, req ensemble.Request) ensemble.Result
}

// HistorySource supplies the transcript tail used to prime the ghost.
type HistorySource interface {
	ChatHistory() string
}

// Reply is one ghost answer.
type Reply struct {
	Text     string `json:"reply"`
	Provider string `json:"provider"`
}

// Config wires a GhostWriter.
type Config struct {
	Generator Generator
	History   HistorySource
	Personas  *persona.Registry
	Logger    *slog.Logger
}

// GhostWriter keeps the conversation going. Safe for concurrent use.
type GhostWriter struct {
	generator Generator
	history   HistorySource
	personas  *persona.Registry
	logger    *slog.Logger
}

// New returns a GhostWriter.
func New(cfg Config) *GhostWriter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GhostWriter{
		generator: cfg.Generator,
		history:   cfg.History,
		personas:  cfg.Personas,
		logger:    cfg.Logger,
	}
}

// Reply answers message as the partner of the session's persona, and
// records both turns in the session transcript. The session must be
// identified first.
func (g *GhostWriter) Reply(ctx context.Context, sess *session.Session, message string) (Reply, error) {
	current := sess.Persona()
	partner, ok := g.personas.Partner(current)
	if !ok {
		return Reply{}, fmt.Errorf("ghostwriter: unknown persona %q", current)
	}

	system := fmt.Sprintf(systemPromptTmpl, partner.Name, current, g.history.ChatHistory(), partner.Name)
	prompt := fmt.Sprintf("User (%s) says: %s", current, message)

	res := g.generator.Generate(ctx, ensemble.Request{System: system, Prompt: prompt})
	if res.Failed() {
		g.logger.Warn("ghostwriter: all providers failed, returning malfunction notice")
	}

	sess.AppendTurn(current, message)
	sess.AppendTurn(partner.Name, res.Text)

	return Reply{Text: res.Text, Provider: res.Provider}, nil
}
