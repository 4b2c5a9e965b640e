package ghostwriter_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ensemble"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/ghostwriter"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/persona"
	"github.com/realarmaansidhu/NuestraBoveda/internal/boveda/session"
)

type stubGenerator struct {
	result  ensemble.Result
	lastReq ensemble.Request
}

func (s *stubGenerator) Generate(ctx context.Context, req ensemble.Request) ensemble.Result {
	s.lastReq = req
	return s.result
}

type stubHistory string

func (s stubHistory) ChatHistory() string { return string(s) }

func newGhost(t *testing.T, gen *stubGenerator, history string) *ghostwriter.GhostWriter {
	t.Helper()
	return ghostwriter.New(ghostwriter.Config{
		Generator: gen,
		History:   stubHistory(history),
		Personas:  persona.Default(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func identifiedSession(t *testing.T, name string) *session.Session {
	t.Helper()
	m := session.NewManager(session.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	s := m.Create()
	s.Unlock()
	s.Identify(name)
	return s
}

func TestGhostWriter_RepliesAsPartner(t *testing.T) {
	gen := &stubGenerator{result: ensemble.Result{Text: "jaja miss you too", Provider: "Groq"}}
	g := newGhost(t, gen, "[1/1/26, 00:01] Armaan: feliz año mi amor")
	sess := identifiedSession(t, "Anghily")

	reply, err := g.Reply(context.Background(), sess, "miss you")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.Text != "jaja miss you too" || reply.Provider != "Groq" {
		t.Errorf("Reply = %+v", reply)
	}

	req := gen.lastReq
	if req.JSONMode {
		t.Error("ghost requests must be plain text, not JSON mode")
	}
	for _, want := range []string{
		"You are simulating Armaan in a WhatsApp conversation with Anghily.",
		"feliz año mi amor",
		"Mimic Armaan's exact slang",
	} {
		if !strings.Contains(req.System, want) {
			t.Errorf("system instruction missing %q", want)
		}
	}
	if req.Prompt != "User (Anghily) says: miss you" {
		t.Errorf("prompt = %q", req.Prompt)
	}
}

func TestGhostWriter_RecordsBothTurns(t *testing.T) {
	gen := &stubGenerator{result: ensemble.Result{Text: "on my way", Provider: "Gemini"}}
	g := newGhost(t, gen, "")
	sess := identifiedSession(t, "Armaan")

	if _, err := g.Reply(context.Background(), sess, "where are you?"); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	turns := sess.Transcript()
	if len(turns) != 2 {
		t.Fatalf("len(Transcript) = %d, want 2", len(turns))
	}
	if turns[0].Speaker != "Armaan" || turns[0].Text != "where are you?" {
		t.Errorf("turns[0] = %+v", turns[0])
	}
	if turns[1].Speaker != "Anghily" || turns[1].Text != "on my way" {
		t.Errorf("turns[1] = %+v", turns[1])
	}
}

func TestGhostWriter_MalfunctionNoticeBecomesReply(t *testing.T) {
	notice := "System Malfunction. All AI Cores Unresponsive. Errors: [Gemini failed: x]"
	gen := &stubGenerator{result: ensemble.Result{Text: notice, Provider: ensemble.FallbackProvider}}
	g := newGhost(t, gen, "")
	sess := identifiedSession(t, "Anghily")

	reply, err := g.Reply(context.Background(), sess, "hola?")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.Provider != ensemble.FallbackProvider || reply.Text != notice {
		t.Errorf("Reply = %+v, want the malfunction notice passed through", reply)
	}
	if len(sess.Transcript()) != 2 {
		t.Error("malfunction replies should still be recorded in the transcript")
	}
}

func TestGhostWriter_UnidentifiedSession(t *testing.T) {
	gen := &stubGenerator{}
	g := newGhost(t, gen, "")

	m := session.NewManager(session.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	sess := m.Create()

	if _, err := g.Reply(context.Background(), sess, "hola"); err == nil {
		t.Error("expected error for a session without a persona")
	}
}
