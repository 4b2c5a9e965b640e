package ensemble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	// Model defaults to gemini-2.0-flash.
	Model string
}

// Gemini calls Google's Gemini API through the official genai SDK. It
// runs first in the default chain.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds the Gemini provider. The context covers credential
// setup inside the SDK, not later Generate calls.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return "Gemini" }

// DisplayName implements Provider.
func (g *Gemini) DisplayName() string { return "Gemini 2.0 Flash" }

// Generate implements Provider.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "text/plain",
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty response")
	}
	return text, nil
}

// Close releases the underlying SDK client. The genai SDK client holds
// no resources that need explicit closing.
func (g *Gemini) Close() error {
	return nil
}
