package ensemble

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Mistral and Groq both expose the OpenAI-compatible chat completions
// surface, so one wire client serves them both.
const (
	defaultMistralBaseURL = "https://api.mistral.ai/v1"
	defaultMistralModel   = "mistral-large-latest"

	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.3-70b-versatile"

	// maxResponseBytes caps how much of a completion response is read.
	maxResponseBytes = 1 << 20
)

// ProviderConfig configures one OpenAI-compatible provider. BaseURL and
// Model default per provider; the HTTP client defaults to a plain one,
// with the attempt deadline supplied by the caller's context.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// NewMistral returns the Mistral provider, second in the default chain.
func NewMistral(cfg ProviderConfig) Provider {
	return newWireClient("Mistral", "Mistral Large", defaultMistralBaseURL, defaultMistralModel, cfg)
}

// NewGroq returns the Groq provider, the last resort of the default
// chain.
func NewGroq(cfg ProviderConfig) Provider {
	return newWireClient("Groq", "Groq Llama 3", defaultGroqBaseURL, defaultGroqModel, cfg)
}

type wireClient struct {
	name        string
	displayName string
	apiKey      string
	baseURL     string
	model       string
	client      *http.Client
}

func newWireClient(name, displayName, defaultBaseURL, defaultModel string, cfg ProviderConfig) *wireClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &wireClient{
		name:        name,
		displayName: displayName,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		client:      cfg.HTTPClient,
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireFormat struct {
	Type string `json:"type"`
}

type wireRequest struct {
	Model          string        `json:"model"`
	Messages       []wireMessage `json:"messages"`
	ResponseFormat *wireFormat   `json:"response_format,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Name implements Provider.
func (c *wireClient) Name() string { return c.name }

// DisplayName implements Provider.
func (c *wireClient) DisplayName() string { return c.displayName }

// Generate implements Provider.
func (c *wireClient) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]wireMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, wireMessage{Role: "user", Content: req.Prompt})

	body := wireRequest{Model: c.model, Messages: messages}
	if req.JSONMode {
		body.ResponseFormat = &wireFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call chat completions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	// An explicit API error beats a bare status code in usefulness.
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("empty completion")
	}
	return content, nil
}
