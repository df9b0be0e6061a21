// Package llm provides language-model clients used for OCR text correction and
// vision-based recognition.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/ollama"
)

// Word is a recognized token with the model's confidence in [0,1]
type Word = ollama.Word

// Client is implemented by every supported provider
type Client interface {
	// Complete runs a single-turn completion and returns the model's text
	Complete(ctx context.Context, model, system, prompt string) (string, error)

	// Recognize reads a base64-encoded PNG and returns the words it contains
	Recognize(ctx context.Context, model string, imageData string) ([]Word, error)

	// HealthCheck verifies that the provider is accessible and the model is usable
	HealthCheck(ctx context.Context, model string) error

	// Name returns the name of the provider (e.g., "ollama", "openai")
	Name() string
}

// ProviderType represents the type of LLM provider
type ProviderType string

const (
	// ProviderOllama represents a local Ollama instance
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI represents OpenAI's chat completions API
	ProviderOpenAI ProviderType = "openai"

	// ProviderAnthropic represents Anthropic's Messages API
	ProviderAnthropic ProviderType = "anthropic"

	// ProviderGoogle represents the Gemini API with an API key
	ProviderGoogle ProviderType = "google"

	// ProviderVertex represents Gemini on Vertex AI with application default credentials
	ProviderVertex ProviderType = "vertex"
)

// Config holds common configuration for all clients
type Config struct {
	// Provider is the LLM provider type
	Provider ProviderType

	// Model is the specific model to use
	Model string

	// Endpoint is the API endpoint (required for Ollama)
	Endpoint string

	// APIKey is the API key for cloud providers (read from env vars)
	APIKey string

	// MaxRetries is the retry budget for transient failures
	MaxRetries int

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float64

	// Project and Region locate the Vertex AI endpoint
	Project string
	Region  string
}

// recognizePrompt is shared by the cloud providers, which return JSON objects
const recognizePrompt = `Read the text in this cropped image of a single form field from a scanned business document.
Return ONLY valid JSON with no markdown formatting, no code blocks, no explanation.

Format:
{
  "words": [
    {"text": "word", "confidence": 0.95}
  ]
}

Rules:
- Copy characters exactly as printed, including $ , . / - symbols
- confidence is 0.0-1.0, use 0.5 if uncertain
- Return {"words": []} if no text is visible`

// parseWords decodes a recognition reply, tolerating markdown code fences
func parseWords(content string) ([]Word, error) {
	return ollama.ParseWords(StripFences(content))
}

// StripFences removes a surrounding ```lang ... ``` block if present
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// wrapError tags provider errors so callers can tell timeouts from service failures
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", model.ErrAITimeout, provider, err)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrAIService, provider, err)
}
