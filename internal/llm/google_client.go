package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/platinummonkey/regionscan/internal/logger"
	"google.golang.org/api/option"
)

// GoogleClient implements Client for the Gemini API
type GoogleClient struct {
	client      *genai.Client
	logger      *logger.Logger
	temperature float64
}

// NewGoogleClient creates a new Gemini client authenticated with an API key
func NewGoogleClient(ctx context.Context, apiKey string, temperature float64, log *logger.Logger) (*GoogleClient, error) {
	if log == nil {
		log = logger.Get()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GoogleClient{
		client:      client,
		logger:      log,
		temperature: temperature,
	}, nil
}

func (g *GoogleClient) model(name, system string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(name)
	m.SetTemperature(float32(g.temperature))
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return m
}

// Complete runs a text generation with an optional system instruction
func (g *GoogleClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	g.logger.WithFields("model", model, "provider", "google").Debug("Requesting completion")

	resp, err := g.model(model, system).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", wrapError("google", err)
	}
	return geminiText(resp)
}

// Recognize reads a cropped field image with Gemini
func (g *GoogleClient) Recognize(ctx context.Context, model string, imageData string) ([]Word, error) {
	g.logger.WithFields("model", model, "provider", "google").Debug("Recognizing image")

	imgBytes, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}

	m := g.model(model, "")
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(recognizePrompt), genai.ImageData("png", imgBytes))
	if err != nil {
		return nil, wrapError("google", err)
	}

	content, err := geminiText(resp)
	if err != nil {
		return nil, err
	}
	words, err := parseWords(content)
	if err != nil {
		g.logger.WithFields("content", content).Debug("Failed to parse Gemini recognition response")
		return nil, wrapError("google", err)
	}
	return words, nil
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", wrapError("google", fmt.Errorf("no candidates in response"))
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", wrapError("google", fmt.Errorf("no text content in response"))
	}
	return sb.String(), nil
}

// HealthCheck verifies that the Gemini API is accessible
func (g *GoogleClient) HealthCheck(ctx context.Context, model string) error {
	if _, err := g.client.GenerativeModel(model).GenerateContent(ctx, genai.Text("ping")); err != nil {
		return fmt.Errorf("gemini health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (g *GoogleClient) Name() string {
	return string(ProviderGoogle)
}

// Close closes the Google client
func (g *GoogleClient) Close() error {
	return g.client.Close()
}
