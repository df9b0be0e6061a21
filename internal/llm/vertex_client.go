package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/platinummonkey/regionscan/internal/logger"
)

// VertexClient implements Client for Gemini models served from Vertex AI.
// Credentials come from the environment (application default credentials).
type VertexClient struct {
	client      *genai.Client
	logger      *logger.Logger
	temperature float64
}

// NewVertexClient creates a client bound to a project and region
func NewVertexClient(ctx context.Context, projectID, region string, temperature float64, log *logger.Logger) (*VertexClient, error) {
	if log == nil {
		log = logger.Get()
	}
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("projectID and region cannot be empty")
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		client:      client,
		logger:      log,
		temperature: temperature,
	}, nil
}

func (v *VertexClient) model(name, system string) *genai.GenerativeModel {
	m := v.client.GenerativeModel(name)
	m.SetTemperature(float32(v.temperature))
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return m
}

// Complete runs a text generation with an optional system instruction
func (v *VertexClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	v.logger.WithFields("model", model, "provider", "vertex").Debug("Requesting completion")

	resp, err := v.model(model, system).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", wrapError("vertex", err)
	}
	return vertexText(resp)
}

// Recognize reads a cropped field image
func (v *VertexClient) Recognize(ctx context.Context, model string, imageData string) ([]Word, error) {
	imgBytes, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}

	m := v.model(model, "")
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(recognizePrompt), genai.ImageData("png", imgBytes))
	if err != nil {
		return nil, wrapError("vertex", err)
	}

	content, err := vertexText(resp)
	if err != nil {
		return nil, err
	}
	words, err := parseWords(content)
	if err != nil {
		v.logger.WithFields("content", content).Debug("Failed to parse Vertex recognition response")
		return nil, wrapError("vertex", err)
	}
	return words, nil
}

func vertexText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", wrapError("vertex", fmt.Errorf("no candidates in response"))
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", wrapError("vertex", fmt.Errorf("no text content in response"))
	}
	return sb.String(), nil
}

// HealthCheck verifies that the Vertex AI endpoint answers for the model
func (v *VertexClient) HealthCheck(ctx context.Context, model string) error {
	if _, err := v.client.GenerativeModel(model).GenerateContent(ctx, genai.Text("ping")); err != nil {
		return fmt.Errorf("vertex health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (v *VertexClient) Name() string {
	return string(ProviderVertex)
}

// Close releases the underlying gRPC connection
func (v *VertexClient) Close() error {
	return v.client.Close()
}
