package llm

import (
	"context"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/ollama"
)

// OllamaClient adapts the Ollama HTTP client to Client
type OllamaClient struct {
	client      *ollama.Client
	logger      *logger.Logger
	temperature float64
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(endpoint string, temperature float64, maxRetries int, log *logger.Logger) *OllamaClient {
	if log == nil {
		log = logger.Get()
	}

	clientOpts := []ollama.ClientOption{
		ollama.WithLogger(log),
		ollama.WithMaxRetries(maxRetries),
	}

	if endpoint != "" {
		clientOpts = append(clientOpts, ollama.WithEndpoint(endpoint))
	}

	return &OllamaClient{
		client:      ollama.NewClient(clientOpts...),
		logger:      log,
		temperature: temperature,
	}
}

// Complete runs a text completion
func (o *OllamaClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	out, err := o.client.Complete(ctx, model, system, prompt, o.temperature)
	if err != nil {
		return "", wrapError("ollama", err)
	}
	return out, nil
}

// Recognize reads a base64-encoded image with a vision model
func (o *OllamaClient) Recognize(ctx context.Context, model string, imageData string) ([]Word, error) {
	words, err := o.client.Recognize(ctx, model, imageData)
	if err != nil {
		return nil, wrapError("ollama", err)
	}
	return words, nil
}

// HealthCheck verifies that Ollama is accessible and the model is installed.
// Missing models are pulled.
func (o *OllamaClient) HealthCheck(ctx context.Context, model string) error {
	if err := o.client.HealthCheck(ctx); err != nil {
		return err
	}

	found, err := o.client.HasModel(ctx, model)
	if err != nil {
		return err
	}

	if !found {
		o.logger.WithFields("model", model).Info("Model not found, pulling...")
		if err := o.client.PullModel(ctx, model); err != nil {
			return err
		}
	}

	return nil
}

// Name returns the provider name
func (o *OllamaClient) Name() string {
	return string(ProviderOllama)
}
