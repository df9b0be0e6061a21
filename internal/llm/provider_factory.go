package llm

import (
	"context"
	"fmt"

	"github.com/platinummonkey/regionscan/internal/logger"
)

// NewClient creates a client based on the provider configuration
func NewClient(ctx context.Context, cfg *Config, log *logger.Logger) (Client, error) {
	if log == nil {
		log = logger.Get()
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaClient(cfg.Endpoint, cfg.Temperature, cfg.MaxRetries, log), nil

	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Temperature, cfg.MaxRetries, log), nil

	case ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Temperature, cfg.MaxRetries, log), nil

	case ProviderGoogle:
		client, err := NewGoogleClient(ctx, cfg.APIKey, cfg.Temperature, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google client: %w", err)
		}
		return client, nil

	case ProviderVertex:
		client, err := NewVertexClient(ctx, cfg.Project, cfg.Region, cfg.Temperature, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: ollama, openai, anthropic, google, vertex)", cfg.Provider)
	}
}

// ValidateConfig validates that the provider configuration is complete and correct
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("llm client config is nil")
	}

	validProviders := map[ProviderType]bool{
		ProviderOllama:    true,
		ProviderOpenAI:    true,
		ProviderAnthropic: true,
		ProviderGoogle:    true,
		ProviderVertex:    true,
	}

	if !validProviders[cfg.Provider] {
		return fmt.Errorf("invalid provider: %s", cfg.Provider)
	}

	if cfg.Model == "" {
		return fmt.Errorf("model is required")
	}

	switch cfg.Provider {
	case ProviderOllama:
		if cfg.Endpoint == "" {
			return fmt.Errorf("endpoint is required for Ollama provider")
		}

	case ProviderVertex:
		if cfg.Project == "" || cfg.Region == "" {
			return fmt.Errorf("project and region are required for Vertex AI provider")
		}

	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		if cfg.APIKey == "" {
			return fmt.Errorf("API key is required for %s provider", cfg.Provider)
		}
	}

	if cfg.Temperature < 0.0 || cfg.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", cfg.Temperature)
	}

	if cfg.MaxRetries < 0 || cfg.MaxRetries > 1 {
		return fmt.Errorf("max retries must be 0 or 1, got %d", cfg.MaxRetries)
	}

	return nil
}

// DefaultModel returns a recommended default model for the given provider
func DefaultModel(provider ProviderType) string {
	switch provider {
	case ProviderOllama:
		return "llama3.1"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderGoogle, ProviderVertex:
		return "gemini-1.5-flash"
	default:
		return ""
	}
}
