package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/platinummonkey/regionscan/internal/logger"
)

// AnthropicClient implements Client for Anthropic's Claude API
type AnthropicClient struct {
	client      anthropic.Client
	logger      *logger.Logger
	temperature float64
}

// NewAnthropicClient creates a new Anthropic Claude client
func NewAnthropicClient(apiKey string, temperature float64, maxRetries int, log *logger.Logger) *AnthropicClient {
	if log == nil {
		log = logger.Get()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(opts...),
		logger:      log,
		temperature: temperature,
	}
}

// Complete sends a single user message with a system prompt
func (a *AnthropicClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	a.logger.WithFields("model", model, "provider", "anthropic").Debug("Requesting completion")

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(a.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapError("anthropic", err)
	}
	return firstText(resp)
}

// Recognize reads a cropped field image with Claude's vision support
func (a *AnthropicClient) Recognize(ctx context.Context, model string, imageData string) ([]Word, error) {
	a.logger.WithFields("model", model, "provider", "anthropic").Debug("Recognizing image")

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(recognizePrompt),
				anthropic.NewImageBlockBase64("image/png", imageData),
			),
		},
		Temperature: anthropic.Float(a.temperature),
	})
	if err != nil {
		return nil, wrapError("anthropic", err)
	}

	content, err := firstText(resp)
	if err != nil {
		return nil, err
	}

	words, err := parseWords(content)
	if err != nil {
		a.logger.WithFields("content", content).Debug("Failed to parse Anthropic recognition response")
		return nil, wrapError("anthropic", err)
	}
	return words, nil
}

func firstText(resp *anthropic.Message) (string, error) {
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", wrapError("anthropic", fmt.Errorf("no text content in response"))
}

// HealthCheck verifies that the Anthropic API is accessible
func (a *AnthropicClient) HealthCheck(ctx context.Context, model string) error {
	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (a *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}
