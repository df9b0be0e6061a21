package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/platinummonkey/regionscan/internal/logger"
)

// OpenAIClient implements Client for OpenAI's chat completions API
type OpenAIClient struct {
	client      openai.Client
	logger      *logger.Logger
	temperature float64
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string, temperature float64, maxRetries int, log *logger.Logger) *OpenAIClient {
	if log == nil {
		log = logger.Get()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(maxRetries),
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		logger:      log,
		temperature: temperature,
	}
}

// Complete sends a system and user message pair
func (o *OpenAIClient) Complete(ctx context.Context, model, system, prompt string) (string, error) {
	o.logger.WithFields("model", model, "provider", "openai").Debug("Requesting completion")

	var messages []openai.ChatCompletionMessageParamUnion
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    messages,
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return "", wrapError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", wrapError("openai", fmt.Errorf("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Recognize reads a cropped field image with a vision-capable model
func (o *OpenAIClient) Recognize(ctx context.Context, model string, imageData string) ([]Word, error) {
	o.logger.WithFields("model", model, "provider", "openai").Debug("Recognizing image")

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(recognizePrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: fmt.Sprintf("data:image/png;base64,%s", imageData),
				}),
			}),
		},
		Temperature: openai.Float(o.temperature),
	})
	if err != nil {
		return nil, wrapError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return nil, wrapError("openai", fmt.Errorf("no choices in response"))
	}

	content := resp.Choices[0].Message.Content
	words, err := parseWords(content)
	if err != nil {
		o.logger.WithFields("content", content).Debug("Failed to parse OpenAI recognition response")
		return nil, wrapError("openai", err)
	}
	return words, nil
}

// HealthCheck verifies that the OpenAI API is accessible and the model exists
func (o *OpenAIClient) HealthCheck(ctx context.Context, model string) error {
	if _, err := o.client.Models.Get(ctx, model); err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

// Name returns the provider name
func (o *OpenAIClient) Name() string {
	return string(ProviderOpenAI)
}
