// Package ollama is a small HTTP client for a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platinummonkey/regionscan/internal/logger"
)

const (
	// DefaultEndpoint is the default Ollama API endpoint
	DefaultEndpoint = "http://localhost:11434"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxRetries is the default number of retries on transient failures
	DefaultMaxRetries = 1

	// DefaultRetryDelay is the initial delay between retries
	DefaultRetryDelay = 500 * time.Millisecond

	// MaxFieldTokens caps the reply length for a single field value
	MaxFieldTokens = 64
)

// RecognizePrompt asks a vision model to read a cropped form field
const RecognizePrompt = `Read the text in this cropped image of a single form field from a scanned business document.
Return ONLY a JSON array with no additional text or explanation.
Each object must have:
- "text": one word or token exactly as printed
- "confidence": your confidence in the reading, 0.0-1.0

Example format:
[
  {"text": "$1,200.00", "confidence": 0.93}
]

If no text is visible, return an empty array: []`

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama API error (status %d): %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the Ollama API
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
	maxRetries int
	retryDelay time.Duration
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithEndpoint sets the Ollama API endpoint
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(log *logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = log
	}
}

// WithMaxRetries sets the maximum number of retries
func WithMaxRetries(maxRetries int) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the initial retry delay
func WithRetryDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

// NewClient creates a new Ollama client
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		endpoint: DefaultEndpoint,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:     logger.Get(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// doRequest performs an HTTP request with retry logic. Transport errors and 5xx
// responses are retried; 4xx responses are returned immediately.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, response interface{}) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1)) // exponential backoff
			c.logger.Debugf("Retrying request (attempt %d/%d) after %v", attempt, c.maxRetries, delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retry, err := c.attempt(ctx, method, path, payload, response)
		if err == nil {
			return nil
		}
		if !retry || ctx.Err() != nil {
			return err
		}
		lastErr = err
		c.logger.WithError(lastErr).Debug("Ollama request failed")
	}

	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, response interface{}) (bool, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			statusErr.Message = errResp.Error
		}
		return resp.StatusCode >= 500, statusErr
	}

	if response != nil {
		if err := json.Unmarshal(respBody, response); err != nil {
			return false, fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return false, nil
}

// Generate sends a non-streaming generation request
func (c *Client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Debugw("Ollama generation finished",
		"model", resp.Model,
		"eval_count", resp.EvalCount,
		"elapsed", resp.Elapsed())
	return &resp, nil
}

// Complete corrects or completes a short field value
func (c *Client) Complete(ctx context.Context, model, system, prompt string, temperature float64) (string, error) {
	resp, err := c.Generate(ctx, &GenerateRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Options: &Options{
			Temperature: temperature,
			NumPredict:  MaxFieldTokens,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// Recognize asks a vision model to read a base64-encoded field crop
func (c *Client) Recognize(ctx context.Context, model string, imageData string) ([]Word, error) {
	resp, err := c.Generate(ctx, &GenerateRequest{
		Model:   model,
		Prompt:  RecognizePrompt,
		Images:  []string{imageData},
		Format:  "json",
		Options: &Options{NumPredict: 4 * MaxFieldTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to recognize image: %w", err)
	}
	return ParseWords(resp.Response)
}

// ParseWords decodes a vision-model reply. Both a bare array and an object with
// a "words" field are accepted since models do not always follow the prompt.
func ParseWords(content string) ([]Word, error) {
	var words []Word
	if err := json.Unmarshal([]byte(content), &words); err == nil {
		return words, nil
	}

	var wrapped struct {
		Words []Word `json:"words"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse recognition response as array or object: %w", err)
	}
	return wrapped.Words, nil
}

// PullModel downloads a model and blocks until the pull finishes
func (c *Client) PullModel(ctx context.Context, model string) error {
	var resp pullResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/pull", &pullRequest{Model: model}, &resp); err != nil {
		return err
	}
	c.logger.Infow("Model pulled", "model", model, "status", resp.Status)
	return nil
}

// HasModel reports whether the named model (or its :latest tag) is installed
func (c *Client) HasModel(ctx context.Context, model string) (bool, error) {
	var tags tagsResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return false, err
	}
	for _, m := range tags.Models {
		if m.Name == model || m.Name == model+":latest" {
			return true, nil
		}
	}
	return false, nil
}

// HealthCheck verifies that Ollama is running and accessible
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
