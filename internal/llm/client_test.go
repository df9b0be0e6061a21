package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config is nil"},
		{"invalid provider", &Config{Provider: "cohere", Model: "x"}, "invalid provider"},
		{"missing model", &Config{Provider: ProviderOllama, Endpoint: "http://x"}, "model is required"},
		{"ollama without endpoint", &Config{Provider: ProviderOllama, Model: "llama3.1"}, "endpoint is required"},
		{"openai without key", &Config{Provider: ProviderOpenAI, Model: "gpt-4o"}, "API key is required"},
		{"vertex without project", &Config{Provider: ProviderVertex, Model: "gemini"}, "project and region"},
		{"bad temperature", &Config{Provider: ProviderOllama, Model: "m", Endpoint: "http://x", Temperature: 3}, "temperature"},
		{"too many retries", &Config{Provider: ProviderOllama, Model: "m", Endpoint: "http://x", MaxRetries: 2}, "max retries"},
		{"valid ollama", &Config{Provider: ProviderOllama, Model: "m", Endpoint: "http://x", MaxRetries: 1}, ""},
		{"valid anthropic", &Config{Provider: ProviderAnthropic, Model: "m", APIKey: "k"}, ""},
		{"valid vertex", &Config{Provider: ProviderVertex, Model: "m", Project: "p", Region: "us-central1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateConfig() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateConfig() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultModel(t *testing.T) {
	for _, p := range []ProviderType{ProviderOllama, ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderVertex} {
		if DefaultModel(p) == "" {
			t.Errorf("DefaultModel(%s) is empty", p)
		}
	}
	if DefaultModel("unknown") != "" {
		t.Error("expected empty default for unknown provider")
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"words": []}`, `{"words": []}`},
		{"```json\n{\"words\": []}\n```", `{"words": []}`},
		{"```\n[]\n```", `[]`},
		{"  $1,200.00  ", `$1,200.00`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrapError(t *testing.T) {
	timeout := wrapError("openai", fmt.Errorf("post: %w", context.DeadlineExceeded))
	if !errors.Is(timeout, model.ErrAITimeout) || model.KindOf(timeout) != model.KindAITimeout {
		t.Errorf("expected timeout kind, got %v", timeout)
	}

	svc := wrapError("openai", errors.New("502 bad gateway"))
	if !errors.Is(svc, model.ErrAIService) || model.KindOf(svc) != model.KindAIService {
		t.Errorf("expected service kind, got %v", svc)
	}

	if wrapError("x", nil) != nil {
		t.Error("wrapError(nil) should be nil")
	}
}

func TestNewClient_Ollama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte("Ollama is running"))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models": [{"name": "llama3.1:latest"}]}`))
		case "/api/generate":
			_, _ = w.Write([]byte(`{"response": "$1,200.00", "done": true}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), &Config{
		Provider: ProviderOllama,
		Model:    "llama3.1",
		Endpoint: server.URL,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if client.Name() != "ollama" {
		t.Errorf("Name() = %s", client.Name())
	}

	if err := client.HealthCheck(context.Background(), "llama3.1"); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	out, err := client.Complete(context.Background(), "llama3.1", "system", "$1,2OO.OO")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "$1,200.00" {
		t.Errorf("Complete() = %q", out)
	}
}

func TestOllamaClient_ErrorsAreTagged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "bad request"}`))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, 0, 0, logger.Nop())
	_, err := client.Complete(context.Background(), "m", "", "p")
	if model.KindOf(err) != model.KindAIService {
		t.Errorf("KindOf() = %s, want AIServiceError", model.KindOf(err))
	}

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = NewOllamaClient(slow.URL, 0, 0, logger.Nop()).Complete(ctx, "m", "", "p")
	if model.KindOf(err) != model.KindAITimeout {
		t.Errorf("KindOf() = %s, want AITimeout (err=%v)", model.KindOf(err), err)
	}
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), &Config{Provider: ProviderOpenAI, Model: "gpt-4o"}, logger.Nop()); err == nil {
		t.Error("expected error for missing API key")
	}
}
