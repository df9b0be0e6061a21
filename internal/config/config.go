// Package config provides configuration management for regionscan.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for an extraction run.
// Configuration precedence: CLI flags > Environment variables > Config file > Defaults
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFormat is "console" or "json"
	LogFormat string

	// OCR configures the recognition engine and its worker pool
	OCR OCRConfig

	// AI configures the language-model text corrector
	AI AIConfig

	// ConfidenceFloor flags results whose OCR confidence falls below it for review
	ConfidenceFloor float64

	// ClassifierThreshold is the minimum score for a document type to be reported
	ClassifierThreshold float64

	// DrainTimeout bounds how long in-flight regions may run after cancellation
	DrainTimeout time.Duration

	// RenderDPI is the rasterization resolution used for PDF pages
	RenderDPI int

	// Store selects where finished runs are persisted
	Store StoreConfig
}

// OCRConfig holds configuration for the OCR adapter
type OCRConfig struct {
	// Engine is the recognition backend (tesseract, azure, vision)
	Engine string

	// Languages are Tesseract language codes (e.g. "eng", "eng+fra")
	Languages string

	// Concurrency is the region worker pool size
	Concurrency int

	// Preprocess enables grayscale/contrast/sharpen before recognition
	Preprocess bool

	// AzureEndpoint is the Computer Vision endpoint for the azure engine
	AzureEndpoint string

	// AzureKey is read from AZURE_VISION_KEY
	AzureKey string
}

// AIConfig holds configuration for LLM-based text enhancement
type AIConfig struct {
	// Enabled turns AI enhancement on; when false raw text passes through
	Enabled bool

	// RuleFallback selects the rule-based enhancer instead of pass-through
	// when AI is disabled or unreachable
	RuleFallback bool

	// Provider is the LLM provider (ollama, openai, anthropic, google, vertex)
	Provider string

	// Model is the specific model to use
	Model string

	// Endpoint is the API endpoint (primarily for Ollama)
	Endpoint string

	// APIKey is the API key for cloud providers, read from the provider's env var
	APIKey string

	// TimeoutSeconds bounds each enhancement call
	TimeoutSeconds int

	// Concurrency caps simultaneous AI calls
	Concurrency int

	// MaxRetries is the retry budget for transient network errors (0 or 1)
	MaxRetries int

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float64

	// VertexProject and VertexRegion locate the Vertex AI endpoint
	VertexProject string
	VertexRegion  string
}

// Timeout returns the per-call AI timeout as a duration
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// StoreConfig selects the result store
type StoreConfig struct {
	// Driver is file, postgres or firestore
	Driver string

	// DSN is a file path, a postgres DSN, or "project/collection" for firestore
	DSN string
}

// Load reads configuration from multiple sources and returns a validated Config.
// A .env file in the working directory is loaded first when present.
func Load(configFile string) (*Config, error) {
	return LoadWith(viper.New(), configFile)
}

// LoadWith is Load on a caller-supplied viper instance, typically one that
// already has command-line flags bound to it
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
			v.SetConfigName(".regionscan")
			v.SetConfigType("yaml")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("REGIONSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := FromViper(v)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// FromViper builds a Config from an already-populated viper instance
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		LogLevel:            v.GetString("log-level"),
		LogFormat:           v.GetString("log-format"),
		ConfidenceFloor:     v.GetFloat64("confidence-floor"),
		ClassifierThreshold: v.GetFloat64("classifier-threshold"),
		DrainTimeout:        v.GetDuration("drain-timeout"),
		RenderDPI:           v.GetInt("render-dpi"),
		OCR: OCRConfig{
			Engine:        v.GetString("ocr-engine"),
			Languages:     v.GetString("ocr-languages"),
			Concurrency:   v.GetInt("ocr-concurrency"),
			Preprocess:    v.GetBool("ocr-preprocess"),
			AzureEndpoint: v.GetString("azure-endpoint"),
			AzureKey:      os.Getenv("AZURE_VISION_KEY"),
		},
		AI: AIConfig{
			Enabled:        v.GetBool("ai-enabled"),
			RuleFallback:   v.GetBool("ai-rule-fallback"),
			Provider:       v.GetString("ai-provider"),
			Model:          v.GetString("ai-model"),
			Endpoint:       v.GetString("ai-endpoint"),
			TimeoutSeconds: v.GetInt("ai-timeout-seconds"),
			Concurrency:    v.GetInt("ai-concurrency"),
			MaxRetries:     v.GetInt("ai-max-retries"),
			Temperature:    v.GetFloat64("ai-temperature"),
			VertexProject:  v.GetString("vertex-project"),
			VertexRegion:   v.GetString("vertex-region"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store-driver"),
			DSN:    v.GetString("store-dsn"),
		},
	}
	cfg.AI.APIKey = loadAPIKeyForProvider(cfg.AI.Provider)
	return cfg
}

// Default returns the default configuration without reading files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := FromViper(v)
	cfg.AI.APIKey = ""
	cfg.OCR.AzureKey = ""
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("confidence-floor", 0.6)
	v.SetDefault("classifier-threshold", 0.5)
	v.SetDefault("drain-timeout", 45*time.Second)
	v.SetDefault("render-dpi", 200)

	v.SetDefault("ocr-engine", "tesseract")
	v.SetDefault("ocr-languages", "eng")
	v.SetDefault("ocr-concurrency", runtime.NumCPU())
	v.SetDefault("ocr-preprocess", true)
	v.SetDefault("azure-endpoint", "")

	// AI is opt-in
	v.SetDefault("ai-enabled", false)
	v.SetDefault("ai-rule-fallback", false)
	v.SetDefault("ai-provider", "ollama")
	v.SetDefault("ai-model", "llama3.1")
	v.SetDefault("ai-endpoint", "http://localhost:11434")
	v.SetDefault("ai-timeout-seconds", 30)
	v.SetDefault("ai-concurrency", 4)
	v.SetDefault("ai-max-retries", 1)
	v.SetDefault("ai-temperature", 0.0)
	v.SetDefault("vertex-project", "")
	v.SetDefault("vertex-region", "us-central1")

	v.SetDefault("store-driver", "file")
	v.SetDefault("store-dsn", defaultStorePath())
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return home + string(os.PathSeparator) + ".regionscan-runs.json"
}

// Validate checks that the configuration is valid and internally consistent
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log-level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence-floor must be between 0 and 1, got %f", c.ConfidenceFloor)
	}
	if c.ClassifierThreshold < 0 || c.ClassifierThreshold > 1 {
		return fmt.Errorf("classifier-threshold must be between 0 and 1, got %f", c.ClassifierThreshold)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("drain-timeout must be non-negative, got %s", c.DrainTimeout)
	}
	if c.RenderDPI <= 0 {
		return fmt.Errorf("render-dpi must be positive, got %d", c.RenderDPI)
	}

	if err := c.validateOCRConfig(); err != nil {
		return fmt.Errorf("invalid OCR configuration: %w", err)
	}

	if err := c.validateAIConfig(); err != nil {
		return fmt.Errorf("invalid AI configuration: %w", err)
	}

	switch c.Store.Driver {
	case "file", "postgres", "firestore":
	default:
		return fmt.Errorf("invalid store-driver %q, must be one of: file, postgres, firestore", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store-dsn cannot be empty")
	}

	return nil
}

func (c *Config) validateOCRConfig() error {
	c.OCR.Engine = strings.ToLower(c.OCR.Engine)
	switch c.OCR.Engine {
	case "tesseract":
		if c.OCR.Languages == "" {
			return fmt.Errorf("ocr-languages cannot be empty for the tesseract engine")
		}
	case "azure":
		if c.OCR.AzureEndpoint == "" || c.OCR.AzureKey == "" {
			return fmt.Errorf("azure engine requires azure-endpoint and AZURE_VISION_KEY")
		}
	case "vision":
		// reuses the AI provider settings
	default:
		return fmt.Errorf("invalid ocr-engine %q, must be one of: tesseract, azure, vision", c.OCR.Engine)
	}

	if c.OCR.Concurrency <= 0 {
		return fmt.Errorf("ocr-concurrency must be positive, got %d", c.OCR.Concurrency)
	}
	return nil
}

// validateAIConfig validates the LLM provider configuration
func (c *Config) validateAIConfig() error {
	if c.AI.TimeoutSeconds <= 0 {
		return fmt.Errorf("ai-timeout-seconds must be positive, got %d", c.AI.TimeoutSeconds)
	}
	if c.AI.Concurrency <= 0 {
		return fmt.Errorf("ai-concurrency must be positive, got %d", c.AI.Concurrency)
	}
	if c.AI.MaxRetries < 0 || c.AI.MaxRetries > 1 {
		return fmt.Errorf("ai-max-retries must be 0 or 1, got %d", c.AI.MaxRetries)
	}

	if !c.AI.Enabled && c.OCR.Engine != "vision" {
		return nil
	}

	validProviders := map[string]bool{"ollama": true, "openai": true, "anthropic": true, "google": true, "vertex": true}
	provider := strings.ToLower(c.AI.Provider)
	if !validProviders[provider] {
		return fmt.Errorf("invalid ai-provider %q, must be one of: ollama, openai, anthropic, google, vertex", c.AI.Provider)
	}
	c.AI.Provider = provider

	if c.AI.Model == "" {
		return fmt.Errorf("ai-model cannot be empty when AI is enabled")
	}

	switch provider {
	case "ollama":
		if c.AI.Endpoint == "" {
			return fmt.Errorf("ai-endpoint cannot be empty for Ollama provider")
		}
	case "vertex":
		if c.AI.VertexProject == "" || c.AI.VertexRegion == "" {
			return fmt.Errorf("vertex-project and vertex-region are required for the vertex provider")
		}
	default:
		if c.AI.APIKey == "" {
			return fmt.Errorf("API key not found for provider %s, check environment variables", provider)
		}
	}

	if c.AI.Temperature < 0.0 || c.AI.Temperature > 2.0 {
		return fmt.Errorf("ai-temperature must be between 0.0 and 2.0, got %f", c.AI.Temperature)
	}

	return nil
}

// loadAPIKeyForProvider loads the appropriate API key from environment variables
func loadAPIKeyForProvider(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "google":
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	default:
		// Ollama and Vertex (ADC) don't need API keys
		return ""
	}
}

func redact(secret string) string {
	switch {
	case secret == "":
		return "not set"
	case len(secret) > 8:
		return "***" + secret[len(secret)-4:]
	default:
		return "***"
	}
}

// String returns a string representation of the configuration (with sensitive data redacted)
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  LogLevel: %s
  ConfidenceFloor: %.2f
  ClassifierThreshold: %.2f
  DrainTimeout: %s
  RenderDPI: %d
  OCR:
    Engine: %s
    Languages: %s
    Concurrency: %d
    Preprocess: %t
    AzureKey: %s
  AI:
    Enabled: %t
    Provider: %s
    Model: %s
    Endpoint: %s
    APIKey: %s
    TimeoutSeconds: %d
    Concurrency: %d
    MaxRetries: %d
  Store:
    Driver: %s`,
		c.LogLevel,
		c.ConfidenceFloor,
		c.ClassifierThreshold,
		c.DrainTimeout,
		c.RenderDPI,
		c.OCR.Engine,
		c.OCR.Languages,
		c.OCR.Concurrency,
		c.OCR.Preprocess,
		redact(c.OCR.AzureKey),
		c.AI.Enabled,
		c.AI.Provider,
		c.AI.Model,
		c.AI.Endpoint,
		redact(c.AI.APIKey),
		c.AI.TimeoutSeconds,
		c.AI.Concurrency,
		c.AI.MaxRetries,
		c.Store.Driver,
	)
}
