package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/platinummonkey/regionscan/internal/config"
	"github.com/platinummonkey/regionscan/internal/enhance"
	"github.com/platinummonkey/regionscan/internal/llm"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/ocr"
	"github.com/platinummonkey/regionscan/internal/render"
)

// components are the collaborators shared by the extract and classify commands
type components struct {
	cfg      *config.Config
	log      *logger.Logger
	client   llm.Client
	enhancer enhance.Enhancer
	probe    enhance.ProbeResult
	ocr      *ocr.Adapter
}

// buildComponents wires the LLM client, enhancer and OCR adapter from cfg
func buildComponents(ctx context.Context, cfg *config.Config, log *logger.Logger) (*components, error) {
	c, err := buildEnhancer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	engine, err := ocr.NewEngine(&ocr.EngineConfig{
		Engine:        cfg.OCR.Engine,
		Languages:     cfg.OCR.Languages,
		AzureEndpoint: cfg.OCR.AzureEndpoint,
		AzureKey:      cfg.OCR.AzureKey,
		Vision:        c.client,
		VisionModel:   cfg.AI.Model,
		Logger:        log,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create OCR engine: %w", err)
	}

	c.ocr, err = ocr.New(&ocr.Config{
		Engine:     engine,
		Preprocess: cfg.OCR.Preprocess,
		Logger:     log,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	log.Infow("Components ready",
		"ocr_engine", c.ocr.EngineName(),
		"enhancer", c.enhancer.Name(),
		"ai_available", c.probe.Available,
	)
	return c, nil
}

// buildEnhancer creates the LLM client when one is needed and probes it once
// to pick the run's enhancer
func buildEnhancer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*components, error) {
	c := &components{cfg: cfg, log: log}

	if cfg.AI.Enabled || cfg.OCR.Engine == "vision" {
		client, err := newLLMClient(ctx, cfg, log)
		if err != nil {
			if cfg.OCR.Engine == "vision" {
				return nil, fmt.Errorf("vision engine needs an AI provider: %w", err)
			}
			log.WithError(err).Warn("AI provider unavailable, continuing without enhancement")
		}
		c.client = client
	}

	c.enhancer, c.probe = enhance.Select(ctx, enhance.SelectConfig{
		Enabled:      cfg.AI.Enabled,
		RuleFallback: cfg.AI.RuleFallback,
		Model:        cfg.AI.Model,
		Timeout:      cfg.AI.Timeout(),
		Concurrency:  cfg.AI.Concurrency,
	}, c.client, log)

	return c, nil
}

// Close releases provider clients that hold connections
func (c *components) Close() {
	if closer, ok := c.client.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.log.WithError(err).Debug("Failed to close AI client")
		}
	}
}

func newLLMClient(ctx context.Context, cfg *config.Config, log *logger.Logger) (llm.Client, error) {
	return llm.NewClient(ctx, &llm.Config{
		Provider:    llm.ProviderType(cfg.AI.Provider),
		Model:       cfg.AI.Model,
		Endpoint:    cfg.AI.Endpoint,
		APIKey:      cfg.AI.APIKey,
		MaxRetries:  cfg.AI.MaxRetries,
		Temperature: cfg.AI.Temperature,
		Project:     cfg.AI.VertexProject,
		Region:      cfg.AI.VertexRegion,
	}, log)
}

// openSource opens location for rendering. The returned cleanup closes the
// source and any storage client it needed.
func openSource(ctx context.Context, cfg *config.Config, location string, log *logger.Logger) (render.Source, func(), error) {
	if key := os.Getenv("UNIDOC_LICENSE_API_KEY"); key != "" {
		if err := render.SetLicenseKey(key); err != nil {
			log.WithError(err).Warn("Failed to apply PDF rendering license")
		}
	}

	opts := render.Options{DPI: cfg.RenderDPI, Logger: log}

	var gcs *storage.Client
	if strings.HasPrefix(location, "gs://") {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		gcs = client
		opts.GCS = render.StorageReader{Client: client}
	}

	src, err := render.Open(ctx, location, opts)
	if err != nil {
		if gcs != nil {
			gcs.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := src.Close(); err != nil {
			log.WithError(err).Debug("Failed to close source")
		}
		if gcs != nil {
			gcs.Close()
		}
	}
	return src, cleanup, nil
}
