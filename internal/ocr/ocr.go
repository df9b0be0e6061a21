// Package ocr turns a region of a page raster into text and a confidence in [0,1].
//
// Three engines are available: Tesseract through gosseract (build with -tags ocr),
// Azure Computer Vision, and a vision-capable language model. Engines without
// a native confidence signal are scored with HeuristicConfidence.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/regionscan/internal/llm"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// Adapter wraps an Engine with cropping and the confidence policy
type Adapter struct {
	engine  Engine
	cropper *Cropper
	logger  *logger.Logger
}

// Config holds configuration for the adapter
type Config struct {
	Engine     Engine
	Preprocess bool
	Logger     *logger.Logger
}

// New creates a new OCR adapter
func New(cfg *Config) (*Adapter, error) {
	if cfg == nil || cfg.Engine == nil {
		return nil, fmt.Errorf("%w: ocr engine is required", model.ErrConfig)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}

	return &Adapter{
		engine:  cfg.Engine,
		cropper: NewCropper(cfg.Preprocess),
		logger:  log,
	}, nil
}

// EngineName returns the name of the underlying engine
func (a *Adapter) EngineName() string {
	return a.engine.Name()
}

// Crop cuts the region out of an encoded page raster
func (a *Adapter) Crop(page []byte, region model.Region) ([]byte, error) {
	return a.cropper.Crop(page, region)
}

// Recognize reads a prepared crop.
//
// An engine that runs but finds nothing yields ("", 0, nil) and a warning.
// Errors wrapping model.ErrRender mean the engine or the crop was unusable;
// other engine errors wrap model.ErrOCR.
func (a *Adapter) Recognize(ctx context.Context, crop []byte, region model.Region) (string, float64, error) {
	log := a.logger.WithRegion(region.ID, region.Name, region.Page)
	start := time.Now()

	if len(crop) == 0 {
		return "", 0, fmt.Errorf("%w: empty crop for region %q", model.ErrRender, region.Name)
	}

	rec, err := a.engine.Recognize(ctx, crop)
	if err != nil {
		if errors.Is(err, model.ErrRender) || errors.Is(err, model.ErrOCR) {
			return "", 0, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", 0, err
		}
		return "", 0, fmt.Errorf("%w: %s: %w", model.ErrOCR, a.engine.Name(), err)
	}

	if rec == nil || rec.Text == "" {
		log.WithFields("engine", a.engine.Name()).Warn("OCR produced no text")
		return "", 0, nil
	}

	confidence := rec.Confidence
	if !rec.HasConfidence {
		confidence = HeuristicConfidence(rec.Text)
	}

	log.WithFields(
		"engine", a.engine.Name(),
		"words", len(rec.Words),
		"confidence", confidence,
		"heuristic", !rec.HasConfidence,
		"duration", time.Since(start),
	).Debug("OCR completed")

	return rec.Text, confidence, nil
}

// EngineConfig selects and configures an engine
type EngineConfig struct {
	// Engine is tesseract, azure or vision
	Engine string

	// Languages are Tesseract language codes joined with "+"
	Languages string

	AzureEndpoint string
	AzureKey      string

	// Vision and VisionModel back the vision engine
	Vision      llm.Client
	VisionModel string

	Logger *logger.Logger
}

// NewEngine creates the engine named in cfg
func NewEngine(cfg *EngineConfig) (Engine, error) {
	var (
		engine Engine
		err    error
	)

	switch cfg.Engine {
	case "", "tesseract":
		var e *TesseractEngine
		if e, err = NewTesseractEngine(cfg.Languages, cfg.Logger); err == nil {
			engine = e
		}
	case "azure":
		var e *AzureEngine
		if e, err = NewAzureEngine(cfg.AzureEndpoint, cfg.AzureKey, cfg.Logger); err == nil {
			engine = e
		}
	case "vision":
		var e *VisionEngine
		if e, err = NewVisionEngine(cfg.Vision, cfg.VisionModel, cfg.Logger); err == nil {
			engine = e
		}
	default:
		err = fmt.Errorf("%w: unsupported ocr engine %q", model.ErrConfig, cfg.Engine)
	}

	if err != nil {
		return nil, err
	}
	return engine, nil
}
