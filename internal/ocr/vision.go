package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/platinummonkey/regionscan/internal/llm"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// VisionEngine reads crops with a vision-capable language model
type VisionEngine struct {
	client llm.Client
	model  string
	logger *logger.Logger
}

// NewVisionEngine creates an engine backed by an llm.Client
func NewVisionEngine(client llm.Client, modelName string, log *logger.Logger) (*VisionEngine, error) {
	if log == nil {
		log = logger.Get()
	}
	if client == nil {
		return nil, fmt.Errorf("%w: vision engine requires an llm client", model.ErrConfig)
	}
	return &VisionEngine{client: client, model: modelName, logger: log}, nil
}

// Recognize base64-encodes the crop and asks the model for words. Models that
// omit confidences are treated as reporting none.
func (e *VisionEngine) Recognize(ctx context.Context, image []byte) (*Recognition, error) {
	words, err := e.client.Recognize(ctx, e.model, base64.StdEncoding.EncodeToString(image))
	if err != nil {
		return nil, fmt.Errorf("%w: %s vision recognition failed: %w", model.ErrOCR, e.client.Name(), err)
	}

	out := make([]Word, 0, len(words))
	hasConfidence := false
	for _, w := range words {
		if w.Confidence > 0 {
			hasConfidence = true
		}
		out = append(out, Word{Text: w.Text, Confidence: w.Confidence})
	}

	e.logger.WithFields("provider", e.client.Name(), "words", len(out)).Debug("Vision recognition completed")
	return NewRecognition(out, hasConfidence), nil
}

// Name returns the engine name
func (e *VisionEngine) Name() string {
	return "vision:" + e.client.Name()
}
