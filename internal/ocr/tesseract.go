//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// TesseractEngine runs Tesseract through gosseract. A new gosseract client is
// created per call since clients are not safe for concurrent use.
type TesseractEngine struct {
	languages []string
	logger    *logger.Logger
}

// NewTesseractEngine creates a Tesseract engine for the given "+"-separated
// language codes (default "eng")
func NewTesseractEngine(languages string, log *logger.Logger) (*TesseractEngine, error) {
	if log == nil {
		log = logger.Get()
	}

	langs := strings.Split(languages, "+")
	if languages == "" {
		langs = []string{"eng"}
	}

	return &TesseractEngine{languages: langs, logger: log}, nil
}

// Recognize performs OCR on a single field crop using hOCR output for
// per-word confidence
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("%w: failed to set OCR language: %w", model.ErrRender, err)
	}

	// crops hold a single field, so treat them as one uniform block
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("%w: failed to set page segmentation mode: %w", model.ErrRender, err)
	}

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("%w: failed to set image data: %w", model.ErrRender, err)
	}

	hocrText, err := client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get HOCR text: %w", model.ErrOCR, err)
	}

	words, err := parseHOCR(hocrText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrOCR, err)
	}

	rec := NewRecognition(words, true)
	e.logger.WithFields("words", len(rec.Words), "confidence", rec.Confidence).Debug("Tesseract recognition completed")
	return rec, nil
}

// Name returns the engine name
func (e *TesseractEngine) Name() string {
	return "tesseract"
}
