//go:build !ocr

package ocr

import (
	"context"
	"fmt"

	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// ErrTesseractNotEnabled is returned when Tesseract support was not compiled in.
// Rebuild with -tags ocr (requires libtesseract) to enable it.
var ErrTesseractNotEnabled = fmt.Errorf("%w: tesseract support not enabled; rebuild with -tags ocr", model.ErrRender)

// TesseractEngine is a stub used when the "ocr" build tag is not set
type TesseractEngine struct{}

// NewTesseractEngine returns ErrTesseractNotEnabled
func NewTesseractEngine(languages string, log *logger.Logger) (*TesseractEngine, error) {
	return nil, ErrTesseractNotEnabled
}

// Recognize returns ErrTesseractNotEnabled
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (*Recognition, error) {
	return nil, ErrTesseractNotEnabled
}

// Name returns the engine name
func (e *TesseractEngine) Name() string {
	return "tesseract"
}
