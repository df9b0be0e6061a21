//go:build !ocr

package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/platinummonkey/regionscan/internal/model"
)

func TestTesseractStub(t *testing.T) {
	_, err := NewTesseractEngine("eng", nil)
	if !errors.Is(err, ErrTesseractNotEnabled) {
		t.Errorf("expected ErrTesseractNotEnabled, got %v", err)
	}
	if !errors.Is(err, model.ErrRender) {
		t.Error("a missing engine is a hard I/O failure")
	}

	var e *TesseractEngine
	if _, err := e.Recognize(context.Background(), nil); !errors.Is(err, ErrTesseractNotEnabled) {
		t.Errorf("Recognize() error = %v", err)
	}

	if _, err := NewEngine(&EngineConfig{Engine: "tesseract"}); !errors.Is(err, model.ErrRender) {
		t.Errorf("NewEngine(tesseract) error = %v", err)
	}
}
