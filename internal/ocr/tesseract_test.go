//go:build ocr

package ocr

import (
	"context"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

func newTesseractAdapter(t *testing.T) *Adapter {
	t.Helper()

	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		t.Skipf("Tesseract english data not available: %v", err)
	}
	client.Close()

	engine, err := NewTesseractEngine("eng", logger.Nop())
	if err != nil {
		t.Skipf("Tesseract not available: %v", err)
	}
	a, err := New(&Config{Engine: engine, Preprocess: true, Logger: logger.Nop()})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestTesseract_CurrencyRoundTrip(t *testing.T) {
	a := newTesseractAdapter(t)

	page, box := renderText(t, "$1,200.00", 4, 40, 30, 600, 200)
	region := model.Region{
		ID:        "amount",
		Name:      "amount",
		X:         box.Min.X - 5,
		Y:         box.Min.Y - 5,
		Width:     box.Dx() + 10,
		Height:    box.Dy() + 10,
		FieldType: model.FieldCurrency,
	}

	crop, err := a.Crop(page, region)
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}

	text, conf, err := a.Recognize(context.Background(), crop, region)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	if got := strings.Join(strings.Fields(text), ""); got != "$1,200.00" {
		t.Errorf("text = %q, want $1,200.00", text)
	}
	if conf <= 0 || conf > 1 {
		t.Errorf("confidence = %f, want (0,1]", conf)
	}
}

func TestTesseract_BlankCrop(t *testing.T) {
	a := newTesseractAdapter(t)

	region := model.Region{ID: "blank", Name: "blank", Width: 100, Height: 40}
	crop, err := a.Crop(blankPNG(t, 200, 100), region)
	if err != nil {
		t.Fatalf("Crop() error = %v", err)
	}

	text, conf, err := a.Recognize(context.Background(), crop, region)
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "" || conf != 0 {
		t.Errorf("expected empty result, got %q %f", text, conf)
	}
}
