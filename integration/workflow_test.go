package integration

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/platinummonkey/regionscan/internal/config"
	"github.com/platinummonkey/regionscan/internal/enhance"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/ocr"
	"github.com/platinummonkey/regionscan/internal/pipeline"
	"github.com/platinummonkey/regionscan/internal/render"
	"github.com/platinummonkey/regionscan/internal/store"
)

// fixedEngine reads the same text from every crop
type fixedEngine struct {
	text string
}

func (e fixedEngine) Recognize(ctx context.Context, img []byte) (*ocr.Recognition, error) {
	return ocr.NewRecognition([]ocr.Word{{Text: e.text, Confidence: 0.9}}, true), nil
}

func (e fixedEngine) Name() string { return "fixed" }

func writePage(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 400, 200))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(50, 20, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// TestExtractionWorkflow runs config, rendering, the pipeline and the store together
func TestExtractionWorkflow(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	storePath := filepath.Join(tmpDir, "runs.json")
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
log-level: debug
log-format: json
store-driver: file
store-dsn: ` + storePath + `
confidence-floor: 0.5
ocr-concurrency: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Store.DSN != storePath {
		t.Fatalf("Expected store-dsn %s, got %s", storePath, cfg.Store.DSN)
	}

	logFile := filepath.Join(tmpDir, "regionscan.log")
	log, err := logger.New(&logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: logFile})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	pagesDir := filepath.Join(tmpDir, "pages")
	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		t.Fatal(err)
	}
	writePage(t, filepath.Join(pagesDir, "page-1.png"))
	writePage(t, filepath.Join(pagesDir, "page-2.png"))

	src, err := render.Open(ctx, pagesDir, render.Options{DPI: cfg.RenderDPI, Logger: log})
	if err != nil {
		t.Fatalf("Failed to open pages: %v", err)
	}
	defer src.Close()

	adapter, err := ocr.New(&ocr.Config{Engine: fixedEngine{text: "$1,250.00"}, Preprocess: cfg.OCR.Preprocess, Logger: log})
	if err != nil {
		t.Fatal(err)
	}
	orch, err := pipeline.New(&pipeline.Config{
		OCR:             adapter,
		Enhancer:        enhance.PassThrough{},
		Concurrency:     cfg.OCR.Concurrency,
		ConfidenceFloor: cfg.ConfidenceFloor,
		DrainTimeout:    cfg.DrainTimeout,
		Logger:          log,
	})
	if err != nil {
		t.Fatal(err)
	}

	regions := []model.Region{
		model.NewRegion("base_rent", 0, 10, 10, 200, 40, model.FieldCurrency),
		model.NewRegion("additional_rent", 1, 10, 10, 200, 40, model.FieldCurrency),
	}
	doc := orch.Run(ctx, model.NewDocument("", src.PageCount(), regions), src)

	if doc.Status() != model.RunComplete {
		t.Fatalf("Expected COMPLETE, got %s", doc.Status())
	}
	summary := pipeline.Summarize(doc)
	if summary.ScoredCount != 2 || summary.FailedCount != 0 {
		t.Errorf("Expected 2 scored and 0 failed, got %d and %d", summary.ScoredCount, summary.FailedCount)
	}

	s, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if err := s.Save(ctx, store.NewRun(pagesDir, doc)); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	_ = s.Close()

	// a fresh store sees the saved run
	s2, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s2.Close()

	runs, err := s2.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != doc.ID || runs[0].Status != model.RunComplete || runs[0].Regions != 2 {
		t.Errorf("Unexpected run summary: %+v", runs[0])
	}

	_ = log.Sync()
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if len(content) == 0 {
		t.Error("Log file should not be empty")
	}
}
