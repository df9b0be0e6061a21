package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/pipeline"
)

// errRunAborted makes the process exit non-zero when a run ends ABORTED
var errRunAborted = errors.New("extraction run aborted")

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <source>",
	Short: "Extract named regions from a document",
	Long: `Run every region of a region definition file through OCR, optional AI
correction, validation and quality scoring, then write the document record
as JSON and save the run to the configured store.

<source> is a PDF, a single page image, a directory of page images, or a
gs://bucket/object URI.

When --regions is omitted the document is classified first and the template
regions for the detected type are used.

Ctrl-C stops dispatching new regions; regions already in flight get up to
--drain-timeout to finish and are kept.

Examples:
  # Extract with an explicit region file
  regionscan extract rentroll.pdf --regions rentroll-regions.yaml

  # Use AI correction and write the record to a file
  regionscan extract scans/ --regions lease.yaml --ai-enabled --output lease.json

  # Let the classifier pick the regions
  regionscan extract gs://deals/om.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("regions", "", "region definition file (YAML)")
	extractCmd.Flags().StringP("output", "o", "", "write the document record here instead of stdout")
	extractCmd.Flags().String("document-id", "", "document ID (default: generated)")
	extractCmd.Flags().Bool("no-store", false, "do not save the run to the store")
	extractCmd.Flags().Bool("classify", false, "classify the document even when --regions is given")

	extractCmd.Flags().String("ocr-engine", "tesseract", "OCR engine (tesseract, azure, vision)")
	extractCmd.Flags().Int("ocr-concurrency", 0, "region workers (default: number of CPUs)")
	extractCmd.Flags().Bool("ai-enabled", false, "correct OCR output with the configured AI provider")
	extractCmd.Flags().Bool("ai-rule-fallback", false, "use rule-based correction when AI is off or unreachable")
	extractCmd.Flags().String("ai-provider", "ollama", "AI provider (ollama, openai, anthropic, google, vertex)")
	extractCmd.Flags().String("ai-model", "", "AI model name")
	extractCmd.Flags().Float64("confidence-floor", 0.6, "flag results below this OCR confidence for review")
	extractCmd.Flags().Duration("drain-timeout", 0, "time in-flight regions may run after cancellation")
	extractCmd.Flags().Int("render-dpi", 0, "PDF rasterization resolution")

	for _, name := range []string{
		"ocr-engine", "ocr-concurrency", "ai-enabled", "ai-rule-fallback", "ai-provider",
		"ai-model", "confidence-floor", "drain-timeout", "render-dpi",
	} {
		_ = v.BindPFlag(name, extractCmd.Flags().Lookup(name))
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	req := extractRequest{Location: args[0]}
	req.Classify, _ = cmd.Flags().GetBool("classify")
	req.DocumentID, _ = cmd.Flags().GetString("document-id")
	if path, _ := cmd.Flags().GetString("regions"); path != "" {
		if req.Regions, err = loadRegions(path); err != nil {
			return err
		}
	}

	noStore, _ := cmd.Flags().GetBool("no-store")
	ex, err := newExtractor(ctx, cfg, log, !noStore)
	if err != nil {
		return err
	}
	defer ex.Close()

	doc, err := ex.extract(ctx, req)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if err := writeDocument(cmd.OutOrStdout(), output, doc); err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), pipeline.Summarize(doc).String())

	if doc.Status() == model.RunAborted {
		return errRunAborted
	}
	return nil
}

// writeDocument writes the record as indented JSON to path, or to w when path is empty
func writeDocument(w io.Writer, path string, doc *model.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err := w.Write(data)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
