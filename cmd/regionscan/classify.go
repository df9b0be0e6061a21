package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/regionscan/internal/classify"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
	"github.com/platinummonkey/regionscan/internal/render"
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <source>",
	Short: "Infer the document type and suggest regions",
	Long: `OCR the first pages of a document, infer which kind of commercial
real-estate document it is, and print the classification.

With --suggest the template regions for the detected type are printed as a
region definition file, scaled to the first page, ready to edit and pass to
extract --regions.

Examples:
  # Classify a scanned rent roll
  regionscan classify rentroll.pdf

  # Write starter regions for a lease
  regionscan classify lease.pdf --suggest > lease-regions.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().Int("sample-pages", 2, "number of leading pages to OCR for classification")
	classifyCmd.Flags().Bool("suggest", false, "print suggested regions for the detected type")
	classifyCmd.Flags().Float64("classifier-threshold", 0.5, "minimum score for a type to be reported")
	_ = v.BindPFlag("classifier-threshold", classifyCmd.Flags().Lookup("classifier-threshold"))
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	comps, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	src, cleanup, err := openSource(ctx, cfg, args[0], log)
	if err != nil {
		return err
	}
	defer cleanup()

	classifier, err := classify.New(cfg.ClassifierThreshold)
	if err != nil {
		return err
	}

	samplePages, _ := cmd.Flags().GetInt("sample-pages")
	result, err := classifySource(ctx, classifier, comps, src, samplePages, log)
	if err != nil {
		return err
	}

	if suggest, _ := cmd.Flags().GetBool("suggest"); suggest {
		if len(result.regions) == 0 {
			return fmt.Errorf("no region suggestions for document type %s", result.classification.DocumentType)
		}
		return writeRegions(cmd.OutOrStdout(), result.classification.DocumentType, result.regions)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result.classification)
}

type classifyResult struct {
	classification model.DocumentClassification
	regions        []model.Region
}

// classifySource OCRs up to samplePages whole pages and classifies their text.
// Suggested regions are scaled to the first page.
func classifySource(ctx context.Context, c *classify.Classifier, comps *components, src render.Source, samplePages int, log *logger.Logger) (*classifyResult, error) {
	if samplePages <= 0 {
		samplePages = 1
	}
	n := min(samplePages, src.PageCount())

	var (
		sample         strings.Builder
		firstW, firstH int
	)
	for i := 0; i < n; i++ {
		page, err := src.Page(ctx, i)
		if err != nil {
			log.WithError(err).Warnw("Skipping unrenderable page", "page", i)
			continue
		}
		w, h, err := render.PageSize(page)
		if err != nil {
			log.WithError(err).Warnw("Skipping undecodable page", "page", i)
			continue
		}
		if firstW == 0 {
			firstW, firstH = w, h
		}

		whole := model.NewRegion("page", i, 0, 0, w, h, model.FieldText)
		crop, err := comps.ocr.Crop(page, whole)
		if err != nil {
			log.WithError(err).Warnw("Skipping page", "page", i)
			continue
		}
		text, _, err := comps.ocr.Recognize(ctx, crop, whole)
		if err != nil {
			log.WithError(err).Warnw("OCR failed on sample page", "page", i)
			continue
		}
		sample.WriteString(text)
		sample.WriteByte('\n')
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := sample.String()
	result := &classifyResult{
		classification: c.Classify(text, classify.HintsFromText(text, src.PageCount())),
	}
	result.regions = c.Suggest(result.classification, firstW, firstH)

	log.Infow("Document classified",
		"document_type", result.classification.DocumentType,
		"confidence", result.classification.Confidence,
		"sample_pages", n,
	)
	return result, nil
}
