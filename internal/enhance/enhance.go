// Package enhance corrects raw OCR text before validation. The strategy is
// chosen once at startup by Select and never changes during a run.
package enhance

import (
	"context"

	"github.com/platinummonkey/regionscan/internal/model"
)

// Outcome is the result of one enhancement attempt
type Outcome struct {
	// Text is the corrected text; it equals the input when nothing was applied
	Text string

	// AIApplied is true only when a language model produced Text
	AIApplied bool

	// Warning describes a non-fatal problem, with WarningKind classifying it
	Warning     string
	WarningKind model.ErrorKind
}

// Enhancer corrects OCR output for a field type
type Enhancer interface {
	Enhance(ctx context.Context, rawText string, fieldType model.FieldType) Outcome
	Name() string
}

// PassThrough returns its input unchanged
type PassThrough struct{}

// Enhance returns rawText with AIApplied=false
func (PassThrough) Enhance(ctx context.Context, rawText string, fieldType model.FieldType) Outcome {
	return Outcome{Text: rawText}
}

// Name returns the strategy name
func (PassThrough) Name() string {
	return "passthrough"
}
