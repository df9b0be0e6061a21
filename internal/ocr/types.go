package ocr

import (
	"context"
	"strings"
)

// Engine recognizes text in an encoded image (PNG, JPEG, TIFF).
// Errors wrapping model.ErrRender mean the engine could not run at all or the
// image was unreadable; any other error is an engine failure.
type Engine interface {
	Recognize(ctx context.Context, image []byte) (*Recognition, error)
	Name() string
}

// Word represents a single recognized word
type Word struct {
	// Text is the recognized text content
	Text string

	// Confidence is the recognition confidence score (0-1)
	Confidence float64
}

// Recognition is an engine's output for one image
type Recognition struct {
	// Words contains all recognized words in reading order
	Words []Word

	// Text is the words joined with single spaces
	Text string

	// Confidence is the mean word confidence (0-1); zero when HasConfidence is false
	Confidence float64

	// HasConfidence is false for engines that do not report per-word confidence
	HasConfidence bool
}

// NewRecognition creates a recognition result from words and fills in Text and
// Confidence
func NewRecognition(words []Word, hasConfidence bool) *Recognition {
	r := &Recognition{HasConfidence: hasConfidence}
	for _, w := range words {
		if t := strings.TrimSpace(w.Text); t != "" {
			r.Words = append(r.Words, Word{Text: t, Confidence: w.Confidence})
		}
	}
	r.BuildText()
	r.CalculateConfidence()
	return r
}

// CalculateConfidence calculates the average word confidence
func (r *Recognition) CalculateConfidence() {
	if len(r.Words) == 0 || !r.HasConfidence {
		r.Confidence = 0
		return
	}

	total := 0.0
	for _, word := range r.Words {
		total += clamp01(word.Confidence)
	}
	r.Confidence = total / float64(len(r.Words))
}

// BuildText concatenates all word text
func (r *Recognition) BuildText() {
	parts := make([]string, len(r.Words))
	for i, word := range r.Words {
		parts[i] = word.Text
	}
	r.Text = strings.Join(parts, " ")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
