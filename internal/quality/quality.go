// Package quality computes the composite reliability score of an extracted field.
package quality

import (
	"unicode/utf8"

	"github.com/platinummonkey/regionscan/internal/model"
)

// Score weights. They sum to 1.
const (
	WeightOCRConfidence = 0.4
	WeightValidation    = 0.3
	WeightAIApplied     = 0.1
	WeightLength        = 0.2
)

// Length band, in runes, inside which the length sanity factor is 1
const (
	MinSaneLength = 2
	MaxSaneLength = 200
)

// Inputs are the signals the score is built from
type Inputs struct {
	OCRConfidence    float64
	ValidationPassed bool
	AIApplied        bool
	Text             string
}

// InputsOf extracts scoring inputs from a result
func InputsOf(res *model.ExtractionResult) Inputs {
	return Inputs{
		OCRConfidence:    res.OCRConfidence,
		ValidationPassed: res.ValidationPassed,
		AIApplied:        res.AIApplied,
		Text:             res.CorrectedText,
	}
}

// Score returns 0.4·ocrConfidence + 0.3·validationPassed + 0.1·aiApplied +
// 0.2·lengthSanity, clamped to [0,1]
func Score(in Inputs) float64 {
	score := WeightOCRConfidence*clamp(in.OCRConfidence) +
		WeightValidation*boolToFloat(in.ValidationPassed) +
		WeightAIApplied*boolToFloat(in.AIApplied) +
		WeightLength*LengthSanity(utf8.RuneCountInString(in.Text))
	return clamp(score)
}

// ScoreResult scores a result from its own fields
func ScoreResult(res *model.ExtractionResult) float64 {
	return Score(InputsOf(res))
}

// LengthSanity is 1 inside [MinSaneLength, MaxSaneLength] and decays linearly
// outside it to a floor of 0
func LengthSanity(n int) float64 {
	switch {
	case n < MinSaneLength:
		return float64(n) / MinSaneLength
	case n > MaxSaneLength:
		return clamp(1 - float64(n-MaxSaneLength)/MaxSaneLength)
	default:
		return 1
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
