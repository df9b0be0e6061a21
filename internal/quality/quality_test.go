package quality

import (
	"math"
	"strings"
	"testing"

	"github.com/platinummonkey/regionscan/internal/model"
)

func TestScore_Reference(t *testing.T) {
	got := Score(Inputs{
		OCRConfidence:    0.9,
		ValidationPassed: true,
		AIApplied:        true,
		Text:             "0123456789",
	})

	// 0.4*0.9 + 0.3 + 0.1 + 0.2
	if math.Abs(got-0.96) > 1e-9 {
		t.Errorf("Score() = %.10f, want 0.96", got)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want float64
	}{
		{"all zero", Inputs{}, 0},
		{"one rune", Inputs{Text: "x"}, 0.1},
		{"validation only", Inputs{ValidationPassed: true, Text: "ok"}, 0.5},
		{"confidence above one is clamped", Inputs{OCRConfidence: 7, Text: "ok"}, 0.6},
		{"negative confidence is clamped", Inputs{OCRConfidence: -1, Text: "ok"}, 0.2},
		{"300 runes", Inputs{OCRConfidence: 1, Text: strings.Repeat("a", 300)}, 0.5},
		{"very long text", Inputs{OCRConfidence: 1, ValidationPassed: true, AIApplied: true, Text: strings.Repeat("a", 1000)}, 0.8},
		{"multibyte counted as runes", Inputs{Text: "é"}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.in)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %f, want %f", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Score() = %f out of [0,1]", got)
			}
		})
	}
}

func TestLengthSanity(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{0, 0},
		{1, 0.5},
		{2, 1},
		{200, 1},
		{300, 0.5},
		{400, 0},
		{10000, 0},
	}

	for _, tt := range tests {
		if got := LengthSanity(tt.n); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("LengthSanity(%d) = %f, want %f", tt.n, got, tt.want)
		}
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	for conf := -0.5; conf <= 1.5; conf += 0.25 {
		for _, n := range []int{0, 1, 2, 50, 199, 201, 399, 401} {
			for _, flags := range [][2]bool{{false, false}, {true, false}, {false, true}, {true, true}} {
				s := Score(Inputs{OCRConfidence: conf, ValidationPassed: flags[0], AIApplied: flags[1], Text: strings.Repeat("x", n)})
				if s < 0 || s > 1 {
					t.Fatalf("Score out of range: conf=%f n=%d flags=%v -> %f", conf, n, flags, s)
				}
			}
		}
	}
}

func TestScoreResult(t *testing.T) {
	res := &model.ExtractionResult{OCRConfidence: 0.5, ValidationPassed: true, CorrectedText: "$1,200.00"}
	if got := ScoreResult(res); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("ScoreResult() = %f, want 0.7", got)
	}
}
