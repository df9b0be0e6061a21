package enhance

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/platinummonkey/regionscan/internal/model"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	sqftUnit      = regexp.MustCompile(`(?i)\s*(?:sq\.?\s*ft\.?|sqft|square\s+feet|[ru]?sf)$`)
	spacedPunct   = regexp.MustCompile(`(\d)\s*([,.])\s*(\d)`)
	dateSeparator = regexp.MustCompile(`(\d)\s*[. ]\s*(\d)`)
	dollarGap     = regexp.MustCompile(`\$\s+`)
)

// digitConfusions maps letters OCR commonly produces for digits
var digitConfusions = map[rune]rune{
	'O': '0', 'o': '0',
	'I': '1', 'l': '1', '|': '1',
	'S': '5', 's': '5',
}

// numericFields are field types whose tokens are expected to be mostly digits
var numericFields = map[model.FieldType]bool{
	model.FieldCurrency: true,
	model.FieldDate:     true,
	model.FieldSqft:     true,
	model.FieldPhone:    true,
}

// RuleBasedEnhancer applies deterministic regex corrections per field type
type RuleBasedEnhancer struct{}

// NewRuleBasedEnhancer creates a rule-based enhancer
func NewRuleBasedEnhancer() *RuleBasedEnhancer {
	return &RuleBasedEnhancer{}
}

// Enhance normalizes whitespace and, for numeric field types, fixes
// letter/digit confusions next to digits
func (r *RuleBasedEnhancer) Enhance(ctx context.Context, rawText string, fieldType model.FieldType) Outcome {
	return Outcome{Text: Correct(rawText, fieldType)}
}

// Name returns the strategy name
func (r *RuleBasedEnhancer) Name() string {
	return "rules"
}

// Correct is the rule set behind RuleBasedEnhancer
func Correct(text string, fieldType model.FieldType) string {
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if text == "" {
		return text
	}

	if numericFields[fieldType] {
		unit := ""
		if fieldType == model.FieldSqft {
			if loc := sqftUnit.FindStringIndex(text); loc != nil {
				text, unit = text[:loc[0]], text[loc[0]:]
			}
		}
		text = swapConfusions(text) + unit
	}

	switch fieldType {
	case model.FieldCurrency:
		text = dollarGap.ReplaceAllString(text, "$")
		text = spacedPunct.ReplaceAllString(text, "$1$2$3")
		text = strings.ReplaceAll(text, " ", "")
	case model.FieldSqft:
		text = spacedPunct.ReplaceAllString(text, "$1$2$3")
	case model.FieldDate:
		text = dateSeparator.ReplaceAllString(text, "$1/$2")
		text = strings.ReplaceAll(text, " ", "")
	case model.FieldEmail:
		text = strings.ReplaceAll(text, " ", "")
	}

	return text
}

// swapConfusions replaces confusable letters that touch a digit, directly or
// across one separator, until nothing changes. "2OO.OO" becomes "200.00";
// letters in words without digits are left alone.
func swapConfusions(text string) string {
	rs := []rune(text)
	for changed := true; changed; {
		changed = false
		for i, r := range rs {
			d, ok := digitConfusions[r]
			if ok && touchesDigit(rs, i) {
				rs[i] = d
				changed = true
			}
		}
	}
	return string(rs)
}

func touchesDigit(rs []rune, i int) bool {
	for _, step := range []int{-1, 1} {
		j := i + step
		if j < 0 || j >= len(rs) {
			continue
		}
		if unicode.IsDigit(rs[j]) {
			return true
		}
		if strings.ContainsRune(",./-:", rs[j]) {
			if k := j + step; k >= 0 && k < len(rs) && unicode.IsDigit(rs[k]) {
				return true
			}
		}
	}
	return false
}
