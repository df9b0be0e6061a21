// Package validate checks extracted text against its field type and produces a
// canonical form. A failed check is a data-quality flag, never an error.
package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/platinummonkey/regionscan/internal/model"
)

// Result is the outcome of validating one value
type Result struct {
	Passed     bool   `json:"passed"`
	Normalized string `json:"normalized"`
	Reason     string `json:"reason,omitempty"`
}

type validator func(text string) Result

var validators = map[model.FieldType]validator{
	model.FieldCurrency: currency,
	model.FieldDate:     date,
	model.FieldAddress:  address,
	model.FieldSqft:     sqft,
	model.FieldPhone:    phone,
	model.FieldEmail:    email,
}

var (
	spaceRun        = regexp.MustCompile(`\s+`)
	currencyPattern = regexp.MustCompile(`^\$?[\d,]+(\.\d{2})?$`)
	sqftPattern     = regexp.MustCompile(`(?i)^([\d,]+(?:\.\d+)?)\s*(sf|sq\.?\s*ft\.?|sqft|square\s+feet|rsf|usf)?$`)
	phonePattern    = regexp.MustCompile(`^(?:\+?1[\s.\-]?)?\(?(\d{3})\)?[\s.\-]?(\d{3})[\s.\-]?(\d{4})$`)
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	addressPattern  = regexp.MustCompile(`(?i)^\d+[A-Za-z]?(?:-\d+)?\s+.*\b(` + strings.Join(streetSuffixes, "|") + `)\b\.?`)
)

// streetSuffixes are the USPS-style street designators accepted in addresses
var streetSuffixes = []string{
	"street", "st", "avenue", "ave", "road", "rd", "boulevard", "blvd", "drive", "dr",
	"lane", "ln", "court", "ct", "place", "pl", "way", "parkway", "pkwy", "highway", "hwy",
	"circle", "cir", "terrace", "ter", "trail", "trl", "square", "sq", "plaza", "plz",
	"alley", "aly", "center", "ctr", "pike", "loop", "row", "run", "expressway", "expy",
}

// dateLayouts are tried in order; "1" and "2" accept one or two digits
var dateLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"2006-01-02",
}

// Validate checks text against fieldType. Text and unknown field types always
// pass with the trimmed text as the normalized value.
func Validate(text string, fieldType model.FieldType) Result {
	trimmed := collapse(text)

	v, ok := validators[fieldType]
	if !ok {
		return Result{Passed: true, Normalized: trimmed}
	}
	if trimmed == "" {
		return Result{Normalized: "", Reason: "empty value"}
	}

	res := v(trimmed)
	if !res.Passed {
		res.Normalized = trimmed
	}
	return res
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func fail(reason string) Result {
	return Result{Reason: reason}
}

func currency(text string) Result {
	compact := strings.ReplaceAll(text, " ", "")
	if !currencyPattern.MatchString(compact) || !strings.ContainsAny(compact, "0123456789") {
		return fail("not a currency amount")
	}
	if !validGrouping(strings.SplitN(strings.TrimPrefix(compact, "$"), ".", 2)[0]) {
		return fail("misplaced thousands separator")
	}

	amount, err := decimal.NewFromString(strings.NewReplacer("$", "", ",", "").Replace(compact))
	if err != nil {
		return fail("not a currency amount")
	}

	return Result{Passed: true, Normalized: FormatCurrency(amount)}
}

// FormatCurrency renders an amount as $X,XXX.XX
func FormatCurrency(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	out := "$" + groupThousands(intPart) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// validGrouping accepts plain digit runs or correctly placed thousands commas
func validGrouping(intPart string) bool {
	if !strings.Contains(intPart, ",") {
		return true
	}
	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

func date(text string) Result {
	compact := strings.ReplaceAll(text, " ", "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, compact); err == nil {
			return Result{Passed: true, Normalized: t.Format("2006-01-02")}
		}
	}
	return fail("not a MM/DD/YYYY, MM-DD-YYYY or YYYY-MM-DD date")
}

func address(text string) Result {
	if !addressPattern.MatchString(text) {
		return fail("address needs a street number and a street suffix")
	}
	// Casers are stateful, so one is built per call
	return Result{Passed: true, Normalized: cases.Title(language.AmericanEnglish).String(strings.ToLower(text))}
}

func sqft(text string) Result {
	m := sqftPattern.FindStringSubmatch(text)
	if m == nil || !validGrouping(strings.SplitN(m[1], ".", 2)[0]) {
		return fail("not a square-footage value")
	}

	area, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return fail("not a square-footage value")
	}

	return Result{Passed: true, Normalized: groupThousands(area.Round(0).String()) + " SF"}
}

func phone(text string) Result {
	m := phonePattern.FindStringSubmatch(text)
	if m == nil {
		return fail("not a 10-digit phone number")
	}
	return Result{Passed: true, Normalized: "(" + m[1] + ") " + m[2] + "-" + m[3]}
}

func email(text string) Result {
	compact := strings.ReplaceAll(text, " ", "")
	if !emailPattern.MatchString(compact) {
		return fail("not an email address")
	}
	return Result{Passed: true, Normalized: strings.ToLower(compact)}
}
