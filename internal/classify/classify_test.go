package classify

import (
	"errors"
	"testing"

	"github.com/platinummonkey/regionscan/internal/model"
)

func newClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClassify(t *testing.T) {
	c := newClassifier(t)

	tests := []struct {
		name  string
		text  string
		hints LayoutHints
		want  model.DocumentType
	}{
		{
			name: "rent roll",
			text: "RENT ROLL as of 03/01/2024\nUnit  Tenant  Lease Start  Lease End  Monthly Rent\n101 Acme 01/01/2023 12/31/2025 $1,200.00",
			want: model.DocRentRoll,
		},
		{
			name:  "offering memorandum",
			text:  "CONFIDENTIAL OFFERING MEMORANDUM. Investment Highlights. Asking Price: $4,500,000. Cap Rate 6.25%",
			hints: LayoutHints{PageCount: 30},
			want:  model.DocOfferingMemo,
		},
		{
			name: "comp sales",
			text: "Sales Comparables - Sale Price, Sale Date, Price per SF, Year Built, Buyer, Seller",
			want: model.DocCompSales,
		},
		{
			name:  "lease agreement",
			text:  "THIS LEASE AGREEMENT is made between Landlord and Tenant. WHEREAS the Premises... Commencement Date. Base Rent.",
			hints: LayoutHints{PageCount: 22, NumericDensity: 0.05},
			want:  model.DocLeaseAgreement,
		},
		{
			name: "pro forma",
			text: "10-Year Pro Forma: Effective Gross Income, Operating Expenses, Net Operating Income (NOI), Debt Service, Cash Flow",
			want: model.DocFinancialProforma,
		},
		{
			name: "pm report",
			text: "Monthly Property Management Report - Delinquency, Collections, Work Orders, Budget Variance",
			want: model.DocPMReport,
		},
		{
			name: "unrelated text",
			text: "The quick brown fox jumps over the lazy dog",
			want: model.DocUnknown,
		},
		{
			name: "weak signal stays unknown",
			text: "Confidential",
			want: model.DocUnknown,
		},
		{
			name: "empty",
			text: "",
			want: model.DocUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text, tt.hints)
			if got.DocumentType != tt.want {
				t.Errorf("Classify() = %s (%.2f), want %s; scores %v", got.DocumentType, got.Confidence, tt.want, got.Scores)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("Confidence = %f out of range", got.Confidence)
			}
			if got.DocumentType != model.DocUnknown && got.Confidence < c.Threshold() {
				t.Errorf("Confidence %f below threshold for %s", got.Confidence, got.DocumentType)
			}
		})
	}
}

func TestClassify_WordBoundaries(t *testing.T) {
	c := newClassifier(t)
	// "noise" contains "noi" and "terminal" contains "term"; neither should count
	got := c.Classify("noise terminal noisy", LayoutHints{})
	if got.Scores[model.DocFinancialProforma] != 0 || got.Scores[model.DocLeaseAgreement] != 0 {
		t.Errorf("substring matches counted: %v", got.Scores)
	}
}

func TestClassify_ShortDocumentPenalty(t *testing.T) {
	c := newClassifier(t)
	text := "Offering Memorandum. Investment Highlights."

	long := c.Classify(text, LayoutHints{PageCount: 40})
	short := c.Classify(text, LayoutHints{PageCount: 2})
	if short.Scores[model.DocOfferingMemo] >= long.Scores[model.DocOfferingMemo] {
		t.Errorf("short document score %f should be below long document score %f",
			short.Scores[model.DocOfferingMemo], long.Scores[model.DocOfferingMemo])
	}
}

func TestNew_Threshold(t *testing.T) {
	tests := []struct {
		threshold float64
		want      float64
		wantErr   bool
	}{
		{0, DefaultThreshold, false},
		{0.8, 0.8, false},
		{1, 1, false},
		{-0.1, 0, true},
		{1.5, 0, true},
	}

	for _, tt := range tests {
		c, err := New(tt.threshold)
		if tt.wantErr {
			if !errors.Is(err, model.ErrConfig) {
				t.Errorf("New(%v) error = %v, want ErrConfig", tt.threshold, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("New(%v) error = %v", tt.threshold, err)
		}
		if c.Threshold() != tt.want {
			t.Errorf("Threshold() = %v, want %v", c.Threshold(), tt.want)
		}
	}
}

func TestNewFromYAML_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":        "rent_roll: [",
		"zero saturation": "rent_roll:\n  keywords:\n    rent roll: 1\n",
		"unknown profile": "unknown:\n  saturation: 1\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewFromYAML([]byte(doc), 0); !errors.Is(err, model.ErrConfig) {
				t.Errorf("NewFromYAML() error = %v, want ErrConfig", err)
			}
		})
	}
}

func TestSuggest(t *testing.T) {
	c := newClassifier(t)
	classification := model.DocumentClassification{DocumentType: model.DocRentRoll, Confidence: 0.9}

	regions := c.Suggest(classification, 1700, 2200)
	if len(regions) == 0 {
		t.Fatal("expected suggested regions for a rent roll")
	}

	seen := map[string]bool{}
	for _, r := range regions {
		if err := r.Validate(); err != nil {
			t.Errorf("suggested region invalid: %v", err)
		}
		if r.Right() > 1700 || r.Bottom() > 2200 {
			t.Errorf("region %s exceeds page: %+v", r.Name, r)
		}
		if seen[r.ID] {
			t.Errorf("duplicate region ID %s", r.ID)
		}
		seen[r.ID] = true
	}

	first := regions[0]
	if first.Name != "property_name" || first.X != 85 || first.Y != 66 || first.Width != 1020 || first.Height != 110 {
		t.Errorf("first region = %+v, want property_name at (85,66) 1020x110", first)
	}

	again := c.Suggest(classification, 1700, 2200)
	if again[0].ID == first.ID {
		t.Error("each suggestion should carry fresh region IDs")
	}
}

func TestSuggest_NoSuggestions(t *testing.T) {
	c := newClassifier(t)

	if got := c.Suggest(model.UnknownClassification(), 1000, 1000); got != nil {
		t.Errorf("unknown classification suggested %d regions", len(got))
	}
	if got := c.Suggest(model.DocumentClassification{DocumentType: model.DocRentRoll}, 0, 1000); got != nil {
		t.Errorf("zero-width page suggested %d regions", len(got))
	}
}

func TestHintsFromText(t *testing.T) {
	h := HintsFromText("Unit 101 rent $1,200", 3)
	if h.PageCount != 3 {
		t.Errorf("PageCount = %d, want 3", h.PageCount)
	}
	if h.NumericDensity != 0.5 {
		t.Errorf("NumericDensity = %f, want 0.5", h.NumericDensity)
	}
	if got := HintsFromText("   ", 1); got.NumericDensity != 0 {
		t.Errorf("empty text density = %f", got.NumericDensity)
	}
}
