package validate

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/platinummonkey/regionscan/internal/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		fieldType  model.FieldType
		wantPassed bool
		wantNorm   string
	}{
		// currency
		{"currency canonical", "$1,200.00", model.FieldCurrency, true, "$1,200.00"},
		{"currency no symbol", "1200", model.FieldCurrency, true, "$1,200.00"},
		{"currency one decimal", "$12345678.5", model.FieldCurrency, false, "$12345678.5"},
		{"currency millions", "2,500,000", model.FieldCurrency, true, "$2,500,000.00"},
		{"currency spaced", " $ 1,200.00 ", model.FieldCurrency, true, "$1,200.00"},
		{"currency bad grouping", "$12,00.00", model.FieldCurrency, false, "$12,00.00"},
		{"currency lakh grouping", "1,20,000", model.FieldCurrency, false, "1,20,000"},
		{"currency letters", "$1,2OO.00", model.FieldCurrency, false, "$1,2OO.00"},
		{"currency only commas", ",,", model.FieldCurrency, false, ",,"},

		// date
		{"date us slash", "03/15/2024", model.FieldDate, true, "2024-03-15"},
		{"date us dash", "3-5-2024", model.FieldDate, true, "2024-03-05"},
		{"date iso", "2024-03-15", model.FieldDate, true, "2024-03-15"},
		{"date invalid month", "13/01/2024", model.FieldDate, false, "13/01/2024"},
		{"date prose", "March 15", model.FieldDate, false, "March 15"},

		// address
		{"address", "123  MAIN st", model.FieldAddress, true, "123 Main St"},
		{"address suite", "4500 n lamar blvd suite 200", model.FieldAddress, true, "4500 N Lamar Blvd Suite 200"},
		{"address no number", "Main Street", model.FieldAddress, false, "Main Street"},
		{"address no suffix", "123 Main", model.FieldAddress, false, "123 Main"},

		// sqft
		{"sqft with unit", "2500 sq. ft.", model.FieldSqft, true, "2,500 SF"},
		{"sqft grouped", "12,000 SF", model.FieldSqft, true, "12,000 SF"},
		{"sqft bare", "950", model.FieldSqft, true, "950 SF"},
		{"sqft fraction rounds", "1,500.6 rsf", model.FieldSqft, true, "1,501 SF"},
		{"sqft garbage", "about 900", model.FieldSqft, false, "about 900"},

		// phone
		{"phone dotted", "512.555.0142", model.FieldPhone, true, "(512) 555-0142"},
		{"phone country code", "+1 (512) 555-0142", model.FieldPhone, true, "(512) 555-0142"},
		{"phone short", "555-0142", model.FieldPhone, false, "555-0142"},

		// email
		{"email", "Leasing@Example.COM", model.FieldEmail, true, "leasing@example.com"},
		{"email missing tld", "leasing@example", model.FieldEmail, false, "leasing@example"},

		// text
		{"text always passes", "  anything  goes ", model.FieldText, true, "anything goes"},
		{"unspecified passes", "x", "", true, "x"},
		{"empty typed value fails", "   ", model.FieldCurrency, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.text, tt.fieldType)
			if got.Passed != tt.wantPassed {
				t.Errorf("Validate(%q, %s).Passed = %v, want %v (reason %q)", tt.text, tt.fieldType, got.Passed, tt.wantPassed, got.Reason)
			}
			if got.Normalized != tt.wantNorm {
				t.Errorf("Validate(%q, %s).Normalized = %q, want %q", tt.text, tt.fieldType, got.Normalized, tt.wantNorm)
			}
			if !got.Passed && tt.fieldType != model.FieldText && tt.fieldType != "" && got.Reason == "" {
				t.Error("failed validation should carry a reason")
			}
		})
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"999.999", "$1,000.00"},
		{"1234567.891", "$1,234,567.89"},
		{"-42.5", "-$42.50"},
	}

	for _, tt := range tests {
		if got := FormatCurrency(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatCurrency(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	for in, want := range map[string]string{"1": "1", "123": "123", "1234": "1,234", "123456": "123,456", "1234567": "1,234,567"} {
		if got := groupThousands(in); got != want {
			t.Errorf("groupThousands(%s) = %s, want %s", in, got, want)
		}
	}
}
