package display

import (
	"testing"

	"ssc/sheet"
)

func TestFormatNumberGeneralIsShortestRoundTrip(t *testing.T) {
	got := FormatNumber(1234567.5, sheet.ColFormat{FormatIndex: sheet.FormatGeneral})
	if got != "1234567.5" {
		t.Fatalf("FormatNumber general = %q, want 1234567.5", got)
	}
}

func TestFormatNumberFixedGroupsThousands(t *testing.T) {
	got := FormatNumber(1234567.891, sheet.ColFormat{FormatIndex: sheet.FormatFixed, Precision: 2})
	if got != "1,234,567.89" {
		t.Fatalf("FormatNumber fixed = %q, want 1,234,567.89", got)
	}
}

func TestFormatNumberFixedZeroPrecision(t *testing.T) {
	got := FormatNumber(1500, sheet.ColFormat{FormatIndex: sheet.FormatFixed, Precision: 0})
	if got != "1,500" {
		t.Fatalf("FormatNumber fixed precision 0 = %q, want 1,500", got)
	}
}
