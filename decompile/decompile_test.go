package decompile

import (
	"testing"

	"ssc/expr"
	"ssc/parser"
)

func roundTrip(t *testing.T, src string) string {
	t.Helper()
	var arena expr.Arena
	n, errs := parser.Parse(src, &arena)
	if len(errs) != 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	return Decompile(n, nil)
}

func TestDecompileSimpleArithmeticIsReparseable(t *testing.T) {
	got := roundTrip(t, "1+2*3")
	want := "1+2*3"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDecompileAddsParensForLeftAssociativeRight(t *testing.T) {
	var arena expr.Arena
	n, errs := parser.Parse("1-(2-3)", &arena)
	if len(errs) != 0 {
		t.Fatalf("parse: %v", errs)
	}
	got := Decompile(n, nil)
	if got != "1-(2-3)" {
		t.Fatalf("got %q, want 1-(2-3)", got)
	}
}

func TestDecompileRefHonoursFixBits(t *testing.T) {
	got := roundTrip(t, "$A$1+A1")
	if got != "$A$1+A1" {
		t.Fatalf("got %q", got)
	}
}

func TestDecompileRangeFallsBackToA1Syntax(t *testing.T) {
	got := roundTrip(t, "sum(A1:B2)")
	if got != "sum(A1:B2)" {
		t.Fatalf("got %q", got)
	}
}

func TestDecompileStringEscapes(t *testing.T) {
	got := roundTrip(t, `"a\"b"`)
	if got != `"a\"b"` {
		t.Fatalf("got %q", got)
	}
}
