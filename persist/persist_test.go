package persist

import (
	"strings"
	"testing"

	"ssc/engine"
	"ssc/sheet"
)

func TestApplyLetSetsExpression(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	if err := Apply(e, abbrev, `let A1 = 2+3`); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := e.Sheet.Get(0, 0).Value; got != 5 {
		t.Fatalf("A1 = %v, want 5", got)
	}
}

func TestApplyLeftstringSetsLabelAndAlign(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	if err := Apply(e, abbrev, `leftstring B2 = "hello world"`); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	cell := e.Sheet.Get(1, 1)
	if cell.Label.String() != "hello world" {
		t.Fatalf("label = %q", cell.Label.String())
	}
	if cell.Align != sheet.AlignLeft {
		t.Fatalf("align = %v, want AlignLeft", cell.Align)
	}
}

func TestApplyDefineAddsNamedRange(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	if err := Apply(e, abbrev, `define total A1:B2`); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok := e.Maps.FindNamed("total"); !ok {
		t.Fatalf("named range not registered")
	}
}

func TestAbbrevExpansionAppliesBeforeDispatch(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	abbrev.Add("l", "let")
	if err := Apply(e, abbrev, `l A1 = 9`); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := e.Sheet.Get(0, 0).Value; got != 9 {
		t.Fatalf("A1 = %v, want 9", got)
	}
}

func TestEmitRoundTripsNumericCell(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	if err := Apply(e, abbrev, `let A1 = 2+3`); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	lines := Emit(e, abbrev)
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, "let A1 =") {
			found = true
		}
	}
	if !found {
		t.Fatalf("emitted lines missing A1: %v", lines)
	}

	e2 := engine.New()
	for _, l := range lines {
		if err := Apply(e2, abbrev, l); err != nil {
			t.Fatalf("re-apply of emitted line %q: %v", l, err)
		}
	}
	if got := e2.Sheet.Get(0, 0).Value; got != 5 {
		t.Fatalf("round-tripped A1 = %v, want 5", got)
	}
}

func TestApplyColorExprDefinesPaletteAndRecalculates(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	if err := Apply(e, abbrev, `let A1 = 10`); err != nil {
		t.Fatalf("Apply let: %v", err)
	}
	if err := Apply(e, abbrev, `color 1 = A1`); err != nil {
		t.Fatalf("Apply color expr: %v", err)
	}
	fg, bg, ok := e.Palette(1)
	if !ok || fg != 2 || bg != 1 {
		t.Fatalf("Palette(1) = (%d,%d,%v), want (2,1,true)", fg, bg, ok)
	}
}

func TestEmitRoundTripsColorExpr(t *testing.T) {
	e := engine.New()
	abbrev := NewAbbrevTable()
	if err := Apply(e, abbrev, `let A1 = 10`); err != nil {
		t.Fatalf("Apply let: %v", err)
	}
	if err := Apply(e, abbrev, `color 1 = A1`); err != nil {
		t.Fatalf("Apply color expr: %v", err)
	}
	lines := Emit(e, abbrev)
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, "color 1 = ") {
			found = true
		}
	}
	if !found {
		t.Fatalf("emitted lines missing palette expr: %v", lines)
	}

	e2 := engine.New()
	for _, l := range lines {
		if err := Apply(e2, abbrev, l); err != nil {
			t.Fatalf("re-apply of emitted line %q: %v", l, err)
		}
	}
	fg, bg, ok := e2.Palette(1)
	if !ok || fg != 2 || bg != 1 {
		t.Fatalf("round-tripped Palette(1) = (%d,%d,%v), want (2,1,true)", fg, bg, ok)
	}
}

func TestAbbrevTableLongestPrefixMatch(t *testing.T) {
	tbl := NewAbbrevTable()
	tbl.Add("l", "let")
	tbl.Add("le", "letter")
	if got := tbl.Expand("le"); got != "letter" {
		t.Fatalf("Expand(le) = %q, want letter", got)
	}
	if got := tbl.Expand("lsomething"); got != "letsomething" {
		t.Fatalf("Expand(lsomething) = %q, want letsomething", got)
	}
}
