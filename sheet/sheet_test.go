package sheet

import "testing"

func TestLookupGrowsExtent(t *testing.T) {
	s := New()
	c, ok := s.Lookup(100, 50)
	if !ok {
		t.Fatalf("Lookup failed to grow extent")
	}
	c.Tag = Number
	c.Value = 42
	if got := s.Get(100, 50); got == nil || got.Value != 42 {
		t.Fatalf("Get after Lookup+grow did not return the same cell")
	}
	if s.MaxRow != 100 || s.MaxCol != 50 {
		t.Fatalf("extent not updated: maxrow=%d maxcol=%d", s.MaxRow, s.MaxCol)
	}
}

func TestCheckBoundsRejectsBeyondMax(t *testing.T) {
	s := New()
	if _, ok := s.Lookup(MaxRows, 0); ok {
		t.Fatalf("Lookup should reject a row at the hard cap")
	}
}

func TestGrowthPreservesAddresses(t *testing.T) {
	s := New()
	c1, _ := s.Lookup(0, 0)
	c1.Value = 1
	// Force growth well beyond the initial allocation.
	s.Lookup(1000, 1000)
	if got := s.Get(0, 0); got != c1 {
		t.Fatalf("growth did not preserve the original cell address")
	}
}

func TestColumnLabelRoundTrip(t *testing.T) {
	cases := []struct {
		col   int
		label string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{701, "ZZ"},
		{702, "AAA"},
	}
	for _, c := range cases {
		if got := ColumnLabel(c.col); got != c.label {
			t.Errorf("ColumnLabel(%d) = %q, want %q", c.col, got, c.label)
		}
		if got := ParseColumnLabel(c.label); got != c.col {
			t.Errorf("ParseColumnLabel(%q) = %d, want %d", c.label, got, c.col)
		}
	}
}
