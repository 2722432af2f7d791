package refmaps

import "testing"

func TestNamedRangeAddFindDelete(t *testing.T) {
	m := New()
	m.AddNamed("total", NewRect(0, 0, 0, 0))
	rect, ok := m.FindNamed("total")
	if !ok || rect.Row1 != 0 {
		t.Fatalf("FindNamed failed: %+v %v", rect, ok)
	}
	if !m.DeleteNamed("total") {
		t.Fatalf("DeleteNamed should report true")
	}
	if _, ok := m.FindNamed("total"); ok {
		t.Fatalf("named range should be gone")
	}
}

func TestFrameInnermostWins(t *testing.T) {
	m := New()
	m.AddFrame(NewRect(0, 0, 10, 10), NewRect(1, 1, 9, 9), 0, 0)
	m.AddFrame(NewRect(2, 2, 4, 4), NewRect(3, 3, 3, 3), 2, 2)
	fr, ok := m.FindFrame(3, 3)
	if !ok {
		t.Fatalf("expected a frame match")
	}
	if fr.Outer.Row2 != 4 {
		t.Fatalf("expected innermost frame, got %+v", fr.Outer)
	}
}

func TestFrameTieBreakByInsertionOrder(t *testing.T) {
	m := New()
	first := m.AddFrame(NewRect(0, 0, 5, 5), NewRect(0, 0, 5, 5), 0, 0)
	m.AddFrame(NewRect(0, 0, 5, 5), NewRect(0, 0, 5, 5), 0, 0)
	fr, ok := m.FindFrame(1, 1)
	if !ok || fr != first {
		t.Fatalf("expected earliest-inserted frame to win a tie")
	}
}

func TestColorRangeTopmostWins(t *testing.T) {
	m := New()
	m.AddColorRange(NewRect(0, 0, 10, 10), 1)
	m.AddColorRange(NewRect(2, 2, 4, 4), 2)
	p, ok := m.FindColor(3, 3)
	if !ok || p != 2 {
		t.Fatalf("expected topmost (most recently added) color, got %d ok=%v", p, ok)
	}
}

func TestSetPaletteRejectsOutOfRangePair(t *testing.T) {
	m := New()
	if m.SetPalette(0, 1, 2, nil) {
		t.Fatalf("pair 0 should be rejected")
	}
	if m.SetPalette(MaxPalette+1, 1, 2, nil) {
		t.Fatalf("pair above MaxPalette should be rejected")
	}
	if !m.SetPalette(1, 1, 2, nil) {
		t.Fatalf("pair 1 should be accepted")
	}
	p, ok := m.PaletteAt(1)
	if !ok || p.Fg != 1 || p.Bg != 2 {
		t.Fatalf("PaletteAt(1) = %+v, ok=%v", p, ok)
	}
}

func TestPaletteAtReportsUnsetPair(t *testing.T) {
	m := New()
	if _, ok := m.PaletteAt(2); ok {
		t.Fatalf("pair 2 was never set")
	}
}

func TestAdjustRewritesAllCoordinates(t *testing.T) {
	m := New()
	m.AddNamed("r", NewRect(5, 0, 5, 0))
	m.AddNote(5, 0, "note", Rect{}, false)
	m.GotoRow, m.GotoCol, m.GotoSet = 5, 0, true

	// Simulate a delete-rows(0,4) adjust: everything at row>=5 shifts up by 5.
	shift := func(row, col int) (int, int) {
		if row >= 5 {
			return row - 5, col
		}
		return row, col
	}
	m.Adjust(shift, func(r1, c1, r2, c2 int) (int, int, int, int) {
		nr1, nc1 := shift(r1, c1)
		nr2, nc2 := shift(r2, c2)
		return nr1, nc1, nr2, nc2
	})

	rect, _ := m.FindNamed("r")
	if rect.Row1 != 0 {
		t.Fatalf("named range row not adjusted: %+v", rect)
	}
	note, ok := m.FindNote(0, 0)
	if !ok || note.Row != 0 {
		t.Fatalf("note not adjusted")
	}
	if m.GotoRow != 0 {
		t.Fatalf("goto state not adjusted: %d", m.GotoRow)
	}
}
