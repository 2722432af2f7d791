package editops

import (
	"testing"

	"ssc/expr"
	"ssc/refmaps"
	"ssc/registers"
	"ssc/sheet"
	"ssc/strpool"
)

func newOps() (*Ops, *expr.Arena) {
	arena := &expr.Arena{}
	return &Ops{
		Sheet: sheet.New(),
		Regs:  registers.NewFile(arena),
		Maps:  refmaps.New(),
		Arena: arena,
	}, arena
}

func TestInsertRowsShiftsSetMarks(t *testing.T) {
	o, _ := newOps()
	o.Sheet.Marks[0] = sheet.Mark{Row: 10, Col: 0, Set: true}

	if err := o.InsertRows(3, 2, false); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if got := o.Sheet.Marks[0]; !got.Set || got.Row != 12 {
		t.Fatalf("mark after insert = %+v, want row 12", got)
	}
}

func TestInsertRowsShiftsPaletteExpression(t *testing.T) {
	o, arena := newOps()
	o.Maps.SetPalette(1, 0, 0, arena.AllocRef(expr.Ref{Row: 20, Col: 0}))

	if err := o.InsertRows(5, 3, false); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	p, ok := o.Maps.PaletteAt(1)
	if !ok || p.Expr.Ref.Row != 23 {
		t.Fatalf("palette expression not shifted as expected: %+v", p)
	}
}

func TestInsertRowsShiftsReferencesBelow(t *testing.T) {
	o, arena := newOps()
	ref, _ := o.Sheet.Lookup(10, 0)
	ref.Tag = sheet.Number
	ref.Expr = arena.AllocRef(expr.Ref{Row: 20, Col: 0})

	if err := o.InsertRows(5, 3, false); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	moved := o.Sheet.Get(13, 0)
	if moved == nil || moved.Expr.Ref.Row != 23 {
		t.Fatalf("row/reference not shifted as expected: %+v", moved)
	}
}

func TestDeleteRowsAbortsUnderProtectWithLockedCell(t *testing.T) {
	o, _ := newOps()
	o.Sheet.Protect = true
	cell, _ := o.Sheet.Lookup(3, 0)
	cell.Tag = sheet.Number
	cell.Set(sheet.FlagLocked)

	if err := o.DeleteRows(3, 3, -1); err == nil {
		t.Fatalf("expected an abort error under protect with a locked cell")
	}
	if got := o.Sheet.Get(3, 0); got == nil {
		t.Fatalf("aborted delete must not touch sheet state")
	}
}

func TestDeleteRowsRotatesUndoRing(t *testing.T) {
	o, _ := newOps()
	cell, _ := o.Sheet.Lookup(0, 0)
	cell.Tag = sheet.Number
	cell.Value = 42

	if err := o.DeleteRows(0, 0, -1); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	sub := o.Regs.Find(registers.Num0 + 1)
	if sub == nil || sub.Get(0, 0) == nil || sub.Get(0, 0).Value != 42 {
		t.Fatalf("deleted row not rotated into undo slot 1")
	}
}

func TestFillIncrements(t *testing.T) {
	o, _ := newOps()
	if err := o.Fill(Rect{0, 0, 0, 3}, 10, 5, false); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	for i, want := range []float64{10, 15, 20, 25} {
		if got := o.Sheet.Get(0, i); got == nil || got.Value != want {
			t.Fatalf("cell %d = %+v, want %v", i, got, want)
		}
	}
}

func TestSortOrdersNumbersAscending(t *testing.T) {
	o, _ := newOps()
	vals := []float64{3, 1, 2}
	for i, v := range vals {
		c, _ := o.Sheet.Lookup(i, 0)
		c.Tag = sheet.Number
		c.Value = v
	}
	if err := o.Sort(Rect{0, 0, 2, 0}, []SortCriterion{{Column: 0, Direction: 1}}); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	want := []float64{1, 2, 3}
	for i, w := range want {
		if got := o.Sheet.Get(i, 0); got == nil || got.Value != w {
			t.Fatalf("row %d = %+v, want %v", i, got, w)
		}
	}
}

func TestSortEmptyCellsRankLast(t *testing.T) {
	o, _ := newOps()
	c0, _ := o.Sheet.Lookup(0, 0)
	c0.Tag = sheet.Number
	c0.Value = 5
	// row 1 left empty
	c2, _ := o.Sheet.Lookup(2, 0)
	c2.Tag = sheet.Number
	c2.Value = 1

	if err := o.Sort(Rect{0, 0, 2, 0}, []SortCriterion{{Column: 0, Direction: 1}}); err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if got := o.Sheet.Get(2, 0); got != nil && got.Live() {
		t.Fatalf("empty cell should rank last, got %+v", got)
	}
}

func TestCopyLeavesOutsideSourceReferenceUnchanged(t *testing.T) {
	o, arena := newOps()
	src, _ := o.Sheet.Lookup(0, 0)
	src.Tag = sheet.Number
	src.Expr = arena.AllocRef(expr.Ref{Row: 0, Col: 1}) // points at B1, outside the source A1

	if err := o.Copy(Rect{0, 0, 0, 0}, Rect{5, 5, 5, 5}, false); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	dst := o.Sheet.Get(5, 5)
	if dst == nil || dst.Expr == nil {
		t.Fatalf("copy did not install destination cell")
	}
	if dst.Expr.Ref.Row != 0 || dst.Expr.Ref.Col != 1 {
		t.Fatalf("ref = %+v, want B1 unchanged", dst.Expr.Ref)
	}
}

func TestCopyTranslatesRelativeReferenceInsideSource(t *testing.T) {
	o, arena := newOps()
	src, _ := o.Sheet.Lookup(0, 0)
	src.Tag = sheet.Number
	src.Expr = arena.AllocRef(expr.Ref{Row: 0, Col: 0}) // self-reference, inside the 1x1 source rect

	if err := o.Copy(Rect{0, 0, 0, 0}, Rect{5, 5, 5, 5}, false); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	dst := o.Sheet.Get(5, 5)
	if dst == nil || dst.Expr == nil {
		t.Fatalf("copy did not install destination cell")
	}
	if dst.Expr.Ref.Row != 5 || dst.Expr.Ref.Col != 5 {
		t.Fatalf("relative ref not translated: got (%d,%d), want (5,5)", dst.Expr.Ref.Row, dst.Expr.Ref.Col)
	}
}

func TestCopyLeavesAbsoluteReferenceUnchanged(t *testing.T) {
	o, arena := newOps()
	src, _ := o.Sheet.Lookup(0, 0)
	src.Tag = sheet.Number
	src.Expr = arena.AllocRef(expr.Ref{Row: 0, Col: 0, FixRow: true, FixCol: true})

	if err := o.Copy(Rect{0, 0, 0, 0}, Rect{5, 5, 5, 5}, false); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	dst := o.Sheet.Get(5, 5)
	if dst == nil || dst.Expr == nil {
		t.Fatalf("copy did not install destination cell")
	}
	if dst.Expr.Ref.Row != 0 || dst.Expr.Ref.Col != 0 {
		t.Fatalf("absolute ref ($) was translated: got (%d,%d), want unchanged (0,0)", dst.Expr.Ref.Row, dst.Expr.Ref.Col)
	}
}

func TestPullTransposeSwapsAxes(t *testing.T) {
	o, _ := newOps()
	a, _ := o.Sheet.Lookup(0, 0)
	a.Tag = sheet.Number
	a.Value = 1
	b, _ := o.Sheet.Lookup(0, 1)
	b.Tag = sheet.Number
	b.Value = 2

	o.Yank(registers.Num0, Rect{0, 0, 0, 1})
	if err := o.Pull(registers.Num0, 5, 5, PullTranspose); err != nil {
		t.Fatalf("Pull transpose: %v", err)
	}
	if got := o.Sheet.Get(5, 5); got == nil || got.Value != 1 {
		t.Fatalf("(5,5) = %+v, want value 1", got)
	}
	if got := o.Sheet.Get(6, 5); got == nil || got.Value != 2 {
		t.Fatalf("(6,5) = %+v, want value 2 (transposed from the second column)", got)
	}
}

func TestPullCopyLeavesRegisterIntact(t *testing.T) {
	o, _ := newOps()
	cell, _ := o.Sheet.Lookup(0, 0)
	cell.Tag = sheet.Number
	cell.Value = 9

	o.Yank(registers.Num0, Rect{0, 0, 0, 0})
	if err := o.Pull(registers.Num0, 3, 3, PullCopy); err != nil {
		t.Fatalf("Pull copy: %v", err)
	}
	if got := o.Sheet.Get(3, 3); got == nil || got.Value != 9 {
		t.Fatalf("(3,3) = %+v, want value 9", got)
	}
	if sub := o.Regs.Find(registers.Num0); sub == nil || sub.Get(0, 0) == nil {
		t.Fatalf("PullCopy must not consume the register")
	}
	if err := o.Pull(registers.Num0, 4, 4, PullCopy); err != nil {
		t.Fatalf("second Pull copy: %v", err)
	}
	if got := o.Sheet.Get(4, 4); got == nil || got.Value != 9 {
		t.Fatalf("(4,4) = %+v, want value 9 from a repeat pull", got)
	}
}

func TestPullExchangeSwapsDestinationIntoRegister(t *testing.T) {
	o, _ := newOps()
	src, _ := o.Sheet.Lookup(0, 0)
	src.Tag = sheet.Number
	src.Value = 1
	dst, _ := o.Sheet.Lookup(5, 5)
	dst.Tag = sheet.Number
	dst.Value = 2

	o.Yank(registers.Num0, Rect{0, 0, 0, 0})
	if err := o.Pull(registers.Num0, 5, 5, PullExchange); err != nil {
		t.Fatalf("Pull exchange: %v", err)
	}
	if got := o.Sheet.Get(5, 5); got == nil || got.Value != 1 {
		t.Fatalf("(5,5) = %+v, want value 1 pulled from the register", got)
	}
	if sub := o.Regs.Find(registers.Num0); sub == nil || sub.Get(0, 0) == nil || sub.Get(0, 0).Value != 2 {
		t.Fatalf("register should now hold the old destination value 2")
	}
}

func TestPullInsertRowsOpensSpaceBeforePulling(t *testing.T) {
	o, _ := newOps()
	below, _ := o.Sheet.Lookup(3, 0)
	below.Tag = sheet.Number
	below.Value = 100
	src, _ := o.Sheet.Lookup(0, 0)
	src.Tag = sheet.Number
	src.Value = 7

	o.Yank(registers.Num0, Rect{0, 0, 0, 0})
	if err := o.Pull(registers.Num0, 1, 0, PullInsertRows); err != nil {
		t.Fatalf("Pull insert-rows: %v", err)
	}
	if got := o.Sheet.Get(1, 0); got == nil || got.Value != 7 {
		t.Fatalf("(1,0) = %+v, want value 7", got)
	}
	if got := o.Sheet.Get(4, 0); got == nil || got.Value != 100 {
		t.Fatalf("row below the insert point should have shifted down: (4,0) = %+v, want value 100", got)
	}
}

func TestFormatReplacesFormatString(t *testing.T) {
	o, _ := newOps()
	c, _ := o.Sheet.Lookup(0, 0)
	c.Tag = sheet.Number
	o.Format(Rect{0, 0, 0, 0}, strpool.New("0.00"))
	if c.Format == nil || c.Format.String() != "0.00" {
		t.Fatalf("format not applied: %+v", c.Format)
	}
}
