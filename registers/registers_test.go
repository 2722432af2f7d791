package registers

import (
	"testing"

	"ssc/expr"
	"ssc/sheet"
)

func TestSlotForChar(t *testing.T) {
	cases := []struct {
		ch   byte
		want int
	}{
		{'"', Anon},
		{'0', Num0},
		{'9', Num9},
		{'a', alphaBase},
		{'z', alphaBase + 25},
		{'!', -1},
	}
	for _, c := range cases {
		if got := SlotForChar(c.ch); got != c.want {
			t.Errorf("SlotForChar(%q) = %d, want %d", c.ch, got, c.want)
		}
	}
}

func TestSubsheetGetSet(t *testing.T) {
	sub := NewSubsheet(2, 2, 4, 4)
	c := &sheet.Cell{Tag: sheet.Number, Value: 5}
	sub.Set(3, 3, c)
	if got := sub.Get(3, 3); got != c {
		t.Fatalf("Get did not return the set cell")
	}
	if sub.Get(10, 10) != nil {
		t.Fatalf("Get out of rect should be nil")
	}
}

func TestFileAllocFindRelease(t *testing.T) {
	var arena expr.Arena
	f := NewFile(&arena)
	sub := NewSubsheet(0, 0, 0, 0)
	sub.Set(0, 0, &sheet.Cell{Tag: sheet.Number, Value: 1})
	if err := f.Alloc(Default, sub); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if f.Find(Default) != sub {
		t.Fatalf("Find did not return the allocated subsheet")
	}
	f.Release(Default)
	if f.Find(Default) != nil {
		t.Fatalf("slot should be cleared after Release")
	}
}

func TestCopySharesRefcount(t *testing.T) {
	var arena expr.Arena
	f := NewFile(&arena)
	sub := NewSubsheet(0, 0, 0, 0)
	f.Alloc(Default, sub)
	if err := f.Copy(Default, Num0+1); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if f.Find(Num0+1) != sub {
		t.Fatalf("Copy should share the same subsheet pointer")
	}
	if sub.refs != 2 {
		t.Fatalf("refs = %d, want 2", sub.refs)
	}
	f.Release(Default)
	if f.Find(Num0+1) == nil {
		t.Fatalf("releasing one share should not free the subsheet")
	}
}

func TestRotateShiftsUndoRing(t *testing.T) {
	var arena expr.Arena
	f := NewFile(&arena)
	for i := Num0 + 1; i <= Num9; i++ {
		f.slots[i] = NewSubsheet(i, 0, i, 0)
	}
	f.Rotate()
	if f.slots[Num0+1] != nil {
		t.Fatalf("slot 1 should be cleared after rotate, ready for the new default")
	}
	if f.slots[Num0+2].MinRow != Num0+1 {
		t.Fatalf("slot 2 should hold what was in slot 1")
	}
}
