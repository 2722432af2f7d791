package engine

import "testing"

func TestSnapshotRendersLiveCells(t *testing.T) {
	e := New()
	if err := e.SetNumber(0, 0, 42); err != nil {
		t.Fatalf("SetNumber: %v", err)
	}
	if err := e.SetString(0, 1, "hi"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	snap := e.Snapshot()
	if snap == "" {
		t.Fatalf("expected non-empty snapshot")
	}
}

func TestStructuralEditsWorkWithoutAudit(t *testing.T) {
	e := New()
	if err := e.SetNumber(0, 0, 1); err != nil {
		t.Fatalf("SetNumber: %v", err)
	}
	if e.Audit != nil {
		t.Fatalf("expected no audit wired by default")
	}
	if err := e.InsertRows(0, 1, false); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if got := e.Sheet.Get(1, 0).Value; got != 1 {
		t.Fatalf("A2 = %v, want 1 after insert with no audit wired", got)
	}
}
