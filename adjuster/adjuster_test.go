package adjuster

import (
	"testing"

	"ssc/expr"
)

func TestForDeleteRowsClampsInsideAndShiftsBelow(t *testing.T) {
	ctx := ForDeleteRows(2, 4, 100)

	// Inside the deleted band: clamps to the top edge, column untouched.
	row, col := ctx.Point(3, 7)
	if row != 2 || col != 7 {
		t.Fatalf("Point(3,7) = (%d,%d), want (2,7)", row, col)
	}
	// Below the band: shifts up by the band height (3 rows).
	row, col = ctx.Point(10, 7)
	if row != 7 || col != 7 {
		t.Fatalf("Point(10,7) = (%d,%d), want (7,7)", row, col)
	}
	// Above the band: untouched.
	row, col = ctx.Point(1, 7)
	if row != 1 || col != 7 {
		t.Fatalf("Point(1,7) = (%d,%d), want (1,7)", row, col)
	}
}

func TestRangeRightEndpointClampsOneShort(t *testing.T) {
	ctx := ForDeleteRows(2, 4, 100)
	// A range endpoint at row 3 (inside the deleted band) clamps to
	// ClampNewRow-1 = 1, not ClampNewRow = 2, for the right/bottom corner.
	r1, c1, r2, c2 := ctx.Range(0, 0, 3, 0)
	if r1 != 0 || c1 != 0 {
		t.Fatalf("left endpoint changed unexpectedly: (%d,%d)", r1, c1)
	}
	if r2 != 1 || c2 != 0 {
		t.Fatalf("right endpoint = (%d,%d), want (1,0)", r2, c2)
	}
}

func TestForInsertRowsShiftsAtAndBelow(t *testing.T) {
	ctx := ForInsertRows(5, 3, 100)
	row, _ := ctx.Point(5, 0)
	if row != 8 {
		t.Fatalf("Point(5,0).row = %d, want 8", row)
	}
	row, _ = ctx.Point(4, 0)
	if row != 4 {
		t.Fatalf("Point(4,0).row = %d, want unchanged 4", row)
	}
}

func TestAdjustExprRewritesRefAndRange(t *testing.T) {
	var arena expr.Arena
	ref := arena.AllocRef(expr.Ref{Row: 10, Col: 0})
	rng := arena.AllocRange(expr.RangeRef{
		Left:  expr.Ref{Row: 0, Col: 0},
		Right: expr.Ref{Row: 10, Col: 0},
	})
	call := arena.AllocCall("sum", arena.AllocArgs([]*expr.Node{ref, rng}))

	ctx := ForDeleteRows(2, 4, 100)
	ctx.AdjustExpr(call)

	if ref.Ref.Row != 7 {
		t.Fatalf("ref.Row = %d, want 7 (10-3)", ref.Ref.Row)
	}
	if rng.Range.Right.Row != 7 {
		t.Fatalf("range right row = %d, want 7", rng.Range.Right.Row)
	}
}

func TestForMoveTranslatesInsideSourceOnly(t *testing.T) {
	ctx := ForMove(0, 0, 2, 2, 5, 5)
	row, col := ctx.Point(1, 1)
	if row != 6 || col != 6 {
		t.Fatalf("Point(1,1) = (%d,%d), want (6,6)", row, col)
	}
	row, col = ctx.Point(5, 5)
	if row != 5 || col != 5 {
		t.Fatalf("Point(5,5) = (%d,%d), want unchanged", row, col)
	}
}
