// Package adjuster implements the single reference-rewriting pass that every
// structural edit (insert/delete row or column, move) runs once against the
// sheet's cells, its registers' cells, and its refmaps.Maps.
package adjuster

import (
	"ssc/expr"
	"ssc/refmaps"
)

// Ctx parameterizes one adjust pass. ClampNewRow/ClampNewCol of -1 means
// "don't clamp that axis" (the other axis is still clamped). A zero Ctx
// (both Active flags false) adjusts nothing.
type Ctx struct {
	ClampActive              bool
	ClampRow1, ClampCol1     int
	ClampRow2, ClampCol2     int
	ClampNewRow, ClampNewCol int

	MoveActive           bool
	MoveRow1, MoveCol1   int
	MoveRow2, MoveCol2   int
	MoveDR, MoveDC       int
}

func (c *Ctx) inClamp(row, col int) bool {
	return c.ClampActive &&
		row >= c.ClampRow1 && row <= c.ClampRow2 &&
		col >= c.ClampCol1 && col <= c.ClampCol2
}

func (c *Ctx) inMove(row, col int) bool {
	return c.MoveActive &&
		row >= c.MoveRow1 && row <= c.MoveRow2 &&
		col >= c.MoveCol1 && col <= c.MoveCol2
}

// Point rewrites a single-cell reference (a mark, a frame trigger, a note
// position, a plain cell-reference node's coordinates).
func (c *Ctx) Point(row, col int) (int, int) {
	if c.inClamp(row, col) {
		if c.ClampNewRow >= 0 {
			row = c.ClampNewRow
		}
		if c.ClampNewCol >= 0 {
			col = c.ClampNewCol
		}
		return row, col
	}
	if c.inMove(row, col) {
		return row + c.MoveDR, col + c.MoveDC
	}
	return row, col
}

// rangeRight rewrites a range reference's lower-right endpoint: a clamp
// collapses it to one short of the new edge rather than onto it, so that a
// range that used to straddle a deleted rectangle ends up exactly abutting
// the deletion point instead of re-including it.
func (c *Ctx) rangeRight(row, col int) (int, int) {
	if c.inClamp(row, col) {
		if c.ClampNewRow >= 0 {
			row = c.ClampNewRow - 1
		}
		if c.ClampNewCol >= 0 {
			col = c.ClampNewCol - 1
		}
		return row, col
	}
	if c.inMove(row, col) {
		return row + c.MoveDR, col + c.MoveDC
	}
	return row, col
}

// Range rewrites a range reference's two endpoints independently, using
// Point for the left/top corner and rangeRight for the right/bottom corner.
func (c *Ctx) Range(row1, col1, row2, col2 int) (int, int, int, int) {
	nr1, nc1 := c.Point(row1, col1)
	nr2, nc2 := c.rangeRight(row2, col2)
	return nr1, nc1, nr2, nc2
}

// pointFunc/rangeFunc adapt Ctx to the function types refmaps.Maps.Adjust
// expects, without refmaps importing this package.
func (c *Ctx) pointFunc() refmaps.PointFunc { return c.Point }
func (c *Ctx) rangeFunc() refmaps.RangeFunc { return c.Range }

// AdjustMaps runs the pass over one sheet's reference maps.
func (c *Ctx) AdjustMaps(m *refmaps.Maps) {
	m.Adjust(c.pointFunc(), c.rangeFunc())
}

// AdjustExpr runs the pass over a single expression tree's reference and
// range nodes, recursing through calls, args, conditionals and the external
// command node's operand.
func (c *Ctx) AdjustExpr(n *expr.Node) {
	if n == nil {
		return
	}
	switch n.Op {
	case expr.OpRef:
		n.Ref.Row, n.Ref.Col = c.Point(n.Ref.Row, n.Ref.Col)
	case expr.OpRange:
		n.Range.Left.Row, n.Range.Left.Col, n.Range.Right.Row, n.Range.Right.Col =
			c.Range(n.Range.Left.Row, n.Range.Left.Col, n.Range.Right.Row, n.Range.Right.Col)
	case expr.OpCond:
		c.AdjustExpr(n.Cond)
		c.AdjustExpr(n.Left)
		c.AdjustExpr(n.Right)
	case expr.OpCall:
		for _, arg := range expr.Args(n.Left) {
			c.AdjustExpr(arg)
		}
	default:
		c.AdjustExpr(n.Left)
		c.AdjustExpr(n.Right)
	}
}

// ForDeleteRows builds the Ctx for deleting rows [r1, r2] (inclusive,
// zero-based): references inside the deleted band clamp to its top edge;
// references below it shift up by the band's height.
func ForDeleteRows(r1, r2, maxCol int) *Ctx {
	n := r2 - r1 + 1
	return &Ctx{
		ClampActive: true,
		ClampRow1:   r1, ClampCol1: 0,
		ClampRow2: r2, ClampCol2: maxCol,
		ClampNewRow: r1, ClampNewCol: -1,

		MoveActive: true,
		MoveRow1:   r2 + 1, MoveCol1: 0,
		MoveRow2: maxRowSentinel, MoveCol2: maxCol,
		MoveDR: -n, MoveDC: 0,
	}
}

// ForDeleteCols is the column analogue of ForDeleteRows.
func ForDeleteCols(c1, c2, maxRow int) *Ctx {
	n := c2 - c1 + 1
	return &Ctx{
		ClampActive: true,
		ClampRow1:   0, ClampCol1: c1,
		ClampRow2: maxRow, ClampCol2: c2,
		ClampNewRow: -1, ClampNewCol: c1,

		MoveActive: true,
		MoveRow1:   0, MoveCol1: c2 + 1,
		MoveRow2: maxRow, MoveCol2: maxColSentinel,
		MoveDR: 0, MoveDC: -n,
	}
}

// ForInsertRows builds the Ctx for inserting n rows at (before) position at:
// every reference at or below at shifts down by n. No clamp is needed since
// insertion never collapses a reference.
func ForInsertRows(at, n, maxCol int) *Ctx {
	return &Ctx{
		MoveActive: true,
		MoveRow1:   at, MoveCol1: 0,
		MoveRow2: maxRowSentinel, MoveCol2: maxCol,
		MoveDR: n, MoveDC: 0,
	}
}

// ForInsertCols is the column analogue of ForInsertRows.
func ForInsertCols(at, n, maxRow int) *Ctx {
	return &Ctx{
		MoveActive: true,
		MoveRow1:   0, MoveCol1: at,
		MoveRow2: maxRow, MoveCol2: maxColSentinel,
		MoveDR: 0, MoveDC: n,
	}
}

// ForMove builds the Ctx for a plain area move: every reference inside the
// source rectangle translates by (dr, dc). There is no clamping; a move
// never deletes anything.
func ForMove(row1, col1, row2, col2, dr, dc int) *Ctx {
	return &Ctx{
		MoveActive: true,
		MoveRow1:   row1, MoveCol1: col1,
		MoveRow2: row2, MoveCol2: col2,
		MoveDR: dr, MoveDC: dc,
	}
}

// maxRowSentinel/maxColSentinel stand in for "to the end of the sheet"; the
// Sheet's own MaxRows/MaxCols hard caps are always well inside these.
const (
	maxRowSentinel = 1<<20 - 1
	maxColSentinel = 1<<14 - 1
)
