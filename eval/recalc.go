package eval

import (
	"ssc/refmaps"
	"ssc/sheet"
	"ssc/strpool"
)

// DefaultIterations is the iteration cap used when a sheet has not been
// given an explicit set_iterations value.
const DefaultIterations = 10

// Result summarizes one Recalculate call.
type Result struct {
	Iterations int  // passes actually run
	Changed    int  // cells whose value, label, or error changed on the final pass
	Converged  bool // false if the cap was hit while cells were still changing
}

// toErrorState maps the evaluator's worst-error classification onto the
// cell-level error state persisted on Cell.Error.
func toErrorState(e ErrKind) sheet.ErrorState {
	switch e {
	case CellErr:
		return sheet.CellError
	case Invalid:
		return sheet.CellInvalid
	default:
		return sheet.OK
	}
}

// Recalculate re-evaluates every live formula cell until a pass produces no
// further changes or maxIterations passes have run, matching the "iterated
// recalculation" behavior of a circular-reference-tolerant sheet: each pass
// sees the previous pass's results, so a convergent chain of dependencies
// settles within a few iterations and a genuinely circular one is cut off at
// the cap rather than looping forever.
func (c *Context) Recalculate(maxIterations int) Result {
	if maxIterations < 1 {
		maxIterations = 1
	}
	order := c.Sheet.Order
	var res Result
	for iter := 1; iter <= maxIterations; iter++ {
		changed := c.recalcPass(order)
		res.Iterations = iter
		res.Changed = changed
		if changed == 0 {
			res.Converged = true
			c.RefreshPalette()
			return res
		}
	}
	res.Converged = false
	c.RefreshPalette()
	return res
}

// RefreshPalette re-evaluates every expression-driven palette slot, decoding
// the result the way change_color does: the low 3 bits select the
// foreground, the next 3 bits the background. Static slots (Expr == nil)
// are left untouched. Evaluation errors leave the previous fg/bg in place.
func (c *Context) RefreshPalette() {
	for n := 1; n <= refmaps.MaxPalette; n++ {
		p := c.Maps.Palettes[n]
		if !p.Set || p.Expr == nil {
			continue
		}
		c.CurRow, c.CurCol = 0, 0
		c.RowOffset, c.ColOffset = 0, 0
		c.Err = OK
		v := int(c.Eval(p.Expr))
		if c.Err == OK {
			c.Maps.Palettes[n].Fg = v & 7
			c.Maps.Palettes[n].Bg = (v >> 3) & 7
		}
	}
}

func (c *Context) recalcPass(order sheet.Order) int {
	changed := 0
	visit := func(row, col int) {
		cell := c.Sheet.Get(row, col)
		if cell == nil || cell.Expr == nil {
			return
		}
		c.CurRow, c.CurCol = row, col
		c.RowOffset, c.ColOffset = 0, 0
		c.Err = OK
		if cell.Has(sheet.FlagStringExpr) {
			s := c.Seval(cell.Expr)
			if newErr := toErrorState(c.Err); newErr != cell.Error || s != cellLabelString(cell) {
				cell.Error = newErr
				setCellLabel(cell, s)
				cell.Set(sheet.FlagChanged)
				changed++
			}
		} else {
			v := c.Eval(cell.Expr)
			newErr := toErrorState(c.Err)
			if newErr != cell.Error || v != cell.Value {
				cell.Value = v
				cell.Error = newErr
				cell.Set(sheet.FlagChanged)
				changed++
			}
		}
	}
	if order == sheet.ByCols {
		for col := 0; col <= c.Sheet.MaxCol; col++ {
			for row := 0; row <= c.Sheet.MaxRow; row++ {
				visit(row, col)
			}
		}
	} else {
		for row := 0; row <= c.Sheet.MaxRow; row++ {
			for col := 0; col <= c.Sheet.MaxCol; col++ {
				visit(row, col)
			}
		}
	}
	return changed
}

func cellLabelString(cell *sheet.Cell) string {
	if cell.Label == nil {
		return ""
	}
	return cell.Label.String()
}

func setCellLabel(cell *sheet.Cell, s string) {
	strpool.Release(cell.Label)
	cell.Label = strpool.New(s)
}
