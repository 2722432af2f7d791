package eval

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"ssc/expr"
	"ssc/sheet"
)

// rangeCells iterates rr in row-major order, applying the context's current
// bias to resolve each cell.
func (c *Context) rangeCells(rr expr.RangeRef, fn func(cell *sheet.Cell)) {
	minRow, minCol, maxRow, maxCol := rr.MinMax()
	for r := minRow; r <= maxRow; r++ {
		for cc := minCol; cc <= maxCol; cc++ {
			cell := c.Sheet.Get(r+c.RowOffset, cc+c.ColOffset)
			fn(cell)
		}
	}
}

// reduceSum evaluates a bare range reference as the sum of its numeric
// cells (the default numeric meaning of A1:A10 outside a reduction call).
func (c *Context) reduceSum(rr expr.RangeRef) float64 {
	var sum float64
	c.rangeCells(rr, func(cell *sheet.Cell) {
		if cell != nil && cell.Tag == sheet.Number {
			sum += cell.Value
		} else if cell != nil && cell.Error != sheet.OK {
			c.setErr(Invalid)
		}
	})
	return sum
}

// evalCall dispatches a numeric function call.
func (c *Context) evalCall(e *expr.Node) float64 {
	args := expr.Args(e.Left)
	switch strings.ToLower(e.Name) {
	case "sum":
		return c.reduceNumeric(args, func(acc, v float64) float64 { return acc + v }, 0)
	case "product":
		return c.reduceNumeric(args, func(acc, v float64) float64 { return acc * v }, 1)
	case "avg", "average":
		sum, n := c.reduceCountSum(args)
		if n == 0 {
			return 0
		}
		return sum / float64(n)
	case "count":
		_, n := c.reduceCountSum(args)
		return float64(n)
	case "min":
		return c.reduceMinMax(args, false)
	case "max":
		return c.reduceMinMax(args, true)
	case "stddev":
		return c.reduceStddev(args)
	case "lookup":
		return c.lookup(args)
	case "hlookup":
		return c.hvlookup(args, true)
	case "vlookup":
		return c.hvlookup(args, false)
	case "index":
		return c.index(args)
	case "abs":
		return math.Abs(c.arg(args, 0))
	case "sqrt":
		return math.Sqrt(c.arg(args, 0))
	case "exp":
		return math.Exp(c.arg(args, 0))
	case "ln":
		return math.Log(c.arg(args, 0))
	case "log":
		return math.Log10(c.arg(args, 0))
	case "sin":
		return math.Sin(c.arg(args, 0))
	case "cos":
		return math.Cos(c.arg(args, 0))
	case "tan":
		return math.Tan(c.arg(args, 0))
	case "atan":
		return math.Atan(c.arg(args, 0))
	case "atan2":
		return math.Atan2(c.arg(args, 0), c.arg(args, 1))
	case "pi":
		return math.Pi
	case "rnd":
		return roundHalfEven(c.arg(args, 0))
	case "round":
		return c.round(args)
	case "rand":
		return c.rand()
	case "randbetween":
		lo, hi := c.arg(args, 0), c.arg(args, 1)
		return lo + math.Floor(c.rand()*(hi-lo+1))
	case "pv":
		return pv(c.arg(args, 0), c.arg(args, 1), c.arg(args, 2))
	case "fv":
		return fv(c.arg(args, 0), c.arg(args, 1), c.arg(args, 2))
	case "pmt":
		return pmt(c.arg(args, 0), c.arg(args, 1), c.arg(args, 2))
	case "now":
		return float64(c.now().Unix())
	case "year":
		return float64(timeFromEpoch(c.arg(args, 0)).Year())
	case "month":
		return float64(timeFromEpoch(c.arg(args, 0)).Month())
	case "day":
		return float64(timeFromEpoch(c.arg(args, 0)).Day())
	case "date":
		y, m, d := int(c.arg(args, 0)), int(c.arg(args, 1)), int(c.arg(args, 2))
		return float64(time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Unix())
	case "myrow":
		return float64(c.CurRow)
	case "mycol":
		return float64(c.CurCol)
	default:
		c.setErr(CellErr)
		return 0
	}
}

func (c *Context) evalStringCall(e *expr.Node) string {
	args := expr.Args(e.Left)
	switch strings.ToLower(e.Name) {
	case "upper":
		return strings.ToUpper(c.sarg(args, 0))
	case "lower":
		return strings.ToLower(c.sarg(args, 0))
	case "proper":
		return strings.Title(strings.ToLower(c.sarg(args, 0)))
	case "substr", "mid":
		s := c.sarg(args, 0)
		pos := int(c.arg(args, 1))
		n := int(c.arg(args, 2))
		if pos < 0 || pos >= len(s) {
			return ""
		}
		end := pos + n
		if end > len(s) {
			end = len(s)
		}
		return s[pos:end]
	case "stindex":
		return c.stindex(args)
	case "coltoa":
		return sheet.ColumnLabel(int(c.arg(args, 0)))
	case "filename":
		return ""
	case "string":
		return strconvFloat(c.arg(args, 0))
	default:
		c.setErr(CellErr)
		return ""
	}
}

func (c *Context) arg(args []*expr.Node, i int) float64 {
	if i >= len(args) {
		return 0
	}
	return c.Eval(args[i])
}

func (c *Context) sarg(args []*expr.Node, i int) string {
	if i >= len(args) {
		return ""
	}
	return c.Seval(args[i])
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func timeFromEpoch(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

func (c *Context) rand() float64 {
	if c.RandSrc == nil {
		c.RandSrc = rand.New(rand.NewSource(time.Now().UnixNano())).Float64
	}
	return c.RandSrc()
}

func roundHalfEven(x float64) float64 {
	return math.RoundToEven(x)
}

func (c *Context) round(args []*expr.Node) float64 {
	x := c.arg(args, 0)
	prec := 0.0
	if len(args) > 1 {
		prec = c.arg(args, 1)
	}
	mul := math.Pow(10, prec)
	if len(args) > 2 && c.arg(args, 2) != 0 {
		return math.RoundToEven(x*mul) / mul
	}
	return math.Round(x*mul) / mul
}

// --- range reductions ---
//
// Each reduction takes either one range argument, or a range argument
// followed by a predicate expression evaluated per cell with the context's
// (row, col) bias set to that cell's offset from the range's origin, giving
// the predicate relative-reference semantics. Errors on scanned cells
// downgrade the result's error to Invalid without aborting the scan.

func (c *Context) reduceNumeric(args []*expr.Node, combine func(acc, v float64) float64, init float64) float64 {
	if len(args) == 0 || args[0].Op != expr.OpRange {
		return init
	}
	acc := init
	c.scanRange(args[0].Range, pred(args, 1), func(cell *sheet.Cell) {
		if cell != nil && cell.Tag == sheet.Number {
			acc = combine(acc, cell.Value)
		} else if cell != nil && cell.Error != sheet.OK {
			c.setErr(Invalid)
		}
	})
	return acc
}

func (c *Context) reduceCountSum(args []*expr.Node) (sum float64, n int) {
	if len(args) == 0 || args[0].Op != expr.OpRange {
		return 0, 0
	}
	c.scanRange(args[0].Range, pred(args, 1), func(cell *sheet.Cell) {
		if cell != nil && cell.Tag == sheet.Number {
			sum += cell.Value
			n++
		} else if cell != nil && cell.Error != sheet.OK {
			c.setErr(Invalid)
		}
	})
	return sum, n
}

func (c *Context) reduceMinMax(args []*expr.Node, max bool) float64 {
	if len(args) == 0 || args[0].Op != expr.OpRange {
		return 0
	}
	var result float64
	seen := false
	c.scanRange(args[0].Range, pred(args, 1), func(cell *sheet.Cell) {
		if cell == nil || cell.Tag != sheet.Number {
			if cell != nil && cell.Error != sheet.OK {
				c.setErr(Invalid)
			}
			return
		}
		if !seen || (max && cell.Value > result) || (!max && cell.Value < result) {
			result = cell.Value
			seen = true
		}
	})
	return result
}

func (c *Context) reduceStddev(args []*expr.Node) float64 {
	sum, n := c.reduceCountSum(args)
	if n < 2 {
		return 0
	}
	mean := sum / float64(n)
	var sqsum float64
	if len(args) > 0 && args[0].Op == expr.OpRange {
		c.scanRange(args[0].Range, pred(args, 1), func(cell *sheet.Cell) {
			if cell != nil && cell.Tag == sheet.Number {
				d := cell.Value - mean
				sqsum += d * d
			}
		})
	}
	return math.Sqrt(sqsum / float64(n-1))
}

func pred(args []*expr.Node, i int) *expr.Node {
	if i < len(args) {
		return args[i]
	}
	return nil
}

// scanRange visits rr's cells in row-major order; if predicate is non-nil
// it is evaluated per cell with (row_offset, col_offset) biased to that
// cell's position, and non-matching cells are skipped.
func (c *Context) scanRange(rr expr.RangeRef, predicate *expr.Node, fn func(cell *sheet.Cell)) {
	minRow, minCol, maxRow, maxCol := rr.MinMax()
	savedRow, savedCol := c.RowOffset, c.ColOffset
	defer func() { c.RowOffset, c.ColOffset = savedRow, savedCol }()
	for r := minRow; r <= maxRow; r++ {
		for cc := minCol; cc <= maxCol; cc++ {
			cell := c.Sheet.Get(r, cc)
			if predicate != nil {
				c.RowOffset, c.ColOffset = r-minRow, cc-minCol
				if c.Eval(predicate) == 0 {
					continue
				}
			}
			fn(cell)
		}
	}
}

// keyIsString reports whether a lookup key expression is string-valued,
// mirroring the reference interpreter's static etype() check on the key
// node: a string constant, a concatenation, a string-returning function
// call, or a reference to a text cell all count as a string key.
func (c *Context) keyIsString(n *expr.Node) bool {
	switch n.Op {
	case expr.OpSConst, expr.OpConcat, expr.OpExternal:
		return true
	case expr.OpRef:
		cell, ok := c.resolveRef(n.Ref)
		return ok && cell.Tag == sheet.Text
	case expr.OpFixed:
		return c.keyIsString(n.Left)
	case expr.OpSemi:
		return c.keyIsString(n.Right)
	case expr.OpCond:
		if c.Eval(n.Cond) != 0 {
			return c.keyIsString(n.Left)
		}
		return c.keyIsString(n.Right)
	case expr.OpCall:
		switch strings.ToLower(n.Name) {
		case "upper", "lower", "proper", "substr", "mid", "coltoa", "filename", "string", "stindex":
			return true
		}
		return false
	default:
		return false
	}
}

// lookup implements the single-vector form: scan every cell of the range in
// row-major order for the last value <= key (numeric, monotonic assumption,
// scan stops early when a larger value is seen) or an exact string match
// against each cell's label, returning the matched cell's own value. No
// separate result vector is taken.
func (c *Context) lookup(args []*expr.Node) float64 {
	if len(args) < 2 || args[1].Op != expr.OpRange {
		return 0
	}
	minRow, minCol, maxRow, maxCol := args[1].Range.MinMax()
	if c.keyIsString(args[0]) {
		key := c.Seval(args[0])
		for r := minRow; r <= maxRow; r++ {
			for cc := minCol; cc <= maxCol; cc++ {
				cell := c.Sheet.Get(r, cc)
				if cell != nil && cell.Label != nil && cell.Label.String() == key {
					return cell.Value
				}
			}
		}
		return 0
	}
	key := c.Eval(args[0])
	var result float64
	for r := minRow; r <= maxRow; r++ {
		for cc := minCol; cc <= maxCol; cc++ {
			cell := c.Sheet.Get(r, cc)
			if cell == nil || cell.Tag != sheet.Number {
				continue
			}
			if cell.Value > key {
				return result
			}
			result = cell.Value
		}
	}
	return result
}

func (c *Context) hvlookup(args []*expr.Node, horizontal bool) float64 {
	if len(args) < 2 || args[1].Op != expr.OpRange {
		return 0
	}
	minRow, minCol, maxRow, maxCol := args[1].Range.MinMax()
	if c.keyIsString(args[0]) {
		key := c.Seval(args[0])
		if horizontal {
			for cc := minCol; cc <= maxCol; cc++ {
				cell := c.Sheet.Get(minRow, cc)
				if cell != nil && cell.Label != nil && cell.Label.String() == key {
					if result := c.Sheet.Get(minRow+1, cc); result != nil {
						return result.Value
					}
				}
			}
			return 0
		}
		for r := minRow; r <= maxRow; r++ {
			cell := c.Sheet.Get(r, minCol)
			if cell != nil && cell.Label != nil && cell.Label.String() == key {
				if result := c.Sheet.Get(r, minCol+1); result != nil {
					return result.Value
				}
			}
		}
		return 0
	}
	key := c.Eval(args[0])
	if horizontal {
		for cc := minCol; cc <= maxCol; cc++ {
			cell := c.Sheet.Get(minRow, cc)
			if cell != nil && cell.Tag == sheet.Number && cell.Value == key {
				if result := c.Sheet.Get(minRow+1, cc); result != nil {
					return result.Value
				}
			}
		}
		return 0
	}
	for r := minRow; r <= maxRow; r++ {
		cell := c.Sheet.Get(r, minCol)
		if cell != nil && cell.Tag == sheet.Number && cell.Value == key {
			if result := c.Sheet.Get(r, minCol+1); result != nil {
				return result.Value
			}
		}
	}
	return 0
}

func (c *Context) index(args []*expr.Node) float64 {
	if len(args) < 1 || args[0].Op != expr.OpRange {
		return 0
	}
	minRow, minCol, _, _ := args[0].Range.MinMax()
	rOff, cOff := 0, 0
	if len(args) > 1 {
		rOff = int(c.Eval(args[1]))
	}
	if len(args) > 2 {
		cOff = int(c.Eval(args[2]))
	}
	cell := c.Sheet.Get(minRow+rOff, minCol+cOff)
	if cell == nil {
		return 0
	}
	return cell.Value
}

func (c *Context) stindex(args []*expr.Node) string {
	if len(args) < 1 || args[0].Op != expr.OpRange {
		return ""
	}
	minRow, minCol, _, _ := args[0].Range.MinMax()
	rOff, cOff := 0, 0
	if len(args) > 1 {
		rOff = int(c.Eval(args[1]))
	}
	if len(args) > 2 {
		cOff = int(c.Eval(args[2]))
	}
	cell := c.Sheet.Get(minRow+rOff, minCol+cOff)
	if cell == nil || cell.Label == nil {
		return ""
	}
	return cell.Label.String()
}

// --- financial ---

func pv(rate, nper, pmt float64) float64 {
	if rate == 0 {
		return -pmt * nper
	}
	return -pmt * (1 - math.Pow(1+rate, -nper)) / rate
}

func fv(rate, nper, pmt float64) float64 {
	if rate == 0 {
		return -pmt * nper
	}
	return -pmt * (math.Pow(1+rate, nper) - 1) / rate
}

func pmt(rate, nper, pv float64) float64 {
	if rate == 0 {
		return -pv / nper
	}
	return -pv * rate / (1 - math.Pow(1+rate, -nper))
}

func strconvFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
