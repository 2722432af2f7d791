// Package eval implements the numeric and string evaluator over an expr.Node
// tree, plus the iterated recalculation driver. Evaluator state that the
// reference implementation keeps process-wide (row/col offset bias, the
// worst error seen, the current cell) is bundled into
// an explicit Context passed by every call, per the evaluator-context design
// note.
package eval

import (
	"fmt"
	"math"
	"strings"
	"time"

	"ssc/expr"
	"ssc/refmaps"
	"ssc/sheet"
	"ssc/strpool"
)

// ErrKind classifies the worst error observed during one expression's
// evaluation.
type ErrKind uint8

const (
	OK ErrKind = iota
	CellErr         // arithmetic/bounds/ref error: value forced to 0
	Invalid         // propagated from a referenced cell's own error
)

// CommandRunner executes an external-command node's shell command line,
// returning its output; the evaluator keeps only the first line of it.
// Package command provides the
// production implementation; tests may stub it.
type CommandRunner interface {
	Run(cmdline string) (string, error)
}

// Context bundles the evaluator state the reference implementation threads
// through process-wide globals: the reference-resolution bias used inside
// range-reduction predicates and the `f` (fixed) operator, the worst error
// seen so far in the current expression, the current cell (for @myrow/
// @mycol and error messages), and a configuration surface (external-command
// enable, RNG, clock).
type Context struct {
	Sheet   *sheet.Sheet
	Maps    *refmaps.Maps
	Runner  CommandRunner
	RandSrc func() float64 // defaults to a time-seeded source if nil

	RowOffset, ColOffset int
	Err                  ErrKind
	CurRow, CurCol       int

	ExternalEnabled bool
	Now             func() time.Time
}

func NewContext(s *sheet.Sheet, m *refmaps.Maps) *Context {
	return &Context{Sheet: s, Maps: m, Now: time.Now}
}

func (c *Context) setErr(e ErrKind) {
	if e > c.Err {
		c.Err = e
	}
}

// resolveRef applies the context's row/col bias (used inside range-reduction
// predicates and left at zero everywhere else) and looks up the target cell.
func (c *Context) resolveRef(ref expr.Ref) (*sheet.Cell, bool) {
	row, col := ref.Row+c.RowOffset, ref.Col+c.ColOffset
	cell := c.Sheet.Get(row, col)
	return cell, cell != nil
}

// evalName resolves a named range to its top-left cell's numeric value,
// mirroring how a single-cell reference evaluates. A name bound to a
// multi-cell range still yields only its corner cell; the range-reduction
// functions are the way to fold an entire named range.
func (c *Context) evalName(name string) float64 {
	rect, ok := c.Maps.FindNamed(name)
	if !ok {
		c.setErr(CellErr)
		return 0
	}
	cell := c.Sheet.Get(rect.Row1+c.RowOffset, rect.Col1+c.ColOffset)
	if cell == nil || !cell.Live() {
		c.setErr(CellErr)
		return 0
	}
	if cell.Error != sheet.OK {
		c.setErr(Invalid)
	}
	return cell.Value
}

// Eval evaluates e numerically, updating c.Err to the worst error seen.
// Contract: a missing/deleted referenced cell sets CellErr and yields 0; a
// referenced cell that itself carries an error propagates as Invalid.
func (c *Context) Eval(e *expr.Node) (result float64) {
	defer func() {
		if r := recover(); r != nil {
			c.setErr(CellErr)
			result = 0
		}
	}()
	if e == nil {
		return 0
	}
	switch e.Op {
	case expr.OpConst:
		return e.Num
	case expr.OpSConst:
		return 0
	case expr.OpRef:
		cell, ok := c.resolveRef(e.Ref)
		if !ok || !cell.Live() {
			c.setErr(CellErr)
			return 0
		}
		if cell.Error != sheet.OK {
			c.setErr(Invalid)
		}
		return cell.Value
	case expr.OpName:
		return c.evalName(e.Name)
	case expr.OpRange:
		return c.reduceSum(e.Range)
	case expr.OpNeg:
		return -c.Eval(e.Left)
	case expr.OpNot:
		return boolF(c.Eval(e.Left) == 0)
	case expr.OpFixed:
		savedRow, savedCol := c.RowOffset, c.ColOffset
		c.RowOffset, c.ColOffset = 0, 0
		defer func() { c.RowOffset, c.ColOffset = savedRow, savedCol }()
		return c.Eval(e.Left)
	case expr.OpAdd:
		return c.Eval(e.Left) + c.Eval(e.Right)
	case expr.OpSub:
		return c.Eval(e.Left) - c.Eval(e.Right)
	case expr.OpMul:
		return c.Eval(e.Left) * c.Eval(e.Right)
	case expr.OpDiv:
		l, r := c.Eval(e.Left), c.Eval(e.Right)
		if r == 0 {
			c.setErr(CellErr)
			return 0
		}
		v := l / r
		if math.IsInf(v, 0) || math.IsNaN(v) {
			c.setErr(CellErr)
			return 0
		}
		return v
	case expr.OpMod:
		l, r := c.Eval(e.Left), c.Eval(e.Right)
		if r == 0 {
			c.setErr(CellErr)
			return 0
		}
		return math.Mod(l, r)
	case expr.OpPow:
		v := math.Pow(c.Eval(e.Left), c.Eval(e.Right))
		if math.IsNaN(v) {
			c.setErr(CellErr)
			return 0
		}
		return v
	case expr.OpEq:
		return boolF(c.Eval(e.Left) == c.Eval(e.Right))
	case expr.OpNe:
		return boolF(c.Eval(e.Left) != c.Eval(e.Right))
	case expr.OpLt:
		return boolF(c.Eval(e.Left) < c.Eval(e.Right))
	case expr.OpLe:
		return boolF(c.Eval(e.Left) <= c.Eval(e.Right))
	case expr.OpGt:
		return boolF(c.Eval(e.Left) > c.Eval(e.Right))
	case expr.OpGe:
		return boolF(c.Eval(e.Left) >= c.Eval(e.Right))
	case expr.OpAnd:
		return boolF(c.Eval(e.Left) != 0 && c.Eval(e.Right) != 0)
	case expr.OpOr:
		return boolF(c.Eval(e.Left) != 0 || c.Eval(e.Right) != 0)
	case expr.OpCond:
		if c.Eval(e.Cond) != 0 {
			return c.Eval(e.Left)
		}
		return c.Eval(e.Right)
	case expr.OpSemi:
		c.Eval(e.Left)
		return c.Eval(e.Right)
	case expr.OpCall:
		return c.evalCall(e)
	case expr.OpExternal:
		s := c.evalExternal(e)
		v, err := parseNumeric(s)
		if err != nil {
			return 0
		}
		return v
	default:
		return 0
	}
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Seval evaluates e as a string, mirroring Eval for string-valued nodes.
func (c *Context) Seval(e *expr.Node) (result string) {
	defer func() {
		if r := recover(); r != nil {
			c.setErr(CellErr)
			result = ""
		}
	}()
	if e == nil {
		return ""
	}
	switch e.Op {
	case expr.OpSConst:
		return e.Str.String()
	case expr.OpRef:
		cell, ok := c.resolveRef(e.Ref)
		if !ok || !cell.Live() {
			c.setErr(CellErr)
			return ""
		}
		if cell.Error != sheet.OK {
			c.setErr(Invalid)
		}
		if cell.Label != nil {
			return cell.Label.String()
		}
		return ""
	case expr.OpConcat:
		return c.Seval(e.Left) + c.Seval(e.Right)
	case expr.OpFixed:
		savedRow, savedCol := c.RowOffset, c.ColOffset
		c.RowOffset, c.ColOffset = 0, 0
		defer func() { c.RowOffset, c.ColOffset = savedRow, savedCol }()
		return c.Seval(e.Left)
	case expr.OpCond:
		if c.Eval(e.Cond) != 0 {
			return c.Seval(e.Left)
		}
		return c.Seval(e.Right)
	case expr.OpSemi:
		c.Seval(e.Left)
		return c.Seval(e.Right)
	case expr.OpExternal:
		return c.evalExternal(e)
	case expr.OpCall:
		return c.evalStringCall(e)
	default:
		return fmt.Sprintf("%g", c.Eval(e))
	}
}

// evalExternal spawns the command node's command line (via c.Runner),
// truncating a trailing newline; on spawn/read failure or when external
// execution is disabled, the node's previously cached output is reused and
// CellErr is set if there was a failure.
func (c *Context) evalExternal(e *expr.Node) string {
	if !c.ExternalEnabled || c.Runner == nil {
		if e.Str != nil {
			return e.Str.String()
		}
		return ""
	}
	cmdline := c.Seval(e.Left)
	out, err := c.Runner.Run(cmdline)
	if err != nil {
		c.setErr(CellErr)
		if e.Str != nil {
			return e.Str.String()
		}
		return ""
	}
	out = strings.TrimSuffix(out, "\n")
	if idx := strings.IndexByte(out, '\n'); idx >= 0 {
		out = out[:idx]
	}
	if e.Str != nil {
		strpool.Release(e.Str)
	}
	e.Str = strpool.New(out)
	return out
}

func parseNumeric(s string) (float64, error) {
	var v float64
	_, err := fmt.Sscanf(s, "%g", &v)
	return v, err
}
