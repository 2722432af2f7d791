// Package engine wires the cell store, expression evaluator, register file,
// reference maps, and structural edit operations into the single API a
// frontend (CLI, bus, live view) drives: the operations named in the cell
// store's public contract, each committing one user-visible change. Setting
// an expression or palette expression and the structural edits trigger
// recalculation; the plain value, label, format and name setters do not, so
// their effect on dependent formulas shows after the next Recalculate.
package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"ssc/audit"
	"ssc/decompile"
	"ssc/editops"
	"ssc/eval"
	"ssc/expr"
	"ssc/parser"
	"ssc/refmaps"
	"ssc/registers"
	"ssc/sheet"
	"ssc/strpool"
)

// Engine is a single spreadsheet instance: its cell store plus every piece
// of state an edit or a recalculation touches.
type Engine struct {
	Sheet *sheet.Sheet
	Arena *expr.Arena
	Maps  *refmaps.Maps
	Regs  *registers.File
	Ops   *editops.Ops
	Eval  *eval.Context

	iterations int
	register   int // currently selected register slot, registers.Default by default

	// Audit, when non-nil, receives one entry per structural edit this
	// engine commits. SheetID identifies the journaled sheet; seq is the
	// per-sheet entry counter. Both are no-ops when Audit is nil.
	Audit   *audit.Journal
	SheetID string
	seq     int64
}

// New creates an empty engine ready to accept edits.
func New() *Engine {
	arena := &expr.Arena{}
	s := sheet.New()
	maps := refmaps.New()
	regs := registers.NewFile(arena)
	e := &Engine{
		Sheet: s,
		Arena: arena,
		Maps:  maps,
		Regs:  regs,
		Ops: &editops.Ops{
			Sheet: s,
			Regs:  regs,
			Maps:  maps,
			Arena: arena,
		},
		Eval:       eval.NewContext(s, maps),
		iterations: eval.DefaultIterations,
		register:   registers.Default,
	}
	return e
}

// install replaces (row, col)'s cell outright, releasing whatever was there.
func (e *Engine) install(row, col int, c *sheet.Cell) error {
	cell, ok := e.Sheet.Lookup(row, col)
	if !ok {
		return fmt.Errorf("engine: (%d,%d) is out of bounds", row, col)
	}
	cell.Release(e.Arena)
	*cell = *c
	cell.Row, cell.Col = row, col
	e.Sheet.Set(row, col, cell)
	return nil
}

// SetNumber installs a numeric literal at (row, col).
func (e *Engine) SetNumber(row, col int, value float64) error {
	return e.install(row, col, &sheet.Cell{Tag: sheet.Number, Value: value})
}

// SetString installs a literal label at (row, col).
func (e *Engine) SetString(row, col int, text string) error {
	return e.install(row, col, &sheet.Cell{Tag: sheet.Text, Label: strpool.New(text)})
}

// SetExpression parses source and installs it as (row, col)'s formula. A
// leading '=' (or the teacher's own formula-prefix convention) is not
// required here; callers pass the bare expression text. stringValued marks
// the formula as string-producing (Seval rather than Eval is used to drive
// its cached label on recalculation).
func (e *Engine) SetExpression(row, col int, source string, stringValued bool) error {
	n, errs := parser.Parse(source, e.Arena)
	if len(errs) > 0 {
		return fmt.Errorf("engine: %s", parser.FormatParseErrors(errs, source))
	}
	cell := &sheet.Cell{Tag: sheet.Number, Expr: n}
	if stringValued {
		cell.Tag = sheet.Text
		cell.Set(sheet.FlagStringExpr)
	}
	if err := e.install(row, col, cell); err != nil {
		return err
	}
	e.Recalculate()
	return nil
}

// SetFormat replaces (row, col)'s display format string.
func (e *Engine) SetFormat(row, col int, format string) error {
	e.Ops.Format(editops.Rect{Row1: row, Col1: col, Row2: row, Col2: col}, strpool.New(format))
	return nil
}

// SetLabel replaces (row, col)'s label string without touching its value.
func (e *Engine) SetLabel(row, col int, text string) error {
	cell, ok := e.Sheet.Lookup(row, col)
	if !ok {
		return fmt.Errorf("engine: (%d,%d) is out of bounds", row, col)
	}
	strpool.Release(cell.Label)
	cell.Label = strpool.New(text)
	return nil
}

// Clear empties the entire sheet and every register, returning it to its
// initial state.
func (e *Engine) Clear() {
	e.Sheet.Clear()
	for _, idx := range e.Regs.List() {
		e.Regs.Release(idx)
	}
	*e.Maps = *refmaps.New()
}

func toRect(r1, c1, r2, c2 int) editops.Rect {
	return editops.NewRect(r1, c1, r2, c2)
}

// Snapshot renders every live cell as one line per cell ("A1: 2+3" for a
// formula, "A1: 42" for a number, "A1: \"text\"" for a label), sorted by
// row then column. It is the compact textual form audit entries record
// before and after a structural edit; it is not a full load/save format
// (see package persist for that).
func (e *Engine) Snapshot() string {
	var b strings.Builder
	for row := 0; row <= e.Sheet.MaxRow; row++ {
		for col := 0; col <= e.Sheet.MaxCol; col++ {
			cell := e.Sheet.Get(row, col)
			if cell == nil || !cell.Live() {
				continue
			}
			fmt.Fprintf(&b, "%s%d: %s\n", sheet.ColumnLabel(col), row+1, snapshotCellText(cell))
		}
	}
	return b.String()
}

func snapshotCellText(cell *sheet.Cell) string {
	switch {
	case cell.Expr != nil:
		return decompile.Decompile(cell.Expr, nil)
	case cell.Tag == sheet.Number:
		return strconv.FormatFloat(cell.Value, 'g', -1, 64)
	case cell.Label != nil:
		return strconv.Quote(cell.Label.String())
	default:
		return ""
	}
}

// withAudit snapshots the sheet before and after fn runs, and — only when
// Audit is wired and fn succeeds — appends one journal entry. fn's error,
// if any, is returned unchanged and nothing is journaled.
func (e *Engine) withAudit(op string, fn func() error) error {
	if e.Audit == nil {
		return fn()
	}
	before := e.Snapshot()
	if err := fn(); err != nil {
		return err
	}
	e.seq++
	entry := audit.Entry{
		SheetID: e.SheetID,
		Seq:     e.seq,
		Op:      op,
		Before:  before,
		After:   e.Snapshot(),
		At:      time.Now(),
	}
	if err := e.Audit.Record(context.Background(), entry); err != nil {
		return fmt.Errorf("engine: audit record %s: %w", op, err)
	}
	return nil
}

// Erase blanks a rectangle without stashing it in a register.
func (e *Engine) Erase(r1, c1, r2, c2 int) error {
	return e.withAudit("erase", func() error {
		err := e.Ops.Erase(toRect(r1, c1, r2, c2))
		if err == nil {
			e.Recalculate()
		}
		return err
	})
}

// Yank copies a rectangle into the selected register without removing it.
func (e *Engine) Yank(r1, c1, r2, c2 int) {
	e.Ops.Yank(e.register, toRect(r1, c1, r2, c2))
}

// Pull installs the selected register's contents at (row, col).
func (e *Engine) Pull(row, col int, variant editops.PullVariant) error {
	return e.withAudit("pull", func() error {
		if err := e.Ops.Pull(e.register, row, col, variant); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// Move relocates a rectangle, rewriting every reference into it.
func (e *Engine) Move(r1, c1, r2, c2, dstRow, dstCol int) error {
	return e.withAudit("move", func() error {
		if err := e.Ops.Move(toRect(r1, c1, r2, c2), dstRow, dstCol); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// Copy tiles a source rectangle across a destination rectangle.
func (e *Engine) Copy(sr1, sc1, sr2, sc2, dr1, dc1, dr2, dc2 int, transpose bool) error {
	return e.withAudit("copy", func() error {
		if err := e.Ops.Copy(toRect(sr1, sc1, sr2, sc2), toRect(dr1, dc1, dr2, dc2), transpose); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// InsertRows inserts n blank rows at (or after) at.
func (e *Engine) InsertRows(at, n int, after bool) error {
	return e.withAudit("insert_rows", func() error {
		if err := e.Ops.InsertRows(at, n, after); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// InsertCols inserts n blank columns at (or after) at.
func (e *Engine) InsertCols(at, n int, after bool) error {
	return e.withAudit("insert_cols", func() error {
		if err := e.Ops.InsertCols(at, n, after); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// DeleteRows removes rows r1..r2, stashing them in the undo ring (and qbuf,
// if selected) the way a structural delete always does.
func (e *Engine) DeleteRows(r1, r2 int) error {
	return e.withAudit("delete_rows", func() error {
		if err := e.Ops.DeleteRows(r1, r2, e.register); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// DeleteCols removes columns c1..c2.
func (e *Engine) DeleteCols(c1, c2 int) error {
	return e.withAudit("delete_cols", func() error {
		if err := e.Ops.DeleteCols(c1, c2, e.register); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// Fill fills a rectangle with an arithmetic progression.
func (e *Engine) Fill(r1, c1, r2, c2 int, start, inc float64, byCols bool) error {
	return e.withAudit("fill", func() error {
		if err := e.Ops.Fill(toRect(r1, c1, r2, c2), start, inc, byCols); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// Lock / Unlock toggle the protect-mode lock flag over a rectangle.
func (e *Engine) Lock(r1, c1, r2, c2 int)   { e.Ops.Lock(toRect(r1, c1, r2, c2)) }
func (e *Engine) Unlock(r1, c1, r2, c2 int) { e.Ops.Unlock(toRect(r1, c1, r2, c2)) }

// FormatCells replaces the format string over an entire rectangle.
func (e *Engine) FormatCells(r1, c1, r2, c2 int, format string) {
	e.Ops.Format(toRect(r1, c1, r2, c2), strpool.New(format))
}

// Sort reorders rect's rows by the given criteria.
func (e *Engine) Sort(r1, c1, r2, c2 int, criteria []editops.SortCriterion) error {
	return e.withAudit("sort", func() error {
		if err := e.Ops.Sort(toRect(r1, c1, r2, c2), criteria); err != nil {
			return err
		}
		e.Recalculate()
		return nil
	})
}

// DefineName / DeleteName manage named ranges.
func (e *Engine) DefineName(name string, r1, c1, r2, c2 int) {
	e.Maps.AddNamed(name, refmaps.NewRect(r1, c1, r2, c2))
}

func (e *Engine) DeleteName(name string) bool { return e.Maps.DeleteNamed(name) }

// AddNote / DeleteNote manage cell annotations.
func (e *Engine) AddNote(row, col int, text string, refRow1, refCol1, refRow2, refCol2 int, hasRef bool) {
	e.Maps.AddNote(row, col, text, refmaps.NewRect(refRow1, refCol1, refRow2, refCol2), hasRef)
}

func (e *Engine) DeleteNote(row, col int) bool { return e.Maps.DeleteNote(row, col) }

// AddFrame / AddColorRange manage display ranges over the sheet.
func (e *Engine) AddFrame(outerR1, outerC1, outerR2, outerC2, innerR1, innerC1, innerR2, innerC2, triggerRow, triggerCol int) {
	e.Maps.AddFrame(
		refmaps.NewRect(outerR1, outerC1, outerR2, outerC2),
		refmaps.NewRect(innerR1, innerC1, innerR2, innerC2),
		triggerRow, triggerCol,
	)
}

func (e *Engine) AddColorRange(r1, c1, r2, c2, palette int) {
	e.Maps.AddColorRange(refmaps.NewRect(r1, c1, r2, c2), palette)
}

// SetPalette installs color pair n's fg/bg from literal numbers (color.c's
// init_style with a NULL expr).
func (e *Engine) SetPalette(n, fg, bg int) error {
	if !e.Maps.SetPalette(n, fg, bg, nil) {
		return fmt.Errorf("engine: invalid color pair %d", n)
	}
	return nil
}

// SetPaletteExpr installs color pair n's fg/bg as derived from source,
// re-evaluated at the end of every recalculation batch (color.c's
// change_color, "color n = expr"): the result's low 3 bits pick the
// foreground, the next 3 bits the background.
func (e *Engine) SetPaletteExpr(n int, source string) error {
	node, errs := parser.Parse(source, e.Arena)
	if len(errs) > 0 {
		return fmt.Errorf("engine: %s", parser.FormatParseErrors(errs, source))
	}
	if !e.Maps.SetPalette(n, 0, 0, node) {
		return fmt.Errorf("engine: invalid color pair %d", n)
	}
	e.Recalculate()
	return nil
}

// Palette returns color pair n's current fg/bg, and whether it has been set.
func (e *Engine) Palette(n int) (fg, bg int, ok bool) {
	p, ok := e.Maps.PaletteAt(n)
	return p.Fg, p.Bg, ok
}

// SelectRegister chooses the register slot later Yank/Pull/DeleteRows calls
// target; idx is typically built via registers.SlotForChar.
func (e *Engine) SelectRegister(idx int) { e.register = idx }

// SetMark records (row, col) under mark ch ('0'-'9' or 'a'-'z'), surviving
// subsequent structural edits via the same Adjuster pass that rewrites
// expression references.
func (e *Engine) SetMark(ch byte, row, col int) error {
	idx := sheet.MarkForChar(ch)
	if idx < 0 {
		return fmt.Errorf("engine: %q is not a valid mark", ch)
	}
	e.Sheet.Marks[idx] = sheet.Mark{Row: row, Col: col, Set: true}
	return nil
}

// GotoMark returns the position recorded under mark ch, and whether it has
// been set.
func (e *Engine) GotoMark(ch byte) (row, col int, ok bool) {
	idx := sheet.MarkForChar(ch)
	if idx < 0 {
		return 0, 0, false
	}
	m := e.Sheet.Marks[idx]
	return m.Row, m.Col, m.Set
}

// SetIterations configures the recalculation iteration cap (minimum 1).
func (e *Engine) SetIterations(n int) {
	if n < 1 {
		n = 1
	}
	e.iterations = n
}

// SetOrder configures the recalculation traversal order.
func (e *Engine) SetOrder(order sheet.Order) { e.Sheet.Order = order }

// SetProtect toggles protect mode, which blocks structural edits that would
// touch a locked cell.
func (e *Engine) SetProtect(on bool) { e.Sheet.Protect = on }

// Recalculate drives one convergent recalculation pass set and reports
// whether it converged within the configured iteration cap. Every method
// that recalculates routes through here, so the iteration-cap warning below
// is the single place that needs to watch Result.Converged.
func (e *Engine) Recalculate() eval.Result {
	res := e.Eval.Recalculate(e.iterations)
	if !res.Converged {
		log.Printf("engine: sheet still changing after %d iterations", res.Iterations)
	}
	return res
}
