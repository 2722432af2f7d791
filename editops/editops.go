// Package editops implements the structural edit and cut/paste/sort
// operations over a sheet.Sheet, its registers.File, and its refmaps.Maps,
// invoking package adjuster exactly once per structural change.
package editops

import (
	"fmt"
	"sort"

	"ssc/adjuster"
	"ssc/expr"
	"ssc/refmaps"
	"ssc/registers"
	"ssc/sheet"
	"ssc/strpool"
)

// Ops bundles the collaborators a single edit touches.
type Ops struct {
	Sheet *sheet.Sheet
	Regs  *registers.File
	Maps  *refmaps.Maps
	Arena *expr.Arena
}

// Rect is an inclusive cell rectangle, already normalized (Row1<=Row2,
// Col1<=Col2).
type Rect struct{ Row1, Col1, Row2, Col2 int }

func NewRect(r1, c1, r2, c2 int) Rect {
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return Rect{r1, c1, r2, c2}
}

// anyLocked reports whether any live cell in rect is locked; used to abort
// destructive edits under protect mode before any state is touched.
func (o *Ops) anyLocked(rect Rect) bool {
	if !o.Sheet.Protect {
		return false
	}
	for r := rect.Row1; r <= rect.Row2; r++ {
		for c := rect.Col1; c <= rect.Col2; c++ {
			if cell := o.Sheet.Get(r, c); cell != nil && cell.Has(sheet.FlagLocked) {
				return true
			}
		}
	}
	return false
}

// adjustAll runs ctx over every live cell's expression, every register
// subsheet's cells' expressions, every palette's driving expression, and the
// reference maps.
func (o *Ops) adjustAll(ctx *adjuster.Ctx) {
	for r := 0; r <= o.Sheet.MaxRow; r++ {
		for c := 0; c <= o.Sheet.MaxCol; c++ {
			if cell := o.Sheet.Get(r, c); cell != nil && cell.Expr != nil {
				ctx.AdjustExpr(cell.Expr)
			}
		}
	}
	for _, idx := range o.Regs.List() {
		sub := o.Regs.Find(idx)
		sub.Each(func(row, col int, c *sheet.Cell) {
			if c.Expr != nil {
				ctx.AdjustExpr(c.Expr)
			}
		})
	}
	for i := range o.Maps.Palettes {
		if p := &o.Maps.Palettes[i]; p.Set && p.Expr != nil {
			ctx.AdjustExpr(p.Expr)
		}
	}
	ctx.AdjustMaps(o.Maps)
	for i := range o.Sheet.Marks {
		m := &o.Sheet.Marks[i]
		if m.Set {
			m.Row, m.Col = ctx.Point(m.Row, m.Col)
		}
	}
}

// killToRegister moves rect's cells out of the live sheet into register
// slot idx (as a fresh Subsheet), optionally preserving row/col formats.
func (o *Ops) killToRegister(idx int, rect Rect, saveFormats bool) {
	sub := registers.NewSubsheet(rect.Row1, rect.Col1, rect.Row2, rect.Col2)
	for r := rect.Row1; r <= rect.Row2; r++ {
		for c := rect.Col1; c <= rect.Col2; c++ {
			if cell := o.Sheet.Get(r, c); cell != nil {
				sub.Set(r, c, cell)
				o.Sheet.Set(r, c, nil)
			}
		}
	}
	if saveFormats {
		rowFmts := make([]sheet.RowFormat, rect.Row2-rect.Row1+1)
		for i := range rowFmts {
			rowFmts[i] = o.Sheet.RowFormat(rect.Row1 + i)
		}
		colFmts := make([]sheet.ColFormat, rect.Col2-rect.Col1+1)
		for i := range colFmts {
			colFmts[i] = o.Sheet.ColFormat(rect.Col1 + i)
		}
		sub.RowFormats, sub.ColFormats = rowFmts, colFmts
	}
	o.Regs.Alloc(idx, sub)
}

// InsertRows inserts n rows before (or after) position at.
func (o *Ops) InsertRows(at, n int, after bool) error {
	if n <= 0 {
		return fmt.Errorf("editops: insert count must be positive")
	}
	if after {
		at++
	}
	o.Sheet.MoveRowPointers(at, n)
	o.Sheet.ShiftRowFormats(at, n)
	o.adjustAll(adjuster.ForInsertRows(at, n, o.Sheet.MaxCol))
	return nil
}

// InsertCols is the column analogue of InsertRows.
func (o *Ops) InsertCols(at, n int, after bool) error {
	if n <= 0 {
		return fmt.Errorf("editops: insert count must be positive")
	}
	if after {
		at++
	}
	o.Sheet.MoveColPointers(at, n)
	o.Sheet.ShiftColFormats(at, n)
	o.adjustAll(adjuster.ForInsertCols(at, n, o.Sheet.MaxRow))
	return nil
}

// DeleteRows deletes rows [r1, r2] inclusive, moving them into register slot
// 0 and rotating the numeric undo ring. If qbuf is a valid register slot
// (registers.SlotForChar of a named register), the default slot is also
// copied into it.
func (o *Ops) DeleteRows(r1, r2 int, qbuf int) error {
	rect := NewRect(r1, 0, r2, o.Sheet.MaxCol)
	if o.anyLocked(rect) {
		return fmt.Errorf("editops: cannot delete locked rows %d-%d under protect", r1, r2)
	}
	n := r2 - r1 + 1
	o.killToRegister(registers.Default, rect, true)
	o.Sheet.MoveRowPointers(r1, -n)
	o.Sheet.ShiftRowFormats(r1, -n)
	o.adjustAll(adjuster.ForDeleteRows(r1, r2, o.Sheet.MaxCol))

	o.Regs.Rotate()
	o.Regs.Copy(registers.Default, registers.Num0+1)
	if qbuf >= 0 && qbuf != registers.Default {
		o.Regs.Copy(registers.Default, qbuf)
	}
	return nil
}

// DeleteCols is the column analogue of DeleteRows.
func (o *Ops) DeleteCols(c1, c2 int, qbuf int) error {
	rect := NewRect(0, c1, o.Sheet.MaxRow, c2)
	if o.anyLocked(rect) {
		return fmt.Errorf("editops: cannot delete locked cols %d-%d under protect", c1, c2)
	}
	n := c2 - c1 + 1
	o.killToRegister(registers.Default, rect, true)
	o.Sheet.MoveColPointers(c1, -n)
	o.Sheet.ShiftColFormats(c1, -n)
	o.adjustAll(adjuster.ForDeleteCols(c1, c2, o.Sheet.MaxRow))

	o.Regs.Rotate()
	o.Regs.Copy(registers.Default, registers.Num0+1)
	if qbuf >= 0 && qbuf != registers.Default {
		o.Regs.Copy(registers.Default, qbuf)
	}
	return nil
}

// Move relocates src to dst (same-sized rectangle implied by src's shape),
// translating every reference inside src by the displacement.
func (o *Ops) Move(src Rect, dstRow, dstCol int) error {
	if o.anyLocked(src) {
		return fmt.Errorf("editops: cannot move locked cells under protect")
	}
	dr, dc := dstRow-src.Row1, dstCol-src.Col1
	o.killToRegister(registers.Tmp1, src, false)
	dst := Rect{dstRow, dstCol, dstRow + (src.Row2 - src.Row1), dstCol + (src.Col2 - src.Col1)}
	for r := dst.Row1; r <= dst.Row2; r++ {
		for c := dst.Col1; c <= dst.Col2; c++ {
			if old := o.Sheet.Get(r, c); old != nil {
				old.Release(o.Arena)
				o.Sheet.Set(r, c, nil)
			}
		}
	}
	sub := o.Regs.Take(registers.Tmp1)
	sub.Each(func(row, col int, cell *sheet.Cell) {
		o.Sheet.Set(row+dr, col+dc, cell)
	})
	o.adjustAll(adjuster.ForMove(src.Row1, src.Col1, src.Row2, src.Col2, dr, dc))
	return nil
}

// Copy duplicates src into dst, tiling src across dst if dst is larger,
// translating and (if transpose) swapping the axes of every reference whose
// target lies inside src; references outside src are left unchanged.
// Marks and named ranges are not adjusted: copy does not move anything.
func (o *Ops) Copy(src, dst Rect, transpose bool) error {
	if o.anyLocked(dst) {
		return fmt.Errorf("editops: cannot copy onto locked cells under protect")
	}
	srcRows := src.Row2 - src.Row1 + 1
	srcCols := src.Col2 - src.Col1 + 1
	for r := dst.Row1; r <= dst.Row2; r++ {
		for c := dst.Col1; c <= dst.Col2; c++ {
			if old := o.Sheet.Get(r, c); old != nil {
				old.Release(o.Arena)
				o.Sheet.Set(r, c, nil)
			}
			srcRow := src.Row1 + (r-dst.Row1)%srcRows
			srcCol := src.Col1 + (c-dst.Col1)%srcCols
			srcCell := o.Sheet.Get(srcRow, srcCol)
			if srcCell == nil || !srcCell.Live() {
				continue
			}
			dr, dc := r-srcRow, c-srcCol
			clone := srcCell.Clone(o.Arena)
			clone.Row, clone.Col = r, c
			if clone.Expr != nil {
				copyExpr(clone.Expr, dr, dc, src, transpose)
			}
			o.Sheet.Set(r, c, clone)
		}
	}
	return nil
}

// copyExpr rewrites references whose target lies inside src by (dr, dc);
// references outside src are left unchanged. If transpose, the deltas and
// the reference axes are swapped.
func copyExpr(n *expr.Node, dr, dc int, src Rect, transpose bool) {
	if n == nil {
		return
	}
	switch n.Op {
	case expr.OpRef:
		n.Ref.Row, n.Ref.Col = translateIfInside(n.Ref.Row, n.Ref.Col, dr, dc, src, transpose, n.Ref.FixRow, n.Ref.FixCol)
	case expr.OpRange:
		n.Range.Left.Row, n.Range.Left.Col = translateIfInside(n.Range.Left.Row, n.Range.Left.Col, dr, dc, src, transpose, n.Range.Left.FixRow, n.Range.Left.FixCol)
		n.Range.Right.Row, n.Range.Right.Col = translateIfInside(n.Range.Right.Row, n.Range.Right.Col, dr, dc, src, transpose, n.Range.Right.FixRow, n.Range.Right.FixCol)
	case expr.OpCond:
		copyExpr(n.Cond, dr, dc, src, transpose)
		copyExpr(n.Left, dr, dc, src, transpose)
		copyExpr(n.Right, dr, dc, src, transpose)
	case expr.OpCall:
		for _, arg := range expr.Args(n.Left) {
			copyExpr(arg, dr, dc, src, transpose)
		}
	default:
		copyExpr(n.Left, dr, dc, src, transpose)
		copyExpr(n.Right, dr, dc, src, transpose)
	}
}

// translateIfInside shifts (row, col) by (dr, dc) when it falls inside src,
// except that an axis pinned by an absolute reference ($) is left alone: a
// $-fixed row or column survives a copy unchanged even though the rest of
// the reference moves with the paste.
func translateIfInside(row, col, dr, dc int, src Rect, transpose bool, fixRow, fixCol bool) (int, int) {
	if row < src.Row1 || row > src.Row2 || col < src.Col1 || col > src.Col2 {
		return row, col
	}
	if transpose {
		dr, dc = dc, dr
		fixRow, fixCol = fixCol, fixRow
	}
	if !fixRow {
		row += dr
	}
	if !fixCol {
		col += dc
	}
	return row, col
}

// Fill sets every cell in rect to a number starting at start and
// incrementing by inc, in row-major order unless byCols, clearing any prior
// expression or label.
func (o *Ops) Fill(rect Rect, start, inc float64, byCols bool) error {
	if o.anyLocked(rect) {
		return fmt.Errorf("editops: cannot fill locked cells under protect")
	}
	k := 0.0
	set := func(r, c int) {
		cell, _ := o.Sheet.Lookup(r, c)
		if cell.Expr != nil {
			o.Arena.Release(cell.Expr)
			cell.Expr = nil
		}
		cell.Label = nil
		cell.Tag = sheet.Number
		cell.Value = start + k*inc
		k++
	}
	if byCols {
		for c := rect.Col1; c <= rect.Col2; c++ {
			for r := rect.Row1; r <= rect.Row2; r++ {
				set(r, c)
			}
		}
	} else {
		for r := rect.Row1; r <= rect.Row2; r++ {
			for c := rect.Col1; c <= rect.Col2; c++ {
				set(r, c)
			}
		}
	}
	return nil
}

// Lock/Unlock/Align/Format are bitwise flag mutations over a rectangle.
func (o *Ops) Lock(rect Rect)   { o.eachLive(rect, func(c *sheet.Cell) { c.Set(sheet.FlagLocked) }) }
func (o *Ops) Unlock(rect Rect) { o.eachLive(rect, func(c *sheet.Cell) { c.Clear(sheet.FlagLocked) }) }

func (o *Ops) Align(rect Rect, align sheet.Align) {
	o.eachLive(rect, func(c *sheet.Cell) { c.Align = align })
}

func (o *Ops) Format(rect Rect, format *strpool.String) {
	o.eachLive(rect, func(c *sheet.Cell) {
		if c.Format != nil {
			strpool.Release(c.Format)
		}
		c.Format = strpool.Dup(format)
	})
}

func (o *Ops) eachLive(rect Rect, fn func(*sheet.Cell)) {
	for r := rect.Row1; r <= rect.Row2; r++ {
		for c := rect.Col1; c <= rect.Col2; c++ {
			if cell, ok := o.Sheet.Lookup(r, c); ok {
				fn(cell)
			}
		}
	}
}

// SortCriterion is one column/direction pair in a multi-criterion sort.
type SortCriterion struct {
	Column    int
	Direction int // +1 ascending, -1 descending
}

// Sort reorders rect's rows by rect's criteria, comparing column-by-column:
// empty > error > boolean > string > number, ties broken by the next
// criterion, final tie broken by original row index (stability). Expressions
// crossing the rectangle are not rewritten — a documented edge, not a bug.
func (o *Ops) Sort(rect Rect, criteria []SortCriterion) error {
	nrows := rect.Row2 - rect.Row1 + 1
	if nrows <= 1 {
		return nil
	}
	rows := make([]int, nrows)
	for i := range rows {
		rows[i] = rect.Row1 + i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return compareRows(o.Sheet, rows[i], rows[j], criteria) < 0
	})

	// Stage the whole rectangle into a scratch register, then emit cells
	// back with rows remapped by the computed order.
	o.killToRegister(registers.Tmp2, rect, false)
	sub := o.Regs.Take(registers.Tmp2)
	for i, srcRow := range rows {
		destRow := rect.Row1 + i
		for c := rect.Col1; c <= rect.Col2; c++ {
			cell := sub.Get(srcRow, c)
			if cell == nil {
				continue
			}
			cell.Row = destRow
			o.Sheet.Set(destRow, c, cell)
		}
	}
	return nil
}

func compareRows(s *sheet.Sheet, row1, row2 int, criteria []SortCriterion) int {
	for _, crit := range criteria {
		p1 := s.Get(row1, crit.Column)
		p2 := s.Get(row2, crit.Column)
		r := compareCells(p1, p2)
		if r != 0 {
			return r * crit.Direction
		}
	}
	if row1 < row2 {
		return -1
	}
	if row1 > row2 {
		return 1
	}
	return 0
}

// rank orders tags for sort comparison: number < string < boolean < error < empty.
func rank(c *sheet.Cell) int {
	if c == nil || !c.Live() {
		return 4
	}
	if c.Error == sheet.CellError || c.Error == sheet.CellInvalid {
		return 3
	}
	switch c.Tag {
	case sheet.Number:
		return 0
	case sheet.Text:
		return 1
	case sheet.Boolean:
		return 2
	default:
		return 4
	}
}

func compareCells(p1, p2 *sheet.Cell) int {
	r1, r2 := rank(p1), rank(p2)
	if r1 != r2 {
		if r1 < r2 {
			return -1
		}
		return 1
	}
	switch r1 {
	case 0:
		if p1.Value < p2.Value {
			return -1
		}
		if p1.Value > p2.Value {
			return 1
		}
		return 0
	case 1:
		s1, s2 := p1.Label.String(), p2.Label.String()
		if s1 < s2 {
			return -1
		}
		if s1 > s2 {
			return 1
		}
		return 0
	case 2:
		if p1.Value == p2.Value {
			return 0
		}
		if p1.Value < p2.Value {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Erase clears rect's cells without stashing them in a register (unlike
// DeleteRows/DeleteCols, it does not rotate the undo ring).
func (o *Ops) Erase(rect Rect) error {
	if o.anyLocked(rect) {
		return fmt.Errorf("editops: cannot erase locked cells under protect")
	}
	for r := rect.Row1; r <= rect.Row2; r++ {
		for c := rect.Col1; c <= rect.Col2; c++ {
			if cell := o.Sheet.Get(r, c); cell != nil {
				cell.Release(o.Arena)
				o.Sheet.Set(r, c, nil)
			}
		}
	}
	return nil
}

// Yank copies rect's cells into register idx without removing them from the
// sheet (the live originals keep their storage; the register holds clones).
func (o *Ops) Yank(idx int, rect Rect) {
	sub := registers.NewSubsheet(rect.Row1, rect.Col1, rect.Row2, rect.Col2)
	for r := rect.Row1; r <= rect.Row2; r++ {
		for c := rect.Col1; c <= rect.Col2; c++ {
			if cell := o.Sheet.Get(r, c); cell != nil && cell.Live() {
				sub.Set(r, c, cell.Clone(o.Arena))
			}
		}
	}
	o.Regs.Alloc(idx, sub)
}

// PullVariant selects how Pull installs a register's content back onto the
// sheet.
type PullVariant int

const (
	PullPlain      PullVariant = iota
	PullInsertRows             // open n blank rows at the destination first, n = register's row count
	PullInsertCols             // open n blank columns at the destination first, n = register's column count
	PullExchange               // swap register content with whatever already occupies the destination
	PullMerge                  // fill only empty destination cells
	PullFormatOnly
	PullTranspose // swap rows and columns while pulling
	PullCopy      // like PullPlain, but the register keeps its content for a repeat pull
)

// Pull installs register idx's content at (row, col), honoring variant.
// Except for PullCopy, the register slot is consumed: its cells are handed
// directly to Sheet.Set per the storage invariant that a re-inserted cell's
// Deleted flag is cleared and the subsheet slot nulled first.
func (o *Ops) Pull(idx int, row, col int, variant PullVariant) error {
	sub := o.Regs.Find(idx)
	if sub == nil {
		return fmt.Errorf("editops: register %d is empty", idx)
	}

	if variant == PullCopy {
		return o.pullCopy(sub, row, col)
	}
	if variant == PullExchange {
		return o.pullExchange(idx, sub, row, col)
	}

	dr, dc := row-sub.MinRow, col-sub.MinCol
	switch variant {
	case PullInsertRows:
		n := sub.MaxRow - sub.MinRow + 1
		if err := o.InsertRows(row, n, false); err != nil {
			return err
		}
		dc = 0
	case PullInsertCols:
		n := sub.MaxCol - sub.MinCol + 1
		if err := o.InsertCols(col, n, false); err != nil {
			return err
		}
		dr = 0
	case PullTranspose:
		o.clearRect(Rect{row, col, row + (sub.MaxCol - sub.MinCol), col + (sub.MaxRow - sub.MinRow)})
	}

	taken := o.Regs.Take(idx)
	taken.Each(func(r, c int, cell *sheet.Cell) {
		destRow, destCol := r+dr, c+dc
		if variant == PullTranspose {
			destRow, destCol = row+(c-sub.MinCol), col+(r-sub.MinRow)
		}
		if variant == PullMerge {
			if existing := o.Sheet.Get(destRow, destCol); existing != nil && existing.Live() {
				cell.Release(o.Arena)
				return
			}
		}
		if variant == PullFormatOnly {
			if existing, ok := o.Sheet.Lookup(destRow, destCol); ok {
				existing.Align = cell.Align
				existing.Format = cell.Format
			}
			cell.Release(o.Arena)
			return
		}
		cell.Clear(sheet.FlagDeleted)
		cell.Row, cell.Col = destRow, destCol
		o.Sheet.Set(destRow, destCol, cell)
	})
	return nil
}

// pullCopy installs clones of sub's cells at (row, col), leaving the
// register slot intact so the same content can be pulled again.
func (o *Ops) pullCopy(sub *registers.Subsheet, row, col int) error {
	dr, dc := row-sub.MinRow, col-sub.MinCol
	dst := Rect{row, col, row + (sub.MaxRow - sub.MinRow), col + (sub.MaxCol - sub.MinCol)}
	o.clearRect(dst)
	sub.Each(func(r, c int, cell *sheet.Cell) {
		clone := cell.Clone(o.Arena)
		clone.Clear(sheet.FlagDeleted)
		destRow, destCol := r+dr, c+dc
		clone.Row, clone.Col = destRow, destCol
		o.Sheet.Set(destRow, destCol, clone)
	})
	return nil
}

// pullExchange swaps register idx's content with whatever currently
// occupies the destination rectangle: the sheet gets the register's cells,
// and the register is left holding what the sheet gave up.
func (o *Ops) pullExchange(idx int, sub *registers.Subsheet, row, col int) error {
	dr, dc := row-sub.MinRow, col-sub.MinCol
	taken := o.Regs.Take(idx)
	swapped := registers.NewSubsheet(sub.MinRow, sub.MinCol, sub.MaxRow, sub.MaxCol)
	for r := sub.MinRow; r <= sub.MaxRow; r++ {
		for c := sub.MinCol; c <= sub.MaxCol; c++ {
			destRow, destCol := r+dr, c+dc
			if old := o.Sheet.Get(destRow, destCol); old != nil {
				old.Row, old.Col = r, c
				swapped.Set(r, c, old)
				o.Sheet.Set(destRow, destCol, nil)
			}
			if cell := taken.Get(r, c); cell != nil {
				cell.Clear(sheet.FlagDeleted)
				cell.Row, cell.Col = destRow, destCol
				o.Sheet.Set(destRow, destCol, cell)
			}
		}
	}
	return o.Regs.Alloc(idx, swapped)
}

// clearRect releases and nils every cell in rect, used ahead of pulls that
// install content over a destination rather than growing the sheet for it.
func (o *Ops) clearRect(rect Rect) {
	for r := rect.Row1; r <= rect.Row2; r++ {
		for c := rect.Col1; c <= rect.Col2; c++ {
			if old := o.Sheet.Get(r, c); old != nil {
				old.Release(o.Arena)
				o.Sheet.Set(r, c, nil)
			}
		}
	}
}
