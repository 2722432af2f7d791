// Package refmaps holds the named ranges, framed ranges, color ranges, notes,
// palettes and goto state that back-reference sheet cells by (row, col)
// coordinate rather than by pointer, so they can be rewritten in place by an
// Adjuster pass after a structural edit.
package refmaps

import (
	"container/list"

	"ssc/expr"
)

// Rect is a normalized (min <= max on both axes) cell rectangle.
type Rect struct {
	Row1, Col1, Row2, Col2 int
}

// NewRect normalizes its corners to upper-left/lower-right order.
func NewRect(r1, c1, r2, c2 int) Rect {
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return Rect{Row1: r1, Col1: c1, Row2: r2, Col2: c2}
}

func (r Rect) Contains(row, col int) bool {
	return row >= r.Row1 && row <= r.Row2 && col >= r.Col1 && col <= r.Col2
}

func (r Rect) Area() int {
	return (r.Row2 - r.Row1 + 1) * (r.Col2 - r.Col1 + 1)
}

// NamedRange binds a unique name to a cell or range rectangle.
type NamedRange struct {
	Name string
	Rect Rect
}

// Frame is an outer rectangle plus an inner rectangle, attached to a trigger
// cell; it restricts row/col insert and delete to operate within the frame.
type Frame struct {
	Outer, Inner         Rect
	TriggerRow, TriggerCol int
}

// ColorRange maps a rectangle to a palette index.
type ColorRange struct {
	Rect    Rect
	Palette int
}

// MaxPalette is the number of color pair slots, matching color.c's CPAIRS.
const MaxPalette = 8

// Palette is one color pair: a foreground/background pair, either static or
// recomputed from Expr each time RefreshPalette runs. Expr is nil for a
// palette slot set by literal fg/bg numbers rather than by "color n = expr".
type Palette struct {
	Fg, Bg int
	Expr   *expr.Node
	Set    bool
}

// Note attaches text, or a reference range, to a source cell.
type Note struct {
	Row, Col int
	Text     string
	HasRef   bool
	Ref      Rect
}

// Maps is the full set of reference collections for one sheet. Each kind is
// stored as a doubly linked list, mutated only through the methods below.
type Maps struct {
	named  *list.List // *NamedRange
	frames *list.List // *Frame
	colors *list.List // *ColorRange
	notes  *list.List // *Note

	Palettes [MaxPalette + 1]Palette // index 0 unused, matches cpairs[1+CPAIRS]

	GotoRow, GotoCol int
	GotoSet          bool
}

func New() *Maps {
	return &Maps{
		named:  list.New(),
		frames: list.New(),
		colors: list.New(),
		notes:  list.New(),
	}
}

// --- Named ranges ---

// AddNamed inserts or replaces the range bound to name.
func (m *Maps) AddNamed(name string, rect Rect) {
	for e := m.named.Front(); e != nil; e = e.Next() {
		nr := e.Value.(*NamedRange)
		if nr.Name == name {
			nr.Rect = rect
			return
		}
	}
	m.named.PushBack(&NamedRange{Name: name, Rect: rect})
}

func (m *Maps) FindNamed(name string) (Rect, bool) {
	for e := m.named.Front(); e != nil; e = e.Next() {
		nr := e.Value.(*NamedRange)
		if nr.Name == name {
			return nr.Rect, true
		}
	}
	return Rect{}, false
}

// FindNamedByRect looks for a named range covering exactly rect, used by the
// decompiler to prefer a name over raw A1:B2 syntax.
func (m *Maps) FindNamedByRect(rect Rect) (string, bool) {
	for e := m.named.Front(); e != nil; e = e.Next() {
		nr := e.Value.(*NamedRange)
		if nr.Rect == rect {
			return nr.Name, true
		}
	}
	return "", false
}

func (m *Maps) DeleteNamed(name string) bool {
	for e := m.named.Front(); e != nil; e = e.Next() {
		if e.Value.(*NamedRange).Name == name {
			m.named.Remove(e)
			return true
		}
	}
	return false
}

func (m *Maps) ListNamed() []NamedRange {
	out := make([]NamedRange, 0, m.named.Len())
	for e := m.named.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*NamedRange))
	}
	return out
}

// --- Framed ranges ---

func (m *Maps) AddFrame(outer, inner Rect, triggerRow, triggerCol int) *Frame {
	fr := &Frame{Outer: outer, Inner: inner, TriggerRow: triggerRow, TriggerCol: triggerCol}
	m.frames.PushBack(fr)
	return fr
}

// FindFrame returns the innermost frame enclosing (row, col); ties (equal
// area) are broken by insertion order (earliest wins).
func (m *Maps) FindFrame(row, col int) (*Frame, bool) {
	var best *Frame
	for e := m.frames.Front(); e != nil; e = e.Next() {
		fr := e.Value.(*Frame)
		if !fr.Outer.Contains(row, col) {
			continue
		}
		if best == nil || fr.Outer.Area() < best.Outer.Area() {
			best = fr
		}
	}
	return best, best != nil
}

func (m *Maps) DeleteFrame(target *Frame) bool {
	for e := m.frames.Front(); e != nil; e = e.Next() {
		if e.Value.(*Frame) == target {
			m.frames.Remove(e)
			return true
		}
	}
	return false
}

func (m *Maps) ListFrames() []Frame {
	out := make([]Frame, 0, m.frames.Len())
	for e := m.frames.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Frame))
	}
	return out
}

// --- Color ranges ---

func (m *Maps) AddColorRange(rect Rect, palette int) *ColorRange {
	cr := &ColorRange{Rect: rect, Palette: palette}
	m.colors.PushBack(cr)
	return cr
}

// FindColor returns the topmost (most recently added) rectangle containing
// (row, col).
func (m *Maps) FindColor(row, col int) (int, bool) {
	for e := m.colors.Back(); e != nil; e = e.Prev() {
		cr := e.Value.(*ColorRange)
		if cr.Rect.Contains(row, col) {
			return cr.Palette, true
		}
	}
	return 0, false
}

func (m *Maps) DeleteColorRange(target *ColorRange) bool {
	for e := m.colors.Front(); e != nil; e = e.Next() {
		if e.Value.(*ColorRange) == target {
			m.colors.Remove(e)
			return true
		}
	}
	return false
}

func (m *Maps) ListColorRanges() []ColorRange {
	out := make([]ColorRange, 0, m.colors.Len())
	for e := m.colors.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*ColorRange))
	}
	return out
}

// --- Palette (color pair) definitions ---

// SetPalette installs pair n's fg/bg, optionally driven by expr (nil for a
// static pair set by literal numbers). Reports false for n outside
// [1, MaxPalette], mirroring init_style's range check.
func (m *Maps) SetPalette(n, fg, bg int, e *expr.Node) bool {
	if n < 1 || n > MaxPalette {
		return false
	}
	m.Palettes[n] = Palette{Fg: fg, Bg: bg, Expr: e, Set: true}
	return true
}

// PaletteAt returns pair n's current fg/bg, or false if it was never set.
func (m *Maps) PaletteAt(n int) (Palette, bool) {
	if n < 1 || n > MaxPalette {
		return Palette{}, false
	}
	p := m.Palettes[n]
	return p, p.Set
}

// --- Notes ---

func (m *Maps) AddNote(row, col int, text string, ref Rect, hasRef bool) {
	for e := m.notes.Front(); e != nil; e = e.Next() {
		n := e.Value.(*Note)
		if n.Row == row && n.Col == col {
			n.Text, n.Ref, n.HasRef = text, ref, hasRef
			return
		}
	}
	m.notes.PushBack(&Note{Row: row, Col: col, Text: text, Ref: ref, HasRef: hasRef})
}

func (m *Maps) FindNote(row, col int) (*Note, bool) {
	for e := m.notes.Front(); e != nil; e = e.Next() {
		n := e.Value.(*Note)
		if n.Row == row && n.Col == col {
			return n, true
		}
	}
	return nil, false
}

func (m *Maps) DeleteNote(row, col int) bool {
	for e := m.notes.Front(); e != nil; e = e.Next() {
		if n := e.Value.(*Note); n.Row == row && n.Col == col {
			m.notes.Remove(e)
			return true
		}
	}
	return false
}

func (m *Maps) ListNotes() []Note {
	out := make([]Note, 0, m.notes.Len())
	for e := m.notes.Front(); e != nil; e = e.Next() {
		out = append(out, *e.Value.(*Note))
	}
	return out
}

// PointFunc rewrites a single (row, col) coordinate (a mark, a frame
// trigger, a note position, the goto target). RangeFunc rewrites a
// rectangle's two corners together, since the clamp rule differs slightly
// between the left/top and right/bottom endpoint (see package adjuster).
// Both are supplied by package adjuster; refmaps itself has no clamp/move
// logic of its own.
type PointFunc func(row, col int) (int, int)
type RangeFunc func(row1, col1, row2, col2 int) (int, int, int, int)

// Adjust applies point/rng to every (row, col) coordinate stored in every
// collection, plus goto state: named/framed/color range corners (via rng),
// frame trigger cells and note positions (via point). It never removes
// entries, even ones that collapse to a degenerate rectangle; that decision
// belongs to the caller (EditOps), which has the context to know whether a
// collapsed named range should be dropped.
func (m *Maps) Adjust(point PointFunc, rng RangeFunc) {
	for e := m.named.Front(); e != nil; e = e.Next() {
		nr := e.Value.(*NamedRange)
		nr.Rect = adjustRect(nr.Rect, rng)
	}
	for e := m.frames.Front(); e != nil; e = e.Next() {
		fr := e.Value.(*Frame)
		fr.Outer = adjustRect(fr.Outer, rng)
		fr.Inner = adjustRect(fr.Inner, rng)
		fr.TriggerRow, fr.TriggerCol = point(fr.TriggerRow, fr.TriggerCol)
	}
	for e := m.colors.Front(); e != nil; e = e.Next() {
		cr := e.Value.(*ColorRange)
		cr.Rect = adjustRect(cr.Rect, rng)
	}
	for e := m.notes.Front(); e != nil; e = e.Next() {
		n := e.Value.(*Note)
		n.Row, n.Col = point(n.Row, n.Col)
		if n.HasRef {
			n.Ref = adjustRect(n.Ref, rng)
		}
	}
	if m.GotoSet {
		m.GotoRow, m.GotoCol = point(m.GotoRow, m.GotoCol)
	}
}

func adjustRect(r Rect, rng RangeFunc) Rect {
	r1, c1, r2, c2 := rng(r.Row1, r.Col1, r.Row2, r.Col2)
	return Rect{Row1: r1, Col1: c1, Row2: r2, Col2: c2}
}
