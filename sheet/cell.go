// Package sheet holds the dense cell matrix, row/column descriptors, and
// extent tracking for a single spreadsheet.
package sheet

import (
	"ssc/expr"
	"ssc/strpool"
)

// Tag identifies a cell's value kind.
type Tag uint8

const (
	Empty Tag = iota
	Number
	Text
	Boolean
	ErrorTag
)

// ErrorState is the cell-level error classification (§7 of the spec).
type ErrorState uint8

const (
	OK ErrorState = iota
	CellError
	CellInvalid
)

// Align is the 2-bit cell alignment; the clip flag is FlagClip in Flags.
type Align uint8

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Flags is a bitfield of per-cell state.
type Flags uint16

const (
	FlagChanged Flags = 1 << iota
	FlagValid
	FlagCleared
	FlagLocked
	FlagHasNote
	FlagStringExpr
	FlagMaySync
	FlagDeleted
	FlagClip
)

// Cell is a single addressed value in the sheet.
type Cell struct {
	Row, Col int
	Tag      Tag
	Value    float64
	Label    *strpool.String
	Format   *strpool.String
	Expr     *expr.Node
	Flags    Flags
	Align    Align
	Error    ErrorState
}

// Live reports whether the cell carries a non-empty tag or an expression.
func (c *Cell) Live() bool {
	if c == nil {
		return false
	}
	return c.Tag != Empty || c.Expr != nil
}

func (c *Cell) Has(f Flags) bool  { return c.Flags&f != 0 }
func (c *Cell) Set(f Flags)       { c.Flags |= f }
func (c *Cell) Clear(f Flags)     { c.Flags &^= f }

// Release drops the cell's owned resources (expression tree, label, format
// string). Callers must own an arena to release the expression tree; the
// arena is passed in explicitly rather than stored on the cell.
func (c *Cell) Release(arena *expr.Arena) {
	if c == nil {
		return
	}
	arena.Release(c.Expr)
	c.Expr = nil
	strpool.Release(c.Label)
	c.Label = nil
	strpool.Release(c.Format)
	c.Format = nil
}

// Clone returns a deep copy of c: a new cell with cloned expression tree and
// dup'd label/format strings, used by Copy (EditOps §4.7).
func (c *Cell) Clone(arena *expr.Arena) *Cell {
	if c == nil {
		return nil
	}
	out := *c
	out.Expr = arena.Clone(c.Expr)
	out.Label = strpool.Dup(c.Label)
	out.Format = strpool.Dup(c.Format)
	return &out
}
