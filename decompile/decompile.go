// Package decompile pretty-prints an expr.Node tree back into re-parseable
// formula text, honoring operator precedence (so parentheses appear only
// where needed), reference fix bits, and named-range matching.
package decompile

import (
	"strconv"
	"strings"

	"ssc/expr"
	"ssc/refmaps"
	"ssc/sheet"
)

// precedence mirrors parser.precedences; kept independent so this package
// has no import-time dependency on parser.
func precedence(op expr.Op) int {
	switch op {
	case expr.OpSemi:
		return 1
	case expr.OpCond:
		return 2
	case expr.OpOr:
		return 3
	case expr.OpAnd:
		return 4
	case expr.OpEq, expr.OpNe, expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe:
		return 5
	case expr.OpAdd, expr.OpSub:
		return 6
	case expr.OpConcat:
		return 7
	case expr.OpMul, expr.OpDiv, expr.OpMod:
		return 8
	case expr.OpPow:
		return 9
	case expr.OpNeg, expr.OpNot, expr.OpFixed:
		return 10
	default:
		return 11 // leaves, calls, refs: never need parens around themselves
	}
}

var opText = map[expr.Op]string{
	expr.OpAdd: "+", expr.OpSub: "-", expr.OpMul: "*", expr.OpDiv: "/",
	expr.OpMod: "%", expr.OpPow: "^", expr.OpConcat: "#",
	expr.OpEq: "=", expr.OpNe: "<>", expr.OpLt: "<", expr.OpLe: "<=",
	expr.OpGt: ">", expr.OpGe: ">=", expr.OpAnd: "&", expr.OpOr: "|",
}

// Maps is the subset of refmaps.Maps lookup the decompiler needs: preferring
// a named range's spelling over raw A1:B2 syntax when one covers exactly the
// range being printed.
type Maps interface {
	FindNamedByRect(rect refmaps.Rect) (string, bool)
}

// Decompile renders n as re-parseable formula text.
func Decompile(n *expr.Node, maps Maps) string {
	var b strings.Builder
	write(&b, n, maps, 0)
	return b.String()
}

func write(b *strings.Builder, n *expr.Node, maps Maps, parentPrec int) {
	if n == nil {
		return
	}
	switch n.Op {
	case expr.OpConst:
		b.WriteString(formatNumber(n.Num))
	case expr.OpSConst:
		writeString(b, n.Str.String())
	case expr.OpName:
		b.WriteString(n.Name)
	case expr.OpRef:
		b.WriteString(refText(n.Ref))
	case expr.OpRange:
		writeRange(b, n, maps)
	case expr.OpNeg:
		b.WriteByte('-')
		write(b, n.Left, maps, precedence(expr.OpNeg))
	case expr.OpNot:
		b.WriteByte('!')
		write(b, n.Left, maps, precedence(expr.OpNot))
	case expr.OpFixed:
		b.WriteString("f(")
		write(b, n.Left, maps, 0)
		b.WriteByte(')')
	case expr.OpCond:
		writeBinaryLike(b, n.Cond, maps, parentPrec, func() {
			b.WriteByte('?')
			write(b, n.Left, maps, precedence(expr.OpCond))
			b.WriteByte(':')
			write(b, n.Right, maps, precedence(expr.OpCond))
		})
	case expr.OpSemi:
		writeInfix(b, n, maps, parentPrec, ";")
	case expr.OpCall:
		writeCall(b, n, maps)
	default:
		writeInfix(b, n, maps, parentPrec, opText[n.Op])
	}
}

func writeInfix(b *strings.Builder, n *expr.Node, maps Maps, parentPrec int, op string) {
	prec := precedence(n.Op)
	needParens := prec < parentPrec
	if needParens {
		b.WriteByte('(')
	}
	write(b, n.Left, maps, prec)
	b.WriteString(op)
	// Every binary operator in this grammar (including ^) parses
	// left-associatively, so the right operand needs parens whenever its own
	// precedence is not strictly higher than its parent's.
	write(b, n.Right, maps, prec+1)
	if needParens {
		b.WriteByte(')')
	}
}

func writeBinaryLike(b *strings.Builder, cond *expr.Node, maps Maps, parentPrec int, rest func()) {
	prec := precedence(expr.OpCond)
	needParens := prec < parentPrec
	if needParens {
		b.WriteByte('(')
	}
	write(b, cond, maps, prec+1)
	rest()
	if needParens {
		b.WriteByte(')')
	}
}

func writeCall(b *strings.Builder, n *expr.Node, maps Maps) {
	b.WriteString(n.Name)
	b.WriteByte('(')
	args := expr.Args(n.Left)
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		write(b, arg, maps, 0)
	}
	b.WriteByte(')')
}

func writeRange(b *strings.Builder, n *expr.Node, maps Maps) {
	minRow, minCol, maxRow, maxCol := n.Range.MinMax()
	if maps != nil {
		if name, ok := maps.FindNamedByRect(refmaps.Rect{Row1: minRow, Col1: minCol, Row2: maxRow, Col2: maxCol}); ok {
			b.WriteString(name)
			return
		}
	}
	b.WriteString(refText(n.Range.Left))
	b.WriteByte(':')
	b.WriteString(refText(n.Range.Right))
}

func refText(r expr.Ref) string {
	var b strings.Builder
	if r.FixCol {
		b.WriteByte('$')
	}
	b.WriteString(sheet.ColumnLabel(r.Col))
	if r.FixRow {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(r.Row + 1))
	return b.String()
}

func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, ch := range s {
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('"')
}

// formatNumber renders a number using '.' as the decimal separator
// regardless of display locale, per the persistence format's requirement
// that load/save text is locale-independent; see package display for
// locale-aware on-screen rendering.
func formatNumber(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
