// Package persist implements the text persistence command vocabulary: the
// line-oriented commands a saved sheet is made of (let, leftstring,
// rightstring, label, fmt, format, hide, define, frame, color, addnote,
// abbrev, set) plus their canonical re-emission, so that Emit(Apply(text))
// reproduces text up to the abbreviation table and decompiler's own
// canonical spelling choices. Column formats (format), hidden rows (hide)
// and set options are applied on load but Emit does not write them back.
package persist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ssc/decompile"
	"ssc/engine"
	"ssc/refmaps"
	"ssc/sheet"
)

// tokenize splits a command line on whitespace, treating a double-quoted
// run (with \" and \\ escapes) as a single token including its quotes.
func tokenize(line string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == '\\' && i+1 < len(line) {
				i++
				cur.WriteByte(line[i])
			} else if ch == '"' {
				inQuote = false
			}
		case ch == '"':
			inQuote = true
			cur.WriteByte(ch)
		case ch == ' ' || ch == '\t':
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("persist: unterminated quoted string in %q", line)
	}
	flush()
	return toks, nil
}

// unquote strips a token's surrounding quotes and resolves its escapes.
func unquote(tok string) string {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return tok
	}
	var b strings.Builder
	body := tok[1 : len(tok)-1]
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	b.WriteByte('"')
	return b.String()
}

// cellRef parses an "A1"-style token into 0-based (row, col).
func cellRef(tok string) (row, col int, err error) {
	i := 0
	for i < len(tok) && ((tok[i] >= 'A' && tok[i] <= 'Z') || (tok[i] >= 'a' && tok[i] <= 'z')) {
		i++
	}
	if i == 0 || i == len(tok) {
		return 0, 0, fmt.Errorf("persist: malformed cell reference %q", tok)
	}
	col = sheet.ParseColumnLabel(tok[:i])
	rowNum, err := strconv.Atoi(tok[i:])
	if err != nil || col < 0 || rowNum < 1 {
		return 0, 0, fmt.Errorf("persist: malformed cell reference %q", tok)
	}
	return rowNum - 1, col, nil
}

func cellText(row, col int) string {
	return fmt.Sprintf("%s%d", sheet.ColumnLabel(col), row+1)
}

// rangeRef parses "A1:B2" (or a bare "A1", treated as a single-cell range)
// into 0-based corners.
func rangeRef(tok string) (r1, c1, r2, c2 int, err error) {
	parts := strings.SplitN(tok, ":", 2)
	r1, c1, err = cellRef(parts[0])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if len(parts) == 1 {
		return r1, c1, r1, c1, nil
	}
	r2, c2, err = cellRef(parts[1])
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return r1, c1, r2, c2, nil
}

func rangeText(r1, c1, r2, c2 int) string {
	if r1 == r2 && c1 == c2 {
		return cellText(r1, c1)
	}
	return cellText(r1, c1) + ":" + cellText(r2, c2)
}

// Apply parses and executes one persistence command line against e. Before
// dispatch, the command word is run through abbrev's longest-prefix
// expansion, matching abbrev.c's command-line tokenizing behavior.
func Apply(e *engine.Engine, abbrev *AbbrevTable, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	toks, err := tokenize(line)
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		return nil
	}
	op := abbrev.Expand(toks[0])
	args := toks[1:]

	switch op {
	case "let":
		return applyLet(e, args, false)
	case "leftstring":
		return applyStringAssign(e, args, sheet.AlignLeft)
	case "rightstring":
		return applyStringAssign(e, args, sheet.AlignRight)
	case "label":
		return applyStringAssign(e, args, sheet.AlignDefault)
	case "fmt":
		return applyFmt(e, args)
	case "format":
		return applyColumnFormat(e, args)
	case "hide":
		return applyHide(e, args)
	case "define":
		return applyDefine(e, args)
	case "frame":
		return applyFrame(e, args)
	case "color":
		return applyColor(e, args)
	case "addnote":
		return applyAddNote(e, args)
	case "abbrev":
		return applyAbbrev(abbrev, args)
	case "set":
		return applySet(e, args)
	default:
		return fmt.Errorf("persist: unknown command %q", op)
	}
}

func applyLet(e *engine.Engine, args []string, stringValued bool) error {
	if len(args) < 2 || args[1] != "=" {
		return fmt.Errorf("persist: let wants \"let <ref> = <expr>\"")
	}
	row, col, err := cellRef(args[0])
	if err != nil {
		return err
	}
	source := strings.Join(args[2:], " ")
	return e.SetExpression(row, col, source, stringValued)
}

func applyStringAssign(e *engine.Engine, args []string, align sheet.Align) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: string assignment wants \"<ref> = <text>\"")
	}
	row, col, err := cellRef(args[0])
	if err != nil {
		return err
	}
	var text string
	if args[1] == "=" && len(args) >= 3 {
		text = unquote(strings.Join(args[2:], " "))
	} else {
		text = unquote(strings.Join(args[1:], " "))
	}
	if err := e.SetString(row, col, text); err != nil {
		return err
	}
	if align != sheet.AlignDefault {
		cell := e.Sheet.Get(row, col)
		if cell != nil {
			cell.Align = align
		}
	}
	return nil
}

func applyFmt(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: fmt wants \"fmt <ref> <format>\"")
	}
	row, col, err := cellRef(args[0])
	if err != nil {
		return err
	}
	return e.SetFormat(row, col, unquote(args[1]))
}

func applyColumnFormat(e *engine.Engine, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("persist: format wants \"format <col> <width> <precision> [formatIndex]\"")
	}
	col := sheet.ParseColumnLabel(args[0])
	if col < 0 {
		return fmt.Errorf("persist: malformed column %q", args[0])
	}
	width, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}
	precision, err := strconv.Atoi(args[2])
	if err != nil {
		return err
	}
	idx := 0
	if len(args) > 3 {
		idx, _ = strconv.Atoi(args[3])
	}
	e.Sheet.SetColFormat(col, sheet.ColFormat{Width: width, Precision: precision, FormatIndex: idx})
	return nil
}

func applyHide(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: hide wants \"hide row <n>\" or \"hide col <letter>\"")
	}
	switch args[0] {
	case "row":
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		e.Sheet.SetRowFormat(n-1, sheet.RowFormat{Hidden: true})
	case "col":
		col := sheet.ParseColumnLabel(args[1])
		if col < 0 {
			return fmt.Errorf("persist: malformed column %q", args[1])
		}
		f := e.Sheet.ColFormat(col)
		f.Hidden = true
		e.Sheet.SetColFormat(col, f)
	default:
		return fmt.Errorf("persist: hide wants row or col, got %q", args[0])
	}
	return nil
}

func applyDefine(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: define wants \"define <name> <range>\"")
	}
	r1, c1, r2, c2, err := rangeRef(args[1])
	if err != nil {
		return err
	}
	e.DefineName(args[0], r1, c1, r2, c2)
	return nil
}

func applyFrame(e *engine.Engine, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("persist: frame wants \"frame <outer> <inner> <triggerRow> <triggerCol>\"")
	}
	or1, oc1, or2, oc2, err := rangeRef(args[0])
	if err != nil {
		return err
	}
	ir1, ic1, ir2, ic2, err := rangeRef(args[1])
	if err != nil {
		return err
	}
	triggerRow, err := strconv.Atoi(args[2])
	if err != nil {
		return err
	}
	triggerCol, err := strconv.Atoi(args[3])
	if err != nil {
		return err
	}
	e.AddFrame(or1, oc1, or2, oc2, ir1, ic1, ir2, ic2, triggerRow-1, triggerCol-1)
	return nil
}

// applyColor handles two forms: "color <range> <palette>" paints a range
// with an already-defined pair, and "color <n> = <expr>" (re)defines pair n
// itself, re-evaluating expr at the end of every recalculation batch.
func applyColor(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: color wants \"color <range> <palette>\" or \"color <n> = <expr>\"")
	}
	if args[1] == "=" {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		source := strings.Join(args[2:], " ")
		return e.SetPaletteExpr(n, source)
	}
	r1, c1, r2, c2, err := rangeRef(args[0])
	if err != nil {
		return err
	}
	palette, err := strconv.Atoi(args[1])
	if err != nil {
		return err
	}
	e.AddColorRange(r1, c1, r2, c2, palette)
	return nil
}

func applyAddNote(e *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: addnote wants \"addnote <ref> <text> [refrange]\"")
	}
	row, col, err := cellRef(args[0])
	if err != nil {
		return err
	}
	text := unquote(args[1])
	if len(args) > 2 {
		r1, c1, r2, c2, err := rangeRef(args[2])
		if err != nil {
			return err
		}
		e.AddNote(row, col, text, r1, c1, r2, c2, true)
		return nil
	}
	e.AddNote(row, col, text, 0, 0, 0, 0, false)
	return nil
}

func applyAbbrev(abbrev *AbbrevTable, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("persist: abbrev wants \"abbrev <name> <text>\"")
	}
	abbrev.Add(args[0], unquote(strings.Join(args[1:], " ")))
	return nil
}

func applySet(e *engine.Engine, args []string) error {
	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("persist: set wants key=value pairs, got %q", arg)
		}
		key, val := kv[0], kv[1]
		switch key {
		case "iterations":
			n, err := strconv.Atoi(val)
			if err != nil {
				return err
			}
			e.SetIterations(n)
		case "order":
			switch val {
			case "byrows":
				e.SetOrder(sheet.ByRows)
			case "bycols":
				e.SetOrder(sheet.ByCols)
			default:
				return fmt.Errorf("persist: unknown order %q", val)
			}
		case "protect":
			e.SetProtect(val == "on" || val == "true" || val == "1")
		default:
			return fmt.Errorf("persist: unknown option %q", key)
		}
	}
	return nil
}

// Emit serializes e's live cells, named ranges, frames, color ranges, and
// notes as a canonical command stream, in row-major cell order followed by
// the reference-map collections and finally the abbreviation table.
func Emit(e *engine.Engine, abbrev *AbbrevTable) []string {
	var lines []string
	for row := 0; row <= e.Sheet.MaxRow; row++ {
		for col := 0; col <= e.Sheet.MaxCol; col++ {
			cell := e.Sheet.Get(row, col)
			if cell == nil || !cell.Live() {
				continue
			}
			ref := cellText(row, col)
			switch {
			case cell.Expr != nil && cell.Has(sheet.FlagStringExpr):
				lines = append(lines, fmt.Sprintf("let %s = %s", ref, decompile.Decompile(cell.Expr, e.Maps)))
			case cell.Expr != nil:
				lines = append(lines, fmt.Sprintf("let %s = %s", ref, decompile.Decompile(cell.Expr, e.Maps)))
			case cell.Tag == sheet.Number:
				lines = append(lines, fmt.Sprintf("let %s = %s", ref, strconv.FormatFloat(cell.Value, 'g', -1, 64)))
			case cell.Tag == sheet.Text && cell.Label != nil:
				op := "label"
				switch cell.Align {
				case sheet.AlignLeft:
					op = "leftstring"
				case sheet.AlignRight:
					op = "rightstring"
				}
				lines = append(lines, fmt.Sprintf("%s %s = %s", op, ref, quote(cell.Label.String())))
			}
			if cell.Format != nil {
				lines = append(lines, fmt.Sprintf("fmt %s %s", ref, quote(cell.Format.String())))
			}
		}
	}
	for _, n := range e.Maps.ListNamed() {
		lines = append(lines, fmt.Sprintf("define %s %s", n.Name, rangeText(n.Rect.Row1, n.Rect.Col1, n.Rect.Row2, n.Rect.Col2)))
	}
	for _, f := range e.Maps.ListFrames() {
		lines = append(lines, fmt.Sprintf("frame %s %s %d %d",
			rangeText(f.Outer.Row1, f.Outer.Col1, f.Outer.Row2, f.Outer.Col2),
			rangeText(f.Inner.Row1, f.Inner.Col1, f.Inner.Row2, f.Inner.Col2),
			f.TriggerRow+1, f.TriggerCol+1))
	}
	for _, cr := range e.Maps.ListColorRanges() {
		lines = append(lines, fmt.Sprintf("color %s %d", rangeText(cr.Rect.Row1, cr.Rect.Col1, cr.Rect.Row2, cr.Rect.Col2), cr.Palette))
	}
	for n := 1; n <= refmaps.MaxPalette; n++ {
		p, ok := e.Maps.PaletteAt(n)
		if !ok || p.Expr == nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("color %d = %s", n, decompile.Decompile(p.Expr, e.Maps)))
	}
	for _, n := range e.Maps.ListNotes() {
		ref := cellText(n.Row, n.Col)
		if n.HasRef {
			lines = append(lines, fmt.Sprintf("addnote %s %s %s", ref, quote(n.Text), rangeText(n.Ref.Row1, n.Ref.Col1, n.Ref.Row2, n.Ref.Col2)))
		} else {
			lines = append(lines, fmt.Sprintf("addnote %s %s", ref, quote(n.Text)))
		}
	}
	entries := abbrev.List()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	for _, a := range entries {
		lines = append(lines, fmt.Sprintf("abbrev %s %s", a.Name, quote(a.Text)))
	}
	return lines
}
