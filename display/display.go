// Package display renders a cell's numeric value for a human reader under
// its column's format descriptor, separately from package decompile's
// re-parseable formula text: persisted and formula-internal numbers always
// use '.' as the decimal point (spec-mandated regardless of locale), but a
// value shown to a person may additionally group thousands the way that
// locale expects.
package display

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"ssc/sheet"
)

var printer = message.NewPrinter(language.English)

// FormatNumber renders value under f's format/precision, with thousands
// grouping in FormatFixed mode. General mode ignores grouping and renders
// the shortest round-trip representation, matching a plain cell's on-screen
// default.
func FormatNumber(value float64, f sheet.ColFormat) string {
	switch f.FormatIndex {
	case sheet.FormatFixed:
		precision := f.Precision
		if precision < 0 {
			precision = 0
		}
		return printer.Sprint(number.Decimal(value, number.Scale(precision)))
	default:
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
}
