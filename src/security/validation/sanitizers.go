package validation

import (
	"strings"
	"unicode"
)

// formulaLeaders are the leading characters spreadsheet software evaluates as a formula.
const formulaLeaders = "=+-@\t\r"

// SanitizeForFormulaInjection makes a CSV cell inert in spreadsheet software.
// A cell whose first non-blank character starts a formula gets a leading single quote;
// the original spacing is kept.
func SanitizeForFormulaInjection(cell string) string {
	trimmed := strings.TrimLeft(cell, " \n")
	if trimmed == "" || !strings.ContainsRune(formulaLeaders, rune(trimmed[0])) {
		return cell
	}
	return "'" + cell
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// CleanOCRText strips unprintable runes and collapses runs of whitespace to one space.
func CleanOCRText(s string) string {
	return strings.Join(strings.Fields(StripUnprintable(s)), " ")
}
