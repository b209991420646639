package call

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nadavw/callbridge/internal/phrases"
)

// HangupDetector recognizes an explicit farewell at the end of a finalized
// assistant transcript. Interim deltas are never scanned.
type HangupDetector struct {
	table phrases.Table
}

func NewHangupDetector(table phrases.Table) *HangupDetector {
	return &HangupDetector{table: table}
}

// Match reports whether the finalized text ends with a farewell phrase for
// the locale. Trailing punctuation is permitted; a farewell in the middle of
// a sentence does not count.
func (d *HangupDetector) Match(locale, finalText string) bool {
	if finalText == "" {
		return false
	}
	loc := d.table.ForLocale(locale)
	text := trimTrailingPunct(strings.ToLower(strings.TrimSpace(finalText)))
	if text == "" {
		return false
	}
	for _, phrase := range loc.Farewells {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" || !strings.HasSuffix(text, p) {
			continue
		}
		if len(text) == len(p) {
			return true
		}
		r, _ := utf8.DecodeLastRuneInString(text[:len(text)-len(p)])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// trimTrailingPunct drops punctuation and spaces from the end of an
// utterance, Hebrew and Latin alike.
func trimTrailingPunct(s string) string {
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
}
