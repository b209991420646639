package call

import (
	"testing"

	"github.com/nadavw/callbridge/internal/phrases"
)

func newDetector(t *testing.T) *HangupDetector {
	t.Helper()
	table, err := phrases.LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	return NewHangupDetector(table)
}

func TestHangupDetectorAnchoredAtEnd(t *testing.T) {
	d := newDetector(t)

	cases := []struct {
		locale string
		text   string
		want   bool
	}{
		{"en", "Alright, goodbye", true},
		{"en", "Alright, goodbye!", true},
		{"en", "Have a great day.", true},
		{"en", "goodbye", true},
		{"en", "Goodbye is a hard word to say", false},
		{"en", "I said goodbye to him yesterday", false},
		{"he", "תודה רבה, ביי", true},
		{"he", "ביי!", true},
		{"he", "ביי, אני חוזר", false},
		{"he", "להתראות", true},
		{"en", "", false},
	}
	for _, tc := range cases {
		if got := d.Match(tc.locale, tc.text); got != tc.want {
			t.Fatalf("Match(%q, %q) = %v, want %v", tc.locale, tc.text, got, tc.want)
		}
	}
}

func TestHangupDetectorLocaleFallback(t *testing.T) {
	d := newDetector(t)
	if !d.Match("en-US", "Okay, bye bye!") {
		t.Fatalf("region variant must fall back to base locale")
	}
	if !d.Match("fr", "goodbye") {
		t.Fatalf("unknown locale must fall back to english phrases")
	}
}

func TestHangupDetectorIgnoresWordSuffix(t *testing.T) {
	d := newDetector(t)
	// "bye" embedded at the end of a longer word is not a farewell.
	if d.Match("en", "I bought a new robye") {
		t.Fatalf("suffix inside a word must not match")
	}
}
