package call

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// FingerprintUtterance hashes a finalized transcript after normalization.
// Dedup pairs the hash with the time it was recorded: a second identical
// utterance inside the dedup window collides, a deliberate repetition later
// does not.
func FingerprintUtterance(text string) string {
	sum := sha256.Sum256([]byte(normalizeUtterance(text)))
	return hex.EncodeToString(sum[:8])
}

// normalizeUtterance lowercases, strips punctuation, and collapses runs of
// whitespace so cosmetic transcription differences do not defeat dedup.
func normalizeUtterance(text string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
