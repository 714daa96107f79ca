package chunker

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize cleans raw transcript text before chunking: NFKC normalization,
// whitespace runs (newlines, tabs, repeated spaces) collapsed to one space,
// non-printable control characters removed, ends trimmed.
//
// Normalize never fails and is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case !unicode.IsPrint(r):
			// Control and format characters are dropped without
			// breaking the surrounding word.
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}

	// Dropping a character can leave a base letter next to a combining
	// mark; a second pass composes it so the result is stable.
	return norm.NFKC.String(b.String())
}

// countWords returns the number of whitespace-separated words in s.
func countWords(s string) int {
	return len(strings.Fields(s))
}
