// Package speech turns stored page markup into narrated audio.
//
// Text is stripped to plain form, split into fixed-size chunks and each chunk
// is synthesized independently under its own timeout. Chunks that fail are
// dropped; the survivors are joined in order.
package speech

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// PlainText strips markup from s and removes characters the synthesis
// engines choke on: control characters, bidi marks and zero-width
// characters. Runs of whitespace collapse to a single space.
func PlainText(s string) string {
	text := html.UnescapeString(stripPolicy.Sanitize(s))
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\u200b', r == '\u200c', r == '\u200d', r == '\u2060', r == '\ufeff':
			return -1
		case unicode.Is(unicode.Bidi_Control, r):
			return -1
		case unicode.IsControl(r), r == unicode.ReplacementChar:
			return ' '
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}
