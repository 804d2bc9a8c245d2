package normalize

import "strings"

// Script selects a numeral system.
type Script int

const (
	// Western is 0-9.
	Western Script = iota
	// ArabicIndic is U+0660 to U+0669.
	ArabicIndic
)

const (
	arabicIndicZero   = '\u0660'
	extendedIndicZero = '\u06f0'
)

// Digits rewrites every decimal digit in s, from any supported script,
// into the target script. Non-digit runes are untouched.
func Digits(s string, target Script) string {
	return strings.Map(func(r rune) rune {
		v, ok := digitValue(r)
		if !ok {
			return r
		}
		if target == ArabicIndic {
			return arabicIndicZero + rune(v)
		}
		return '0' + rune(v)
	}, s)
}

// digitValue returns the numeric value of a Western, Arabic-Indic or
// Extended Arabic-Indic digit.
func digitValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= arabicIndicZero && r <= arabicIndicZero+9:
		return int(r - arabicIndicZero), true
	case r >= extendedIndicZero && r <= extendedIndicZero+9:
		return int(r - extendedIndicZero), true
	}
	return 0, false
}
