// Package normalize folds raw product names into a comparable form:
// lowercased, NFC-normalized, punctuation collapsed to whitespace, runs of
// whitespace collapsed to one space.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Name normalizes a raw product name. Idempotent: Name(Name(x)) == Name(x).
func Name(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			prevSpace = false
		default:
			if !prevSpace {
				b.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes Vietnamese combining marks so accent-drifted
// spellings compare equal: "điện thoại" -> "dien thoai". The letter đ is
// not a combining mark and is mapped separately.
func StripDiacritics(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	out = strings.ReplaceAll(out, "đ", "d")
	return strings.ReplaceAll(out, "Đ", "D")
}

// Tokens splits a normalized name into its word tokens.
func Tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// Prefix returns the first n runes of a normalized string, used for
// name-prefix blocking keys and ILIKE prefix lookups.
func Prefix(normalized string, n int) string {
	r := []rune(normalized)
	if len(r) <= n {
		return normalized
	}
	return string(r[:n])
}
