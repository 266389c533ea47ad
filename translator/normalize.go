package translator

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Elaboración" and
// "ELABORACION" compare equal. Byte offsets of the result do not map back
// to s; callers match and extract on folded text only.
func Fold(s string) string {
	// transformers carry state and are not safe for concurrent use
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}
