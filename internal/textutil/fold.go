package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// FoldText lowercases text and strips combining marks so that accented and
// unaccented spellings of the same name compare equal.
func FoldText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		return text
	}
	return folded
}
