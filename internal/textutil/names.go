package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Key returns the normalized comparison key for a name: words are split on
// whitespace, underscores, and hyphens, rejoined with single spaces, and
// case-folded. "Sea  Stars", "sea_stars" and "SEA-STARS" share a key.
func Key(name string) string {
	words := splitWords(name)
	if len(words) == 0 {
		return ""
	}
	// Casers carry state, so each call builds its own.
	return cases.Fold().String(strings.Join(words, " "))
}

// TitleCase capitalizes every word after collapsing whitespace.
func TitleCase(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}

// SentenceCase capitalizes the first word and lower-cases the rest, the form
// used for binomial names ("Chromis viridis").
func SentenceCase(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	lowered := cases.Lower(language.Und).String(strings.Join(words, " "))
	runes := []rune(lowered)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func splitWords(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	})
}
