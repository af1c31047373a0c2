package watchlist

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayName turns a raw slug such as "the-matrix" into "The Matrix".
// Word separators become spaces, runs of whitespace collapse and every word is
// title-cased. An all-separator slug yields "".
func DisplayName(slug string) string {
	spaced := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '+':
			return ' '
		}
		return r
	}, slug)
	words := strings.Fields(spaced)
	if len(words) == 0 {
		return ""
	}
	// A Caser keeps state between calls, so one is built per name.
	return cases.Title(language.English).String(strings.Join(words, " "))
}
