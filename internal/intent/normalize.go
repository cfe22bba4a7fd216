package intent

import (
	"strings"
	"unicode"

	"github.com/surgebase/porter2"
)

// Normalize splits text into word tokens, lowercases each and reduces
// it to its stem, so that morphological variants ("register",
// "registering", "registered") collapse to one term. Tokens that carry
// no letters or digits are dropped. Order and duplicates are
// preserved: downstream scoring divides by the token count of the
// query, so repeats matter even though the bag-of-words vector itself
// is binary.
//
// Normalize is a pure function: identical input always yields
// identical output for a given stemmer version.
func Normalize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, porter2.Stem(strings.ToLower(f)))
	}
	return terms
}
