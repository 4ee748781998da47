package app

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// containsExitWord reports whether text mentions any of words, ignoring case.
// With a positive similarity, a run of words that sounds like an exit word
// also matches, so "good bye" or "goodby" end the session like "goodbye".
func containsExitWord(text string, words []string, similarity float64) bool {
	lower := strings.ToLower(text)
	var tokens []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			return true
		}
		if similarity <= 0 {
			continue
		}
		if tokens == nil {
			tokens = strings.FieldsFunc(lower, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
		}
		if soundsLike(tokens, w, similarity) {
			return true
		}
	}
	return false
}

// soundsLike reports whether some run of tokens shares a Double Metaphone
// code with word and scores at least similarity on Jaro-Winkler. Runs are
// as long as word or one token longer, to catch exit words split in two.
func soundsLike(tokens []string, word string, similarity float64) bool {
	parts := strings.Fields(word)
	target := strings.Join(parts, "")
	want := metaphoneCodes(target)
	for n := len(parts); n <= len(parts)+1; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			candidate := strings.Join(tokens[i:i+n], "")
			if matchr.JaroWinkler(candidate, target, false) < similarity {
				continue
			}
			for code := range metaphoneCodes(candidate) {
				if _, ok := want[code]; ok {
					return true
				}
			}
		}
	}
	return false
}

func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, alt := matchr.DoubleMetaphone(s)
	for _, c := range []string{p, alt} {
		if c != "" {
			codes[c] = struct{}{}
		}
	}
	return codes
}
