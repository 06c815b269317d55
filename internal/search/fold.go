package search

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips combining marks so "Força" matches "forca".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// minTypoQuery is the shortest query the typo matcher considers; shorter
// queries would match nearly every word.
const minTypoQuery = 3

func typoThreshold(query []rune) int {
	if len(query) <= 4 {
		return 1
	}
	return 2
}

// typoDistance compares query against each word of label, and against the
// word prefix of the same length, returning the best optimal string alignment
// distance found (Levenshtein plus adjacent transpositions).
func typoDistance(query, label string) int {
	q := []rune(query)
	best := -1
	consider := func(d int) {
		if best < 0 || d < best {
			best = d
		}
	}
	words := strings.Fields(label)
	if len(words) > 1 {
		words = append(words, label)
	}
	for _, word := range words {
		w := []rune(word)
		consider(edlib.OSADamerauLevenshteinDistance(query, word))
		if len(w) > len(q) {
			consider(edlib.OSADamerauLevenshteinDistance(query, string(w[:len(q)])))
		}
	}
	if best < 0 {
		return len(q)
	}
	return best
}
