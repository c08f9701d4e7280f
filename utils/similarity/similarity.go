package similarity

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Compare calculates the similarity between two strings using the Sørensen-Dice
// coefficient over character bigrams. Returns a value between 0.0 (completely
// different) and 1.0 (identical). Comparison is case-insensitive using Unicode
// case folding.
//
// Strings shorter than two characters have no bigrams; in that case Compare
// returns 1.0 when the folded, trimmed strings are equal and 0.0 otherwise.
func Compare(s1, s2 string) float64 {
	s1 = normalize(s1)
	s2 = normalize(s2)

	a := bigrams(s1)
	b := bigrams(s2)

	if len(a) == 0 || len(b) == 0 {
		if s1 == s2 {
			return 1.0
		}
		return 0.0
	}

	overlap := 0
	for gram, count := range a {
		if other := b[gram]; other > 0 {
			if other < count {
				overlap += other
			} else {
				overlap += count
			}
		}
	}

	return 2.0 * float64(overlap) / float64(total(a)+total(b))
}

func normalize(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// bigrams returns the multiset of overlapping two-rune substrings of s.
func bigrams(s string) map[string]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	grams := make(map[string]int, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func total(grams map[string]int) int {
	n := 0
	for _, count := range grams {
		n += count
	}
	return n
}
