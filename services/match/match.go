// Package match decides whether a provider result and a canonical metadata
// entry denote the same work.
package match

import (
	"strings"

	"anisync/models"
	"anisync/utils/similarity"
	"anisync/utils/titles"
)

// directCutoff is the fixed acceptance cutoff for single-field title
// comparisons (TitleSimilarity). Multi-field comparisons use the configurable
// comparison threshold instead.
const directCutoff = 0.6

// Fields carries up to three optional title slots for one side of a
// comparison. Empty strings mean the slot is absent.
type Fields struct {
	Title  string
	Romaji string
	Native string
}

// FieldsFromResult extracts the comparable title slots of a provider result.
func FieldsFromResult(r models.ProviderResult) Fields {
	return Fields{Title: r.Title, Romaji: r.Romaji, Native: r.Native}
}

// FieldsFromMedia extracts the comparable title slots of a canonical entry.
func FieldsFromMedia(m models.Media) Fields {
	return Fields{Title: m.Title.English, Romaji: m.Title.Romaji, Native: m.Title.Native}
}

// MatchFields compares the slots present on both sides. A slot counts as a hit
// when the lower-cased strings are equal or their similarity exceeds
// threshold. The returned ratio is hits/tries; when no slot is comparable the
// ratio is 0, never NaN.
func MatchFields(a, b Fields, threshold float64) float64 {
	hits, tries := 0, 0

	check := func(s1, s2 string) {
		if s1 == "" || s2 == "" {
			return
		}
		tries++
		if strings.EqualFold(s1, s2) || similarity.Compare(s1, s2) > threshold {
			hits++
		}
	}

	check(a.Title, b.Title)
	check(a.Romaji, b.Romaji)
	check(a.Native, b.Native)

	if tries == 0 {
		return 0
	}
	return float64(hits) / float64(tries)
}

// Match pairs a passing candidate with the field-match ratio it scored.
type Match struct {
	Media models.Media
	Ratio float64
}

// FindMatch walks candidates in the given order and returns the first one
// whose field-match ratio exceeds comparisonThreshold. Candidate order decides
// the winner when several candidates pass; FindMatch deliberately does not
// pick the best-scoring one, so that a stable candidate ordering yields a
// deterministic result.
func FindMatch(result models.ProviderResult, candidates []models.Media, threshold, comparisonThreshold float64) (Match, bool) {
	fields := FieldsFromResult(result)
	for _, media := range candidates {
		ratio := MatchFields(fields, FieldsFromMedia(media), threshold)
		if ratio > comparisonThreshold {
			return Match{Media: media, Ratio: ratio}, true
		}
	}
	return Match{}, false
}

// TitleSimilarity compares a provider title against a canonical title plus its
// alternate titles, keeping the highest score. The provider title is sanitized
// for the primary comparison only. Same is true above the fixed 0.6 cutoff.
func TitleSimilarity(canonicalTitle, providerTitle string, altTitles []string) models.Similarity {
	value := similarity.Compare(titles.Sanitize(providerTitle), canonicalTitle)
	for _, alt := range altTitles {
		if alt == "" {
			continue
		}
		if v := similarity.Compare(providerTitle, alt); v > value {
			value = v
		}
	}
	return models.Similarity{Same: value > directCutoff, Value: value}
}
