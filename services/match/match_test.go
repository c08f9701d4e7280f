package match

import (
	"testing"

	"anisync/models"
)

func TestMatchFieldsNoComparableSlots(t *testing.T) {
	ratio := MatchFields(Fields{Title: "Naruto"}, Fields{Romaji: "naruto"}, 0.7)
	if ratio != 0 {
		t.Fatalf("expected ratio 0 with no comparable slots, got %v", ratio)
	}
	ratio = MatchFields(Fields{}, Fields{}, 0.7)
	if ratio != 0 {
		t.Fatalf("expected ratio 0 for empty fields, got %v", ratio)
	}
}

func TestMatchFieldsIdentical(t *testing.T) {
	a := Fields{Title: "Naruto", Romaji: "naruto", Native: "ナルト"}
	b := Fields{Title: "Naruto", Romaji: "naruto", Native: "ナルト"}

	ratio := MatchFields(a, b, 0.7)
	if ratio != 1.0 {
		t.Fatalf("expected ratio 1.0, got %v", ratio)
	}
	if ratio <= 0.5 {
		t.Fatalf("expected match above comparison threshold 0.5")
	}
}

func TestMatchFieldsPartialHit(t *testing.T) {
	a := Fields{Title: "Attack on Titan", Romaji: "Shingeki no Kyojin"}
	b := Fields{Title: "Attack on Titan", Romaji: "completely different"}

	ratio := MatchFields(a, b, 0.7)
	if ratio != 0.5 {
		t.Fatalf("expected ratio 0.5 with one hit of two tries, got %v", ratio)
	}
}

func TestMatchFieldsCaseInsensitiveEquality(t *testing.T) {
	ratio := MatchFields(Fields{Title: "BLEACH"}, Fields{Title: "bleach"}, 0.99)
	if ratio != 1.0 {
		t.Fatalf("exact case-folded equality should hit regardless of threshold, got %v", ratio)
	}
}

func TestFindMatchFirstWins(t *testing.T) {
	result := models.ProviderResult{Provider: "zoro", SourceID: "/naruto", Title: "Naruto"}
	candidates := []models.Media{
		{ID: "1", Title: models.MediaTitle{English: "Naruto"}},
		{ID: "2", Title: models.MediaTitle{English: "Naruto"}},
	}

	m, ok := FindMatch(result, candidates, 0.7, 0.5)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Media.ID != "1" {
		t.Fatalf("expected first passing candidate to win, got id %s", m.Media.ID)
	}
}

func TestFindMatchNoCandidates(t *testing.T) {
	result := models.ProviderResult{Title: "Naruto"}
	if _, ok := FindMatch(result, nil, 0.7, 0.5); ok {
		t.Fatal("expected no match with empty candidate list")
	}
}

func TestFindMatchBelowThreshold(t *testing.T) {
	result := models.ProviderResult{Title: "Naruto"}
	candidates := []models.Media{
		{ID: "1", Title: models.MediaTitle{English: "Berserk"}},
	}
	if _, ok := FindMatch(result, candidates, 0.7, 0.5); ok {
		t.Fatal("expected no match for dissimilar titles")
	}
}

func TestTitleSimilarity(t *testing.T) {
	sim := TitleSimilarity("Naruto", "Naruto (dub) BD", nil)
	if !sim.Same {
		t.Fatalf("expected sanitized title to match, value %v", sim.Value)
	}
	if sim.Value != 1.0 {
		t.Fatalf("expected value 1.0, got %v", sim.Value)
	}
}

func TestTitleSimilarityAltTitles(t *testing.T) {
	sim := TitleSimilarity("Attack on Titan", "Shingeki no Kyojin", []string{"", "Shingeki no Kyojin"})
	if !sim.Same || sim.Value != 1.0 {
		t.Fatalf("expected alt title to lift similarity to 1.0, got %+v", sim)
	}
}

func TestTitleSimilarityBelowCutoff(t *testing.T) {
	sim := TitleSimilarity("Berserk", "Naruto", nil)
	if sim.Same {
		t.Fatalf("expected no match, got %+v", sim)
	}
}
