package models

// MediaType distinguishes the two catalogs tracked by the service.
type MediaType string

const (
	TypeAnime MediaType = "ANIME"
	TypeManga MediaType = "MANGA"
)

// Valid reports whether the type is one of the two supported catalogs.
func (t MediaType) Valid() bool {
	return t == TypeAnime || t == TypeManga
}

// Format is the AniList media format (TV, MOVIE, MANGA, NOVEL, ...).
// NOVEL entries are excluded from manga matching.
type Format string

const (
	FormatTV      Format = "TV"
	FormatMovie   Format = "MOVIE"
	FormatOVA     Format = "OVA"
	FormatONA     Format = "ONA"
	FormatSpecial Format = "SPECIAL"
	FormatManga   Format = "MANGA"
	FormatNovel   Format = "NOVEL"
	FormatOneShot Format = "ONE_SHOT"
)

// MediaTitle carries the title variants AniList exposes for one entry.
type MediaTitle struct {
	UserPreferred string `json:"userPreferred,omitempty"`
	Romaji        string `json:"romaji,omitempty"`
	English       string `json:"english,omitempty"`
	Native        string `json:"native,omitempty"`
}

// Preferred returns the best display title, falling back through the variants.
func (t MediaTitle) Preferred() string {
	for _, s := range []string{t.UserPreferred, t.Romaji, t.English, t.Native} {
		if s != "" {
			return s
		}
	}
	return ""
}

// All returns every non-empty title variant in a stable order.
func (t MediaTitle) All() []string {
	var out []string
	for _, s := range []string{t.UserPreferred, t.Romaji, t.English, t.Native} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Media is one canonical metadata entry. Immutable within a resolution pass.
type Media struct {
	ID         string     `json:"id"`
	Type       MediaType  `json:"type"`
	Format     Format     `json:"format,omitempty"`
	Title      MediaTitle `json:"title"`
	Synonyms   []string   `json:"synonyms,omitempty"`
	CoverImage string     `json:"coverImage,omitempty"`
}

// AllTitles returns every title variant plus synonyms, used for alt-title
// similarity comparison.
func (m Media) AllTitles() []string {
	return append(m.Title.All(), m.Synonyms...)
}
