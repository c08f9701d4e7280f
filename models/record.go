package models

// ProviderResult is a single hit scraped from one content source.
type ProviderResult struct {
	Provider   string `json:"provider"`
	SourceID   string `json:"sourceId"` // provider-local identifier, usually a URL
	Title      string `json:"title"`
	Romaji     string `json:"romaji,omitempty"`
	Native     string `json:"native,omitempty"`
	CoverImage string `json:"coverImage,omitempty"`
}

// Similarity is the outcome of a title comparison.
type Similarity struct {
	Same  bool    `json:"same"`
	Value float64 `json:"value"`
}

// Connector links one provider result to a canonical entry. Connectors are
// not deduplicated: two distinct results matching the same entry both stay.
type Connector struct {
	Provider   string     `json:"provider"`
	SourceID   string     `json:"sourceId"`
	Similarity Similarity `json:"similarity"`
}

// Record is one canonical entry plus every provider connector discovered for
// it. Connector order reflects discovery order, not quality order.
type Record struct {
	ID         string      `json:"id"`
	Media      Media       `json:"media"`
	Connectors []Connector `json:"connectors"`
}

// Seasonal groups the five AniList seasonal buckets.
type Seasonal struct {
	Trending   []Media `json:"trending"`
	Season     []Media `json:"season"`
	Popular    []Media `json:"popular"`
	Top        []Media `json:"top"`
	NextSeason []Media `json:"nextSeason"`
}
