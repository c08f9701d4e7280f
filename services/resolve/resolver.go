// Package resolve turns fan-out results into canonical records: it matches
// provider results against canonical candidates, folds matched pairs into one
// record per canonical ID and reconciles independently produced record sets.
package resolve

import (
	"sort"

	"anisync/config"
	"anisync/models"
	"anisync/services/fanout"
	"anisync/services/match"
)

// Pair links one matched connector to the canonical entry it belongs to.
type Pair struct {
	Media     models.Media
	Connector models.Connector
}

// ByFields matches every provider result against the candidate list using the
// three-field comparison, with per-provider thresholds. The first candidate
// passing the comparison threshold wins; candidate order is the tie-break.
// Used by the metadata-first pass, where candidates come from one canonical
// metadata search.
func ByFields(results map[string]fanout.Result, candidates []models.Media, mapping config.MappingSettings) []Pair {
	var pairs []Pair
	for _, res := range eachProvider(results) {
		eff := mapping.Effective(res.Provider)
		for _, item := range res.Results {
			m, ok := match.FindMatch(item, candidates, eff.Threshold, eff.ComparisonThreshold)
			if !ok {
				continue
			}
			pairs = append(pairs, Pair{
				Media: m.Media,
				Connector: models.Connector{
					Provider:   res.Provider,
					SourceID:   item.SourceID,
					Similarity: models.Similarity{Same: true, Value: m.Ratio},
				},
			})
		}
	}
	return pairs
}

// ByTitle matches every provider result against the candidate list by direct
// title similarity (preferred title plus alternates, fixed cutoff), keeping
// the best-scoring candidate. NOVEL entries are skipped when matching manga.
// Used by the provider-first pass, where each result drives its own canonical
// search.
func ByTitle(results map[string]fanout.Result, candidates []models.Media, mediaType models.MediaType) []Pair {
	var pairs []Pair
	for _, res := range eachProvider(results) {
		for _, item := range res.Results {
			media, sim, ok := bestByTitle(item, candidates, mediaType)
			if !ok {
				continue
			}
			pairs = append(pairs, Pair{
				Media: media,
				Connector: models.Connector{
					Provider:   res.Provider,
					SourceID:   item.SourceID,
					Similarity: sim,
				},
			})
		}
	}
	return pairs
}

// bestByTitle returns the highest-scoring candidate above the direct cutoff.
func bestByTitle(item models.ProviderResult, candidates []models.Media, mediaType models.MediaType) (models.Media, models.Similarity, bool) {
	var (
		best    models.Media
		bestSim models.Similarity
		found   bool
	)
	for _, media := range candidates {
		if mediaType == models.TypeManga && media.Format == models.FormatNovel {
			continue
		}
		sim := match.TitleSimilarity(media.Title.Preferred(), item.Title, media.AllTitles())
		if !found || sim.Value > bestSim.Value {
			best, bestSim, found = media, sim, true
		}
	}
	if !found || !bestSim.Same {
		return models.Media{}, models.Similarity{}, false
	}
	return best, bestSim, true
}

// eachProvider yields fan-out results in deterministic provider-name order so
// pair emission does not depend on map iteration.
func eachProvider(results map[string]fanout.Result) []fanout.Result {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]fanout.Result, 0, len(names))
	for _, name := range names {
		out = append(out, results[name])
	}
	return out
}
