package resolve

import "anisync/models"

// Reconcile merges two independently produced record sets by canonical ID and
// connector source ID, keeping the higher-similarity connector of each
// matched pair. An incoming connector scoring below minSimilarity never
// replaces its base counterpart.
//
// When either side is empty the other is returned unchanged. When both are
// non-empty the result is the ID-wise intersection: records present in only
// one input are dropped. This mirrors the established reconciliation policy
// even though it discards information; callers relying on a union must not
// use this function.
func Reconcile(base, incoming []models.Record, minSimilarity float64) []models.Record {
	if len(base) == 0 {
		return incoming
	}
	if len(incoming) == 0 {
		return base
	}

	out := make([]models.Record, 0, len(base))
	for _, cur := range base {
		for _, next := range incoming {
			if cur.ID != next.ID {
				continue
			}
			var connectors []models.Connector
			for _, have := range cur.Connectors {
				for _, want := range next.Connectors {
					if have.SourceID != want.SourceID {
						continue
					}
					if want.Similarity.Value < minSimilarity || have.Similarity.Value >= want.Similarity.Value {
						connectors = append(connectors, have)
					} else {
						connectors = append(connectors, want)
					}
				}
			}
			out = append(out, models.Record{
				ID:         cur.ID,
				Media:      cur.Media,
				Connectors: connectors,
			})
		}
	}
	return out
}
