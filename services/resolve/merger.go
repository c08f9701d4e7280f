package resolve

import "anisync/models"

// Merge folds matched pairs into canonical records, one per canonical ID.
// Records appear in first-seen order and connectors are appended in pair
// order without deduplication: two distinct provider results matching the
// same entry both keep their connector.
func Merge(pairs []Pair) []models.Record {
	index := make(map[string]int, len(pairs))
	var records []models.Record

	for _, pair := range pairs {
		id := pair.Media.ID
		if at, ok := index[id]; ok {
			records[at].Connectors = append(records[at].Connectors, pair.Connector)
			continue
		}
		index[id] = len(records)
		records = append(records, models.Record{
			ID:         id,
			Media:      pair.Media,
			Connectors: []models.Connector{pair.Connector},
		})
	}
	return records
}
