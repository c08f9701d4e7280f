// Package sync composes matching, fan-out and persistence into the public
// search and crawl operations.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"anisync/config"
	"anisync/models"
	"anisync/services/fanout"
	"anisync/services/provider"
	"anisync/services/resolve"
	"anisync/utils/titles"
)

var (
	ErrInvalidType     = errors.New("invalid media type")
	ErrCanonicalLookup = errors.New("canonical metadata lookup failed")
)

// providerPassMinSimilarity guards the reconcile step: a provider-first match
// below this value never replaces a metadata-first one.
const providerPassMinSimilarity = 0.5

// Metadata is the canonical metadata service consumed by the orchestrator.
type Metadata interface {
	Search(ctx context.Context, query string, t models.MediaType) ([]models.Media, error)
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	GetSeasonal(ctx context.Context, page, perPage int, t models.MediaType) (*models.Seasonal, error)
	GetAllIDs(ctx context.Context, t models.MediaType) ([]string, error)
}

// Storage is the persistent store consumed by the orchestrator.
type Storage interface {
	Get(ctx context.Context, id string, t models.MediaType) (*models.Record, error)
	Search(ctx context.Context, query string, t models.MediaType) ([]models.Record, error)
	Insert(ctx context.Context, records []models.Record, t models.MediaType) error
	Export(ctx context.Context, t models.MediaType) (string, error)
}

// Service is the resolution orchestrator.
type Service struct {
	cfg      *config.Manager
	metadata Metadata
	store    Storage
	registry *provider.Registry
}

// NewService wires the orchestrator. The registry is built once at startup
// and shared by reference.
func NewService(cfg *config.Manager, metadata Metadata, store Storage, registry *provider.Registry) *Service {
	return &Service{cfg: cfg, metadata: metadata, store: store, registry: registry}
}

// Search resolves a free-text query to records linking canonical entries to
// provider results. The store is consulted first; on a miss the result is
// computed in two passes (metadata-first, then provider-first), reconciled,
// and written through.
func (s *Service) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.Record, error) {
	if !mediaType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, mediaType)
	}

	stored, err := s.store.Search(ctx, query, mediaType)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		return stored, nil
	}

	settings, err := s.cfg.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	candidates, err := s.metadata.Search(ctx, query, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCanonicalLookup, err)
	}

	adapters := s.registry.ForType(mediaType)
	results := fanout.Fetch(ctx, adapters, query, settings.Mapping)
	if err := fanout.Errors(results); err != nil {
		log.Printf("[sync] provider failures for %q: %v", query, err)
	}

	// Metadata-first pass: three-field comparison against the candidate set
	// from the single canonical search.
	base := resolve.Merge(resolve.ByFields(results, candidates, settings.Mapping))

	// Provider-first pass: each provider result drives its own canonical
	// search on its sanitized title, matched by direct title similarity.
	incoming, err := s.providerFirstPass(ctx, results, mediaType)
	if err != nil {
		return nil, err
	}

	// The two passes can agree on a canonical ID while matching it through
	// disjoint provider results; the connector intersection is then empty.
	// Such records are a no-match outcome, never an error or a stored row.
	var records []models.Record
	for _, rec := range resolve.Reconcile(base, incoming, providerPassMinSimilarity) {
		if len(rec.Connectors) == 0 {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, nil
	}

	if err := s.store.Insert(ctx, records, mediaType); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) providerFirstPass(ctx context.Context, results map[string]fanout.Result, mediaType models.MediaType) ([]models.Record, error) {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var pairs []resolve.Pair
	for _, name := range names {
		res := results[name]
		if res.Err != nil {
			continue
		}
		for _, item := range res.Results {
			candidates, err := s.metadata.Search(ctx, titles.Sanitize(item.Title), mediaType)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrCanonicalLookup, err)
			}
			single := map[string]fanout.Result{
				name: {Provider: name, Results: []models.ProviderResult{item}},
			}
			pairs = append(pairs, resolve.ByTitle(single, candidates, mediaType)...)
		}
	}
	return resolve.Merge(pairs), nil
}

// Get resolves a single canonical ID. Stored records win; otherwise the fast
// path asks ID-capable providers directly, and as a last resort a full search
// on the entry's preferred title is filtered down to the requested ID.
// Returns (nil, nil) when the ID is unknown to the metadata service or no
// provider links to it.
func (s *Service) Get(ctx context.Context, id string) (*models.Record, error) {
	media, err := s.metadata.GetMedia(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCanonicalLookup, err)
	}
	if media == nil {
		return nil, nil
	}

	if stored, err := s.store.Get(ctx, id, media.Type); err != nil {
		return nil, err
	} else if stored != nil {
		return stored, nil
	}

	if record, err := s.fastPath(ctx, *media); err != nil {
		return nil, err
	} else if record != nil {
		return record, nil
	}

	records, err := s.Search(ctx, media.Title.Preferred(), media.Type)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, nil
}

// fastPath asks every ID-capable provider for the canonical ID, folds the
// answers into one record and writes it through. Returns (nil, nil) when no
// provider knows the ID.
func (s *Service) fastPath(ctx context.Context, media models.Media) (*models.Record, error) {
	settings, err := s.cfg.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	results := fanout.FetchByID(ctx, s.registry.ForType(media.Type), media.ID, settings.Mapping)

	var pairs []resolve.Pair
	for _, res := range eachIDResult(results) {
		if res.Err != nil || res.Record == nil {
			continue
		}
		for _, connector := range res.Record.Connectors {
			pairs = append(pairs, resolve.Pair{Media: media, Connector: connector})
		}
	}
	merged := resolve.Merge(pairs)
	if len(merged) == 0 {
		return nil, nil
	}

	if err := s.store.Insert(ctx, merged, media.Type); err != nil {
		return nil, err
	}
	return &merged[0], nil
}

// Seasonal bucket selectors. Each fetches the bucket from the metadata
// service and resolves every entry through the store / fast path / fan-out
// pipeline.

func (s *Service) GetTrending(ctx context.Context, mediaType models.MediaType) ([]models.Record, error) {
	return s.seasonal(ctx, mediaType, func(sn *models.Seasonal) []models.Media { return sn.Trending })
}

func (s *Service) GetSeason(ctx context.Context, mediaType models.MediaType) ([]models.Record, error) {
	return s.seasonal(ctx, mediaType, func(sn *models.Seasonal) []models.Media { return sn.Season })
}

func (s *Service) GetPopular(ctx context.Context, mediaType models.MediaType) ([]models.Record, error) {
	return s.seasonal(ctx, mediaType, func(sn *models.Seasonal) []models.Media { return sn.Popular })
}

func (s *Service) GetTop(ctx context.Context, mediaType models.MediaType) ([]models.Record, error) {
	return s.seasonal(ctx, mediaType, func(sn *models.Seasonal) []models.Media { return sn.Top })
}

func (s *Service) GetNextSeason(ctx context.Context, mediaType models.MediaType) ([]models.Record, error) {
	return s.seasonal(ctx, mediaType, func(sn *models.Seasonal) []models.Media { return sn.NextSeason })
}

func (s *Service) seasonal(ctx context.Context, mediaType models.MediaType, bucket func(*models.Seasonal) []models.Media) ([]models.Record, error) {
	if !mediaType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, mediaType)
	}
	data, err := s.metadata.GetSeasonal(ctx, 0, 10, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCanonicalLookup, err)
	}
	return s.resolveList(ctx, bucket(data), mediaType)
}

// resolveList resolves a list of canonical entries one at a time: stored
// records first, then the provider fast path, then a metadata-first fan-out
// scoped to the single entry.
func (s *Service) resolveList(ctx context.Context, list []models.Media, mediaType models.MediaType) ([]models.Record, error) {
	settings, err := s.cfg.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	var out []models.Record
	for _, media := range list {
		stored, err := s.store.Get(ctx, media.ID, mediaType)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			out = append(out, *stored)
			continue
		}

		if record, err := s.fastPath(ctx, media); err != nil {
			return nil, err
		} else if record != nil {
			out = append(out, *record)
			continue
		}

		results := fanout.Fetch(ctx, s.registry.ForType(mediaType), media.Title.Preferred(), settings.Mapping)
		records := resolve.Merge(resolve.ByFields(results, []models.Media{media}, settings.Mapping))
		if len(records) == 0 {
			continue
		}
		if err := s.store.Insert(ctx, records, mediaType); err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// Crawl walks every canonical ID of a catalog sequentially, resolving and
// persisting the ones not stored yet. Per-ID failures are logged and skipped;
// only enumeration failure aborts the crawl. Items are spaced by the
// configured crawl delay to keep the outbound request rate stable.
func (s *Service) Crawl(ctx context.Context, mediaType models.MediaType) error {
	if !mediaType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, mediaType)
	}

	settings, err := s.cfg.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	ids, err := s.metadata.GetAllIDs(ctx, mediaType)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCanonicalLookup, err)
	}

	maxIDs := settings.Crawl.MaxIDs
	if maxIDs <= 0 || maxIDs > len(ids) {
		maxIDs = len(ids)
	}
	wait := time.Duration(settings.Crawl.WaitMs) * time.Millisecond

	runID := uuid.NewString()
	log.Printf("[crawl %s] starting %s crawl over %d id(s)", runID, mediaType, maxIDs)

	for i := 0; i < maxIDs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := ids[i]

		stored, err := s.store.Get(ctx, id, mediaType)
		if err != nil {
			return err
		}
		if stored != nil {
			continue
		}

		start := time.Now()
		record, err := s.Get(ctx, id)
		if err != nil {
			log.Printf("[crawl %s] id %s failed: %v", runID, id, err)
		} else if record != nil {
			log.Printf("[crawl %s] resolved id %s (%d/%d) in %s", runID, id, i+1, maxIDs, time.Since(start).Round(time.Millisecond))
		}

		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	log.Printf("[crawl %s] finished", runID)
	return nil
}

// Export dumps a catalog to a JSON file and returns its path.
func (s *Service) Export(ctx context.Context, mediaType models.MediaType) (string, error) {
	if !mediaType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, mediaType)
	}
	return s.store.Export(ctx, mediaType)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// eachIDResult yields fast-path results in deterministic provider order.
func eachIDResult(results map[string]fanout.IDResult) []fanout.IDResult {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]fanout.IDResult, 0, len(names))
	for _, name := range names {
		out = append(out, results[name])
	}
	return out
}
