package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anisync/config"
	"anisync/models"
	"anisync/services/provider"
)

type fakeMetadata struct {
	media       map[string]models.Media
	seasonal    *models.Seasonal
	ids         []string
	searchErr   error
	searchCalls int
}

func (f *fakeMetadata) Search(ctx context.Context, query string, t models.MediaType) ([]models.Media, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []models.Media
	for _, m := range f.media {
		if m.Type != t {
			continue
		}
		if strings.Contains(strings.ToLower(m.Title.Preferred()), strings.ToLower(query)) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMetadata) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	m, ok := f.media[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeMetadata) GetSeasonal(ctx context.Context, page, perPage int, t models.MediaType) (*models.Seasonal, error) {
	if f.seasonal == nil {
		return &models.Seasonal{}, nil
	}
	return f.seasonal, nil
}

func (f *fakeMetadata) GetAllIDs(ctx context.Context, t models.MediaType) ([]string, error) {
	return f.ids, nil
}

type fakeStore struct {
	records map[models.MediaType]map[string]models.Record
	inserts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[models.MediaType]map[string]models.Record{
		models.TypeAnime: {},
		models.TypeManga: {},
	}}
}

func (f *fakeStore) Get(ctx context.Context, id string, t models.MediaType) (*models.Record, error) {
	rec, ok := f.records[t][id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeStore) Search(ctx context.Context, query string, t models.MediaType) ([]models.Record, error) {
	var out []models.Record
	for _, rec := range f.records[t] {
		if strings.Contains(strings.ToLower(rec.Media.Title.Preferred()), strings.ToLower(query)) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeStore) Insert(ctx context.Context, records []models.Record, t models.MediaType) error {
	f.inserts++
	for _, rec := range records {
		if len(rec.Connectors) == 0 {
			return fmt.Errorf("record has no connectors: id %s", rec.ID)
		}
		if _, exists := f.records[t][rec.ID]; exists {
			continue
		}
		f.records[t][rec.ID] = rec
	}
	return nil
}

func (f *fakeStore) Export(ctx context.Context, t models.MediaType) (string, error) {
	return "exports/" + strings.ToLower(string(t)) + ".json", nil
}

type fakeAdapter struct {
	name    string
	mtype   models.MediaType
	results []models.ProviderResult
	err     error
}

func (f *fakeAdapter) Name() string                { return f.name }
func (f *fakeAdapter) MediaType() models.MediaType { return f.mtype }
func (f *fakeAdapter) Search(ctx context.Context, query string) ([]models.ProviderResult, error) {
	return f.results, f.err
}

type fakeGetter struct {
	fakeAdapter
	record *models.Record
}

func (f *fakeGetter) GetByID(ctx context.Context, id string) (*models.Record, error) {
	return f.record, nil
}

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	return config.NewManager(filepath.Join(t.TempDir(), "settings.json"))
}

func naruto() models.Media {
	return models.Media{
		ID:   "100",
		Type: models.TypeAnime,
		Title: models.MediaTitle{
			UserPreferred: "Naruto",
			Romaji:        "NARUTO",
			English:       "Naruto",
			Native:        "ナルト",
		},
	}
}

func TestSearchResolvesAcrossProviders(t *testing.T) {
	meta := &fakeMetadata{media: map[string]models.Media{"100": naruto()}}
	store := newFakeStore()
	registry := provider.NewRegistry(
		&fakeAdapter{name: "zoro", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "zoro", SourceID: "/naruto", Title: "Naruto", Romaji: "NARUTO"},
		}},
		&fakeAdapter{name: "gogoanime", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "gogoanime", SourceID: "/naruto-tv", Title: "Naruto"},
		}},
	)
	svc := NewService(testManager(t), meta, store, registry)

	records, err := svc.Search(context.Background(), "naruto", models.TypeAnime)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "100", records[0].ID)
	require.Len(t, records[0].Connectors, 2)

	sources := []string{records[0].Connectors[0].SourceID, records[0].Connectors[1].SourceID}
	assert.ElementsMatch(t, []string{"/naruto", "/naruto-tv"}, sources)

	// write-through
	stored, err := store.Get(context.Background(), "100", models.TypeAnime)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

// Each pass can match the same canonical ID through a different provider
// result. The reconciled record then carries no shared connector and must
// be dropped instead of failing the search at the store.
func TestSearchDropsRecordsWhenPassesDisagreeOnConnectors(t *testing.T) {
	media := models.Media{
		ID:   "100",
		Type: models.TypeAnime,
		Title: models.MediaTitle{
			UserPreferred: "Naruto",
			Romaji:        "NARUTO",
		},
	}
	meta := &fakeMetadata{media: map[string]models.Media{"100": media}}
	store := newFakeStore()
	registry := provider.NewRegistry(
		// Romaji lines up, so only the field pass pairs this result. Its
		// title finds no canonical candidates for the title pass.
		&fakeAdapter{name: "zoro", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "zoro", SourceID: "/nrt", Title: "NRT", Romaji: "NARUTO"},
		}},
		// Romaji diverges, so the field pass skips this result. Its title
		// is an exact hit for the title pass.
		&fakeAdapter{name: "gogoanime", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "gogoanime", SourceID: "/naruto", Title: "Naruto", Romaji: "Different Series Entirely"},
		}},
	)
	svc := NewService(testManager(t), meta, store, registry)

	records, err := svc.Search(context.Background(), "naruto", models.TypeAnime)
	require.NoError(t, err)
	assert.Empty(t, records)

	stored, err := store.Get(context.Background(), "100", models.TypeAnime)
	require.NoError(t, err)
	assert.Nil(t, stored, "connector-less record must not be persisted")
}

func TestSearchPrefersStoredRecords(t *testing.T) {
	meta := &fakeMetadata{media: map[string]models.Media{"100": naruto()}}
	store := newFakeStore()
	store.records[models.TypeAnime]["100"] = models.Record{
		ID:         "100",
		Media:      naruto(),
		Connectors: []models.Connector{{Provider: "zoro", SourceID: "/naruto"}},
	}
	svc := NewService(testManager(t), meta, store, provider.NewRegistry())

	records, err := svc.Search(context.Background(), "naruto", models.TypeAnime)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, meta.searchCalls, "stored hit must not reach the metadata service")
}

func TestSearchProviderFailureIsNotFatal(t *testing.T) {
	meta := &fakeMetadata{media: map[string]models.Media{"100": naruto()}}
	registry := provider.NewRegistry(
		&fakeAdapter{name: "zoro", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "zoro", SourceID: "/naruto", Title: "Naruto"},
		}},
		&fakeAdapter{name: "gogoanime", mtype: models.TypeAnime, err: errors.New("connection reset")},
	)
	svc := NewService(testManager(t), meta, newFakeStore(), registry)

	records, err := svc.Search(context.Background(), "naruto", models.TypeAnime)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Connectors, 1)
}

func TestSearchCanonicalLookupIsFatal(t *testing.T) {
	meta := &fakeMetadata{searchErr: errors.New("service unreachable")}
	svc := NewService(testManager(t), meta, newFakeStore(), provider.NewRegistry())

	_, err := svc.Search(context.Background(), "naruto", models.TypeAnime)
	require.ErrorIs(t, err, ErrCanonicalLookup)
}

func TestSearchRejectsInvalidType(t *testing.T) {
	svc := NewService(testManager(t), &fakeMetadata{}, newFakeStore(), provider.NewRegistry())
	_, err := svc.Search(context.Background(), "naruto", models.MediaType("MOVIE"))
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestGetUsesFastPath(t *testing.T) {
	meta := &fakeMetadata{media: map[string]models.Media{"100": naruto()}}
	store := newFakeStore()
	getter := &fakeGetter{
		fakeAdapter: fakeAdapter{name: "enime", mtype: models.TypeAnime},
		record: &models.Record{
			ID: "100",
			Connectors: []models.Connector{{
				Provider:   "enime",
				SourceID:   "abc123",
				Similarity: models.Similarity{Same: true, Value: 1},
			}},
		},
	}
	svc := NewService(testManager(t), meta, store, provider.NewRegistry(getter))

	record, err := svc.Get(context.Background(), "100")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "100", record.ID)
	require.Len(t, record.Connectors, 1)
	assert.Equal(t, "enime", record.Connectors[0].Provider)
	// fast-path result carries the canonical media
	assert.Equal(t, "Naruto", record.Media.Title.Preferred())

	stored, err := store.Get(context.Background(), "100", models.TypeAnime)
	require.NoError(t, err)
	require.NotNil(t, stored, "fast-path result must be written through")
}

func TestGetUnknownIDReturnsNil(t *testing.T) {
	svc := NewService(testManager(t), &fakeMetadata{media: map[string]models.Media{}}, newFakeStore(), provider.NewRegistry())
	record, err := svc.Get(context.Background(), "404")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestGetTrendingResolvesBucket(t *testing.T) {
	meta := &fakeMetadata{
		media:    map[string]models.Media{"100": naruto()},
		seasonal: &models.Seasonal{Trending: []models.Media{naruto()}},
	}
	registry := provider.NewRegistry(
		&fakeAdapter{name: "zoro", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "zoro", SourceID: "/naruto", Title: "Naruto"},
		}},
	)
	svc := NewService(testManager(t), meta, newFakeStore(), registry)

	records, err := svc.GetTrending(context.Background(), models.TypeAnime)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "100", records[0].ID)
}

func TestCrawlSkipsStoredAndContinuesOnFailure(t *testing.T) {
	manager := testManager(t)
	settings, err := manager.Load()
	require.NoError(t, err)
	settings.Crawl.WaitMs = 1
	require.NoError(t, manager.Save(settings))

	meta := &fakeMetadata{
		media: map[string]models.Media{"100": naruto()},
		ids:   []string{"100", "200"},
	}
	store := newFakeStore()
	store.records[models.TypeAnime]["100"] = models.Record{
		ID:         "100",
		Media:      naruto(),
		Connectors: []models.Connector{{Provider: "zoro", SourceID: "/naruto"}},
	}
	svc := NewService(manager, meta, store, provider.NewRegistry())

	// id 200 is unknown to the metadata service; the crawl must not abort.
	require.NoError(t, svc.Crawl(context.Background(), models.TypeAnime))
}

func TestCrawlHonorsMaxIDs(t *testing.T) {
	manager := testManager(t)
	settings, err := manager.Load()
	require.NoError(t, err)
	settings.Crawl.MaxIDs = 1
	settings.Crawl.WaitMs = 1
	require.NoError(t, manager.Save(settings))

	meta := &fakeMetadata{
		media: map[string]models.Media{"100": naruto()},
		ids:   []string{"100", "200", "300"},
	}
	store := newFakeStore()
	registry := provider.NewRegistry(
		&fakeAdapter{name: "zoro", mtype: models.TypeAnime, results: []models.ProviderResult{
			{Provider: "zoro", SourceID: "/naruto", Title: "Naruto"},
		}},
	)
	svc := NewService(manager, meta, store, registry)

	require.NoError(t, svc.Crawl(context.Background(), models.TypeAnime))

	_, has100 := store.records[models.TypeAnime]["100"]
	assert.True(t, has100)
	_, has200 := store.records[models.TypeAnime]["200"]
	assert.False(t, has200, "crawl must stop after maxIds")
}

func TestExport(t *testing.T) {
	svc := NewService(testManager(t), &fakeMetadata{}, newFakeStore(), provider.NewRegistry())
	path, err := svc.Export(context.Background(), models.TypeManga)
	require.NoError(t, err)
	assert.Equal(t, "exports/manga.json", path)
}
