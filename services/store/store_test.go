package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anisync/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "exports")
	require.NoError(t, err)
	s.SetFs(afero.NewMemMapFs())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func record(id, title string, t models.MediaType) models.Record {
	return models.Record{
		ID: id,
		Media: models.Media{
			ID:    id,
			Type:  t,
			Title: models.MediaTitle{UserPreferred: title},
		},
		Connectors: []models.Connector{{
			Provider:   "zoro",
			SourceID:   "/" + id,
			Similarity: models.Similarity{Same: true, Value: 0.9},
		}},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := record("100", "Naruto", models.TypeAnime)
	require.NoError(t, s.Insert(ctx, []models.Record{rec}, models.TypeAnime))

	got, err := s.Get(ctx, "100", models.TypeAnime)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Media.Title.UserPreferred, got.Media.Title.UserPreferred)
	require.Len(t, got.Connectors, 1)
	assert.Equal(t, 0.9, got.Connectors[0].Similarity.Value)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(context.Background(), "404", models.TypeAnime)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertSkipsExistingID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := record("100", "Naruto", models.TypeAnime)
	require.NoError(t, s.Insert(ctx, []models.Record{first}, models.TypeAnime))

	replacement := record("100", "Something Else", models.TypeAnime)
	require.NoError(t, s.Insert(ctx, []models.Record{replacement}, models.TypeAnime))

	got, err := s.Get(ctx, "100", models.TypeAnime)
	require.NoError(t, err)
	assert.Equal(t, "Naruto", got.Media.Title.UserPreferred)
}

func TestInsertRejectsEmptyConnectors(t *testing.T) {
	s := newTestStore(t)
	rec := models.Record{ID: "1", Media: models.Media{ID: "1"}}
	err := s.Insert(context.Background(), []models.Record{rec}, models.TypeAnime)
	require.ErrorIs(t, err, ErrNoConnectors)
}

func TestTypesAreSeparateTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.Record{record("1", "Berserk", models.TypeManga)}, models.TypeManga))

	got, err := s.Get(ctx, "1", models.TypeAnime)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, "1", models.TypeManga)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestInvalidType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "1", models.MediaType("MOVIE"))
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestSearchByTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.Record{
		record("1", "Naruto", models.TypeAnime),
		record("2", "Naruto Shippuden", models.TypeAnime),
		record("3", "Bleach", models.TypeAnime),
	}, models.TypeAnime))

	got, err := s.Search(ctx, "naruto", models.TypeAnime)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.Search(ctx, "one piece", models.TypeAnime)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.Record{
		record("1", "100% Orange Juice", models.TypeAnime),
		record("2", "Naruto", models.TypeAnime),
	}, models.TypeAnime))

	got, err := s.Search(ctx, "%", models.TypeAnime)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got, err = s.Search(ctx, "100% orange", models.TypeAnime)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Search(ctx, "_aruto", models.TypeAnime)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExportWritesDump(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, []models.Record{record("1", "Naruto", models.TypeAnime)}, models.TypeAnime))

	path, err := s.Export(ctx, models.TypeAnime)
	require.NoError(t, err)

	data, err := afero.ReadFile(s.fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Naruto"`)
}
