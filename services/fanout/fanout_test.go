package fanout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anisync/config"
	"anisync/models"
	"anisync/services/provider"
)

type fakeAdapter struct {
	name    string
	mtype   models.MediaType
	results []models.ProviderResult
	err     error
	delay   time.Duration
}

func (f *fakeAdapter) Name() string                { return f.name }
func (f *fakeAdapter) MediaType() models.MediaType { return f.mtype }

func (f *fakeAdapter) Search(ctx context.Context, query string) ([]models.ProviderResult, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.results, f.err
}

type fakeGetter struct {
	fakeAdapter
	record *models.Record
	getErr error
}

func (f *fakeGetter) GetByID(ctx context.Context, id string) (*models.Record, error) {
	return f.record, f.getErr
}

func TestFetchIsolatesFailures(t *testing.T) {
	good := &fakeAdapter{name: "zoro", mtype: models.TypeAnime, results: []models.ProviderResult{
		{Provider: "zoro", SourceID: "/naruto", Title: "Naruto"},
	}}
	bad := &fakeAdapter{name: "gogoanime", mtype: models.TypeAnime, err: errors.New("connection refused")}

	out := Fetch(context.Background(), []provider.Adapter{good, bad}, "naruto", config.MappingSettings{})

	require.Len(t, out, 2)
	require.NoError(t, out["zoro"].Err)
	require.Len(t, out["zoro"].Results, 1)
	require.Error(t, out["gogoanime"].Err)
	require.Empty(t, out["gogoanime"].Results)
}

func TestFetchReportsEverySlotOnce(t *testing.T) {
	adapters := []provider.Adapter{
		&fakeAdapter{name: "a", results: []models.ProviderResult{{Provider: "a", SourceID: "1"}}},
		&fakeAdapter{name: "b", results: []models.ProviderResult{{Provider: "b", SourceID: "2"}}},
		&fakeAdapter{name: "c", err: errors.New("parse error")},
	}

	out := Fetch(context.Background(), adapters, "query", config.MappingSettings{})
	require.Len(t, out, 3)
	for _, name := range []string{"a", "b", "c"} {
		res, ok := out[name]
		require.True(t, ok, "missing slot for %s", name)
		require.Equal(t, name, res.Provider)
	}
}

func TestFetchPerProviderTimeout(t *testing.T) {
	slow := &fakeAdapter{name: "slow", delay: 500 * time.Millisecond}
	fast := &fakeAdapter{name: "fast", results: []models.ProviderResult{{Provider: "fast", SourceID: "1"}}}

	mapping := config.MappingSettings{
		Provider: map[string]config.ProviderSettings{
			"slow": {TimeoutMs: 20},
		},
	}

	out := Fetch(context.Background(), []provider.Adapter{slow, fast}, "query", mapping)

	require.ErrorIs(t, out["slow"].Err, context.DeadlineExceeded)
	require.NoError(t, out["fast"].Err)
}

func TestFetchHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mapping := config.MappingSettings{WaitMs: 50}
	out := Fetch(ctx, []provider.Adapter{&fakeAdapter{name: "a"}}, "query", mapping)

	require.ErrorIs(t, out["a"].Err, context.Canceled)
}

func TestFetchByIDSkipsIncapableAdapters(t *testing.T) {
	record := &models.Record{ID: "100"}
	getter := &fakeGetter{fakeAdapter: fakeAdapter{name: "enime", mtype: models.TypeAnime}, record: record}
	plain := &fakeAdapter{name: "zoro", mtype: models.TypeAnime}

	out := FetchByID(context.Background(), []provider.Adapter{getter, plain}, "100", config.MappingSettings{})

	require.Len(t, out, 1)
	require.Equal(t, record, out["enime"].Record)
}

func TestErrorsJoinsProviderFailures(t *testing.T) {
	results := map[string]Result{
		"a": {Provider: "a"},
		"b": {Provider: "b", Err: errors.New("timeout")},
		"c": {Provider: "c", Err: errors.New("parse error")},
	}

	err := Errors(results)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout")
	require.Contains(t, err.Error(), "parse error")

	require.NoError(t, Errors(map[string]Result{"a": {Provider: "a"}}))
}

func TestFetchByIDReportsErrors(t *testing.T) {
	getter := &fakeGetter{fakeAdapter: fakeAdapter{name: "enime"}, getErr: errors.New("boom")}

	out := FetchByID(context.Background(), []provider.Adapter{getter}, "100", config.MappingSettings{})

	require.Error(t, out["enime"].Err)
	require.Nil(t, out["enime"].Record)
}
