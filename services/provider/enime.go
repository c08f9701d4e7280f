package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"anisync/models"
)

const enimeDefaultBaseURL = "https://api.enime.moe"

// EnimeAdapter searches the Enime catalog. Enime keeps its own AniList ID
// index, so it also implements the Getter fast path.
type EnimeAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewEnimeAdapter constructs the adapter with sane defaults.
func NewEnimeAdapter(client *http.Client) *EnimeAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &EnimeAdapter{baseURL: enimeDefaultBaseURL, httpClient: client}
}

func (e *EnimeAdapter) Name() string { return "enime" }

func (e *EnimeAdapter) MediaType() models.MediaType { return models.TypeAnime }

type enimeEntry struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title struct {
		English string `json:"english"`
		Romaji  string `json:"romaji"`
		Native  string `json:"native"`
	} `json:"title"`
	CoverImage string `json:"coverImage"`
}

func (e *EnimeAdapter) Search(ctx context.Context, query string) ([]models.ProviderResult, error) {
	endpoint := fmt.Sprintf("%s/search/%s?page=0&perPage=18", e.baseURL, url.PathEscape(query))

	var payload struct {
		Data []enimeEntry `json:"data"`
	}
	if err := getJSON(ctx, e.httpClient, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("enime search: %w", err)
	}

	results := make([]models.ProviderResult, 0, len(payload.Data))
	for _, item := range payload.Data {
		title := item.Title.English
		if title == "" {
			title = item.Title.Romaji
		}
		if title == "" {
			title = item.Title.Native
		}
		results = append(results, models.ProviderResult{
			Provider:   e.Name(),
			SourceID:   item.ID,
			Title:      title,
			Romaji:     item.Title.Romaji,
			Native:     item.Title.Native,
			CoverImage: item.CoverImage,
		})
	}
	return results, nil
}

// GetByID resolves an AniList ID through Enime's mapping endpoint. Returns
// (nil, nil) when Enime has no mapping for the ID.
func (e *EnimeAdapter) GetByID(ctx context.Context, id string) (*models.Record, error) {
	endpoint := fmt.Sprintf("%s/mapping/anilist/%s", e.baseURL, url.PathEscape(id))

	var entry enimeEntry
	if err := getJSON(ctx, e.httpClient, endpoint, &entry); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("enime mapping: %w", err)
	}
	if entry.ID == "" {
		return nil, nil
	}

	return &models.Record{
		ID: id,
		Media: models.Media{
			ID:   id,
			Type: models.TypeAnime,
			Title: models.MediaTitle{
				English: entry.Title.English,
				Romaji:  entry.Title.Romaji,
				Native:  entry.Title.Native,
			},
			CoverImage: entry.CoverImage,
		},
		Connectors: []models.Connector{{
			Provider:   e.Name(),
			SourceID:   entry.ID,
			Similarity: models.Similarity{Same: true, Value: 1},
		}},
	}, nil
}

// statusError reports a non-2xx response so callers can distinguish a missing
// entry from a transport failure.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return e.status }

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

// getJSON performs a GET with retry on transient failures and decodes the
// JSON body into v.
func getJSON(ctx context.Context, client *http.Client, endpoint string, v any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &statusError{code: resp.StatusCode, status: fmt.Sprintf("request failed: %s", resp.Status)}
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(&statusError{code: resp.StatusCode, status: fmt.Sprintf("request failed: %s", resp.Status)})
			}
			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// compile-time capability checks
var (
	_ Adapter = (*EnimeAdapter)(nil)
	_ Getter  = (*EnimeAdapter)(nil)
)
