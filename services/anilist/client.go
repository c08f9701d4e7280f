// Package anilist implements the canonical metadata service client backed by
// the AniList GraphQL API.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"anisync/models"
)

const anilistGraphQLURL = "https://graphql.anilist.co"

const mediaFields = `
id
type
format
synonyms
title {
	userPreferred
	romaji
	english
	native
}
coverImage {
	large
}`

// Client talks to the AniList GraphQL endpoint. AniList rate limits
// aggressively, so requests are spaced by a minimum interval and retried with
// backoff on 429/5xx.
type Client struct {
	endpoint string
	httpc    *http.Client

	throttleMu  sync.Mutex
	nextRequest time.Time
	minInterval time.Duration
}

// NewClient constructs a client with sane defaults.
func NewClient(httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		endpoint:    anilistGraphQLURL,
		httpc:       httpc,
		minInterval: 700 * time.Millisecond,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlMedia struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	Format   string   `json:"format"`
	Synonyms []string `json:"synonyms"`
	Title    struct {
		UserPreferred string `json:"userPreferred"`
		Romaji        string `json:"romaji"`
		English       string `json:"english"`
		Native        string `json:"native"`
	} `json:"title"`
	CoverImage struct {
		Large string `json:"large"`
	} `json:"coverImage"`
}

func (m gqlMedia) toModel() models.Media {
	return models.Media{
		ID:     strconv.Itoa(m.ID),
		Type:   models.MediaType(m.Type),
		Format: models.Format(m.Format),
		Title: models.MediaTitle{
			UserPreferred: m.Title.UserPreferred,
			Romaji:        m.Title.Romaji,
			English:       m.Title.English,
			Native:        m.Title.Native,
		},
		Synonyms:   m.Synonyms,
		CoverImage: m.CoverImage.Large,
	}
}

// throttle claims the next request slot and waits until it opens. The mutex
// only guards the slot bookkeeping, never the wait itself, so concurrent
// callers queue up without blocking each other's cancellation.
func (c *Client) throttle(ctx context.Context) error {
	c.throttleMu.Lock()
	slot := c.nextRequest
	if now := time.Now(); slot.Before(now) {
		slot = now
	}
	c.nextRequest = slot.Add(c.minInterval)
	c.throttleMu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do posts one GraphQL query and decodes data into out.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	return retry.Do(
		func() error {
			if err := c.throttle(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return fmt.Errorf("anilist request failed: %s", resp.Status)
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(fmt.Errorf("anilist request failed: %s", resp.Status))
			}

			var envelope struct {
				Data   json.RawMessage `json:"data"`
				Errors []struct {
					Message string `json:"message"`
				} `json:"errors"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode anilist response: %w", err))
			}
			if len(envelope.Errors) > 0 {
				return retry.Unrecoverable(fmt.Errorf("anilist error: %s", envelope.Errors[0].Message))
			}
			if len(envelope.Data) == 0 {
				return retry.Unrecoverable(fmt.Errorf("anilist: empty response body"))
			}
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode anilist data: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// Search returns canonical entries matching the query, in AniList's search
// relevance order. That order is load-bearing downstream: first-match-wins
// candidate selection depends on it.
func (c *Client) Search(ctx context.Context, query string, mediaType models.MediaType) ([]models.Media, error) {
	gql := fmt.Sprintf(`query ($query: String, $type: MediaType, $page: Int, $perPage: Int) {
		Page(page: $page, perPage: $perPage) {
			media(search: $query, type: $type) {%s}
		}
	}`, mediaFields)

	var data struct {
		Page struct {
			Media []gqlMedia `json:"media"`
		} `json:"Page"`
	}
	err := c.do(ctx, gql, map[string]any{
		"query": query, "type": string(mediaType), "page": 0, "perPage": 10,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("anilist search %q: %w", query, err)
	}

	out := make([]models.Media, 0, len(data.Page.Media))
	for _, m := range data.Page.Media {
		out = append(out, m.toModel())
	}
	return out, nil
}

// GetMedia fetches one canonical entry by ID. Returns (nil, nil) when the ID
// does not exist.
func (c *Client) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	numeric, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("anilist media id %q: %w", id, err)
	}

	gql := fmt.Sprintf(`query ($id: Int) {
		Media(id: $id) {%s}
	}`, mediaFields)

	var data struct {
		Media *gqlMedia `json:"Media"`
	}
	if err := c.do(ctx, gql, map[string]any{"id": numeric}, &data); err != nil {
		return nil, fmt.Errorf("anilist media %s: %w", id, err)
	}
	if data.Media == nil || data.Media.ID == 0 {
		return nil, nil
	}
	media := data.Media.toModel()
	return &media, nil
}

// GetSeasonal fetches the five seasonal buckets in one query.
func (c *Client) GetSeasonal(ctx context.Context, page, perPage int, mediaType models.MediaType) (*models.Seasonal, error) {
	if perPage <= 0 {
		perPage = 10
	}
	season, year := currentSeason(time.Now())
	next, nextYear := nextSeason(time.Now())

	gql := fmt.Sprintf(`query ($page: Int, $perPage: Int, $type: MediaType, $season: MediaSeason, $seasonYear: Int, $nextSeason: MediaSeason, $nextYear: Int) {
		trending: Page(page: $page, perPage: $perPage) {
			media(sort: TRENDING_DESC, type: $type) {%[1]s}
		}
		season: Page(page: $page, perPage: $perPage) {
			media(season: $season, seasonYear: $seasonYear, sort: POPULARITY_DESC, type: $type) {%[1]s}
		}
		nextSeason: Page(page: $page, perPage: $perPage) {
			media(season: $nextSeason, seasonYear: $nextYear, sort: POPULARITY_DESC, type: $type) {%[1]s}
		}
		popular: Page(page: $page, perPage: $perPage) {
			media(sort: POPULARITY_DESC, type: $type) {%[1]s}
		}
		top: Page(page: $page, perPage: $perPage) {
			media(sort: SCORE_DESC, type: $type) {%[1]s}
		}
	}`, mediaFields)

	var data struct {
		Trending   struct{ Media []gqlMedia } `json:"trending"`
		Season     struct{ Media []gqlMedia } `json:"season"`
		NextSeason struct{ Media []gqlMedia } `json:"nextSeason"`
		Popular    struct{ Media []gqlMedia } `json:"popular"`
		Top        struct{ Media []gqlMedia } `json:"top"`
	}
	err := c.do(ctx, gql, map[string]any{
		"page": page, "perPage": perPage, "type": string(mediaType),
		"season": season, "seasonYear": year,
		"nextSeason": next, "nextYear": nextYear,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("anilist seasonal: %w", err)
	}

	return &models.Seasonal{
		Trending:   toModels(data.Trending.Media),
		Season:     toModels(data.Season.Media),
		NextSeason: toModels(data.NextSeason.Media),
		Popular:    toModels(data.Popular.Media),
		Top:        toModels(data.Top.Media),
	}, nil
}

// GetAllIDs pages through the catalog collecting every media ID, for crawl
// enumeration.
func (c *Client) GetAllIDs(ctx context.Context, mediaType models.MediaType) ([]string, error) {
	gql := `query ($page: Int, $type: MediaType) {
		Page(page: $page, perPage: 50) {
			pageInfo {
				hasNextPage
			}
			media(type: $type, sort: ID) {
				id
			}
		}
	}`

	var ids []string
	for page := 0; ; page++ {
		var data struct {
			Page struct {
				PageInfo struct {
					HasNextPage bool `json:"hasNextPage"`
				} `json:"pageInfo"`
				Media []struct {
					ID int `json:"id"`
				} `json:"media"`
			} `json:"Page"`
		}
		err := c.do(ctx, gql, map[string]any{"page": page, "type": string(mediaType)}, &data)
		if err != nil {
			return nil, fmt.Errorf("anilist ids page %d: %w", page, err)
		}
		for _, m := range data.Page.Media {
			ids = append(ids, strconv.Itoa(m.ID))
		}
		if !data.Page.PageInfo.HasNextPage {
			return ids, nil
		}
	}
}

func toModels(in []gqlMedia) []models.Media {
	out := make([]models.Media, 0, len(in))
	for _, m := range in {
		out = append(out, m.toModel())
	}
	return out
}

func currentSeason(now time.Time) (string, int) {
	switch now.Month() {
	case time.January, time.February, time.March:
		return "WINTER", now.Year()
	case time.April, time.May, time.June:
		return "SPRING", now.Year()
	case time.July, time.August, time.September:
		return "SUMMER", now.Year()
	default:
		return "FALL", now.Year()
	}
}

func nextSeason(now time.Time) (string, int) {
	switch now.Month() {
	case time.January, time.February, time.March:
		return "SPRING", now.Year()
	case time.April, time.May, time.June:
		return "SUMMER", now.Year()
	case time.July, time.August, time.September:
		return "FALL", now.Year()
	default:
		return "WINTER", now.Year() + 1
	}
}
