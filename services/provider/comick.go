package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"anisync/models"
)

const comickDefaultBaseURL = "https://api.comick.app"

// ComickAdapter searches the ComicK manga catalog.
type ComickAdapter struct {
	baseURL    string
	httpClient *http.Client
}

// NewComickAdapter constructs the adapter with sane defaults.
func NewComickAdapter(client *http.Client) *ComickAdapter {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ComickAdapter{baseURL: comickDefaultBaseURL, httpClient: client}
}

func (c *ComickAdapter) Name() string { return "comick" }

func (c *ComickAdapter) MediaType() models.MediaType { return models.TypeManga }

func (c *ComickAdapter) Search(ctx context.Context, query string) ([]models.ProviderResult, error) {
	endpoint := fmt.Sprintf("%s/v1.0/search?q=%s&limit=25", c.baseURL, url.QueryEscape(query))

	var payload []struct {
		HID      string `json:"hid"`
		Slug     string `json:"slug"`
		Title    string `json:"title"`
		MDTitles []struct {
			Title string `json:"title"`
			Lang  string `json:"lang"`
		} `json:"md_titles"`
		CoverURL string `json:"cover_url"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("comick search: %w", err)
	}

	results := make([]models.ProviderResult, 0, len(payload))
	for _, item := range payload {
		result := models.ProviderResult{
			Provider:   c.Name(),
			SourceID:   "/comic/" + item.Slug,
			Title:      item.Title,
			CoverImage: item.CoverURL,
		}
		for _, alt := range item.MDTitles {
			switch alt.Lang {
			case "ja-ro":
				if result.Romaji == "" {
					result.Romaji = alt.Title
				}
			case "ja":
				if result.Native == "" {
					result.Native = alt.Title
				}
			}
		}
		results = append(results, result)
	}
	return results, nil
}

var _ Adapter = (*ComickAdapter)(nil)
