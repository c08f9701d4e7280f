package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"anisync/models"
	syncpkg "anisync/services/sync"
)

type catalogService interface {
	Search(ctx context.Context, query string, t models.MediaType) ([]models.Record, error)
	Get(ctx context.Context, id string) (*models.Record, error)
	GetTrending(ctx context.Context, t models.MediaType) ([]models.Record, error)
	GetSeason(ctx context.Context, t models.MediaType) ([]models.Record, error)
	GetPopular(ctx context.Context, t models.MediaType) ([]models.Record, error)
	GetTop(ctx context.Context, t models.MediaType) ([]models.Record, error)
	GetNextSeason(ctx context.Context, t models.MediaType) ([]models.Record, error)
	Crawl(ctx context.Context, t models.MediaType) error
	Export(ctx context.Context, t models.MediaType) (string, error)
}

var _ catalogService = (*syncpkg.Service)(nil)

type CatalogHandler struct {
	Service catalogService

	crawlMu  sync.Mutex
	crawling map[models.MediaType]bool
}

func NewCatalogHandler(s catalogService) *CatalogHandler {
	return &CatalogHandler{Service: s, crawling: map[models.MediaType]bool{}}
}

// mediaTypeFromRequest reads the "type" query parameter, defaulting to anime.
func mediaTypeFromRequest(r *http.Request) models.MediaType {
	raw := strings.TrimSpace(r.URL.Query().Get("type"))
	if raw == "" {
		return models.TypeAnime
	}
	return models.MediaType(strings.ToUpper(raw))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, syncpkg.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, syncpkg.ErrCanonicalLookup):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter is required"})
		return
	}
	mediaType := mediaTypeFromRequest(r)

	records, err := h.Service.Search(r.Context(), query, mediaType)
	if err != nil {
		log.Printf("[handlers] search %q (%s) failed: %v", query, mediaType, err)
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *CatalogHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.Service.Get(r.Context(), id)
	if err != nil {
		log.Printf("[handlers] get %s failed: %v", id, err)
		writeError(w, statusFor(err), err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "media not found"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *CatalogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	h.seasonal(w, r, h.Service.GetTrending)
}

func (h *CatalogHandler) Season(w http.ResponseWriter, r *http.Request) {
	h.seasonal(w, r, h.Service.GetSeason)
}

func (h *CatalogHandler) Popular(w http.ResponseWriter, r *http.Request) {
	h.seasonal(w, r, h.Service.GetPopular)
}

func (h *CatalogHandler) Top(w http.ResponseWriter, r *http.Request) {
	h.seasonal(w, r, h.Service.GetTop)
}

func (h *CatalogHandler) NextSeason(w http.ResponseWriter, r *http.Request) {
	h.seasonal(w, r, h.Service.GetNextSeason)
}

func (h *CatalogHandler) seasonal(w http.ResponseWriter, r *http.Request, fetch func(context.Context, models.MediaType) ([]models.Record, error)) {
	mediaType := mediaTypeFromRequest(r)

	records, err := fetch(r.Context(), mediaType)
	if err != nil {
		log.Printf("[handlers] seasonal fetch (%s) failed: %v", mediaType, err)
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// StartCrawl kicks off a catalog crawl in the background. Only one crawl per
// catalog runs at a time.
func (h *CatalogHandler) StartCrawl(w http.ResponseWriter, r *http.Request) {
	mediaType := mediaTypeFromRequest(r)
	if !mediaType.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid media type"})
		return
	}

	h.crawlMu.Lock()
	if h.crawling[mediaType] {
		h.crawlMu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "crawl already running"})
		return
	}
	h.crawling[mediaType] = true
	h.crawlMu.Unlock()

	go func() {
		defer func() {
			h.crawlMu.Lock()
			delete(h.crawling, mediaType)
			h.crawlMu.Unlock()
		}()
		if err := h.Service.Crawl(context.Background(), mediaType); err != nil {
			log.Printf("[handlers] %s crawl failed: %v", mediaType, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "crawl started", "type": string(mediaType)})
}

func (h *CatalogHandler) Export(w http.ResponseWriter, r *http.Request) {
	mediaType := mediaTypeFromRequest(r)

	path, err := h.Service.Export(r.Context(), mediaType)
	if err != nil {
		log.Printf("[handlers] %s export failed: %v", mediaType, err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}
