package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"anisync/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	catalogHandler *handlers.CatalogHandler,
	settingsHandler *handlers.SettingsHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	api.HandleFunc("/search", catalogHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/search", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/media/{id}", catalogHandler.GetMedia).Methods(http.MethodGet)
	api.HandleFunc("/media/{id}", handleOptions).Methods(http.MethodOptions)

	// Seasonal shelves
	api.HandleFunc("/trending", catalogHandler.Trending).Methods(http.MethodGet)
	api.HandleFunc("/trending", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/season", catalogHandler.Season).Methods(http.MethodGet)
	api.HandleFunc("/season", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/popular", catalogHandler.Popular).Methods(http.MethodGet)
	api.HandleFunc("/popular", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/top", catalogHandler.Top).Methods(http.MethodGet)
	api.HandleFunc("/top", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/nextseason", catalogHandler.NextSeason).Methods(http.MethodGet)
	api.HandleFunc("/nextseason", handleOptions).Methods(http.MethodOptions)

	// Catalog maintenance
	api.HandleFunc("/crawl", catalogHandler.StartCrawl).Methods(http.MethodPost)
	api.HandleFunc("/crawl", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/export", catalogHandler.Export).Methods(http.MethodPost)
	api.HandleFunc("/export", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings", handleOptions).Methods(http.MethodOptions)
}
