package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"anisync/config"
)

type SettingsHandler struct {
	Manager *config.Manager
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if s.Mapping.Threshold < 0 || s.Mapping.Threshold > 1 ||
		s.Mapping.ComparisonThreshold < 0 || s.Mapping.ComparisonThreshold > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "thresholds must be between 0 and 1"})
		return
	}

	if err := h.Manager.Save(s); err != nil {
		log.Printf("[handlers] saving settings failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
