package handlers

import (
	"net/http"

	"github.com/queueit/backend/internal/config"
	"github.com/queueit/backend/internal/models"
)

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// PublicConfig returns non-sensitive configuration for the frontend
func (h *ConfigHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	// Only expose public, non-sensitive configuration
	writeJSON(w, http.StatusOK, models.ConfigResponse{
		SpotifyClientID: h.cfg.SpotifyClientID,
		PollIntervalMs:  h.cfg.PollInterval.Milliseconds(),
	})
}
