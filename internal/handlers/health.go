package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chuanqi87/agent/internal/providers"
)

type HealthHandler struct {
	registry *providers.Registry
	logger   *slog.Logger
}

func NewHealthHandler(registry *providers.Registry, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		registry: registry,
		logger:   logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.registry.Active()

	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})
}
