package handlers

import (
	"log/slog"
	"net/http"

	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
)

// ModelsHandler serves the model list of the active provider family.
type ModelsHandler struct {
	registry *providers.Registry
	logger   *slog.Logger
}

func NewModelsHandler(registry *providers.Registry, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		registry: registry,
		logger:   logger,
	}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.registry.Active()
	models, owner := cfg.ModelList()
	created := gateway.Now()

	list := gateway.ModelList{
		Object: gateway.ObjectList,
		Data:   make([]gateway.ModelInfo, 0, len(models)),
	}
	for _, id := range models {
		list.Data = append(list.Data, gateway.ModelInfo{
			ID:      id,
			Object:  gateway.ObjectModel,
			Created: created,
			OwnedBy: owner,
		})
	}

	writeJSON(w, h.logger, http.StatusOK, list)
}
