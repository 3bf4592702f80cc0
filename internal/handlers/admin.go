package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chuanqi87/agent/internal/agent"
	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
)

// AdminHandler exposes the runtime control surface: inspecting and
// switching the active provider, and managing conversation memory.
type AdminHandler struct {
	registry *providers.Registry
	memory   *agent.Memory
	logger   *slog.Logger
}

func NewAdminHandler(registry *providers.Registry, memory *agent.Memory, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		memory:   memory,
		logger:   logger,
	}
}

type switchRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
}

type currentModelResponse struct {
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	BaseURL  string            `json:"base_url"`
	Memory   agent.MemoryStats `json:"memory"`
}

// CurrentModel handles GET /v1/model/current.
func (h *AdminHandler) CurrentModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := h.registry.Active()

	writeJSON(w, h.logger, http.StatusOK, currentModelResponse{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		Memory:   h.memory.Stats(),
	})
}

// SwitchModel handles POST /v1/model/switch. The switch installs a new
// provider snapshot; in-flight requests finish on the old one.
func (h *AdminHandler) SwitchModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req switchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, gateway.NewValidationError("request body is not valid JSON: %v", err))
		return
	}

	if req.Provider == "" {
		writeError(w, h.logger, gateway.NewValidationError("provider is required"))
		return
	}

	cfg, err := h.registry.Switch(req.Provider, req.APIKey, req.Model)
	if err != nil {
		writeJSON(w, h.logger, http.StatusInternalServerError, gateway.ErrorEnvelope{
			Error: gateway.ErrorDetail{
				Message: err.Error(),
				Type:    "api_error",
			},
		})
		return
	}

	h.logger.Info("provider switched", "provider", cfg.Provider, "model", cfg.Model)

	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})
}

// MemoryStats handles GET /memory/stats.
func (h *AdminHandler) MemoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, h.memory.Stats())
}

// ClearMemory handles POST /memory/clear. An optional session field
// clears one session; otherwise everything goes.
func (h *AdminHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Session string `json:"session,omitempty"`
	}
	// An empty or absent body means clear-all.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Session != "" {
		h.memory.Clear(req.Session)
	} else {
		h.memory.ClearAll()
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}
