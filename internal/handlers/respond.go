// Package handlers wires the HTTP surface of the gateway: the chat
// completions facade, the model and memory admin endpoints, and the
// health check.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chuanqi87/agent/internal/gateway"
)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}

// writeError maps an internal error onto the client-visible envelope.
// Upstream failures keep their original status code and body verbatim.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var upstream *gateway.UpstreamError
	if errors.As(err, &upstream) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(upstream.StatusCode)

		if _, werr := w.Write([]byte(upstream.Body)); werr != nil {
			logger.Error("Failed to relay upstream error", "error", werr)
		}
		return
	}

	status := http.StatusInternalServerError

	var (
		validation *gateway.ValidationError
		transport  *gateway.TransportError
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &transport):
		status = http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
	}

	writeJSON(w, logger, status, gateway.ErrorEnvelope{
		Error: gateway.ErrorDetail{
			Message: err.Error(),
			Type:    gateway.ErrorType(err),
		},
	})
}
