package handler

import (
	"io"
	"net/http"

	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/middleware"
	"github.com/wolfpackcloud/robot-gateway/internal/service"
)

type MetricsHandler struct {
	metricsService *service.MetricsService
}

func NewMetricsHandler(metricsService *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

// POST /api/metrics
// Accepts line-protocol telemetry authenticated by the robot's ingest token
// and proxies it to the time-series sink. 204 on success.
func (h *MetricsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractBearerToken(r)
	if token == "" {
		writeError(w, apperrors.Unauthorized("Expected Authorization: Bearer {token}"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.InvalidPayload("Failed to read request body"))
		return
	}

	if err := h.metricsService.Ingest(r.Context(), token, body, r.Header.Get("Content-Encoding")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
