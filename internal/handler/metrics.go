package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/httputil"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type MetricsHandler struct {
	metricsService     *service.MetricsService
	interactionService *service.InteractionService
	audit              *audit.Logger
}

func NewMetricsHandler(
	metricsService *service.MetricsService,
	interactionService *service.InteractionService,
	auditLogger *audit.Logger,
) *MetricsHandler {
	return &MetricsHandler{
		metricsService:     metricsService,
		interactionService: interactionService,
		audit:              auditLogger,
	}
}

// GET /metrics/{sessionId}
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	cached, err := h.metricsService.GetMetrics(r.Context(), sessionID)
	if err != nil {
		recordReadFailure(r.Context(), h.audit, fmt.Sprintf("Metrics retrieval failed for %s", sessionID), err)
		writeError(w, err)
		return
	}

	// An absent snapshot is an empty result, not an error.
	if cached == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  httputil.StatusSuccess,
			"metrics": nil,
			"message": "No metrics available",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       httputil.StatusSuccess,
		"metrics":      cached.Data,
		"last_updated": formatTime(&cached.LastUpdated),
	})
}

// GET /interactions/{sessionId}?limit=N
func (h *MetricsHandler) GetInteractions(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	limit, err := ParseLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	interactions, err := h.interactionService.RecentInteractions(r.Context(), sessionID, limit)
	if err != nil {
		recordReadFailure(r.Context(), h.audit, fmt.Sprintf("Interactions retrieval failed for %s", sessionID), err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       httputil.StatusSuccess,
		"interactions": interactions,
		"count":        len(interactions),
	})
}
