package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type IngestHandler struct {
	interactionService *service.InteractionService
}

func NewIngestHandler(interactionService *service.InteractionService) *IngestHandler {
	return &IngestHandler{interactionService: interactionService}
}

func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/interaction", h.IngestInteraction)

	return r
}

// POST /ingest/interaction
func (h *IngestHandler) IngestInteraction(w http.ResponseWriter, r *http.Request) {
	var payload model.InteractionPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.interactionService.RecordInteraction(r.Context(), payload.SessionID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{"interaction_id": id})
}
