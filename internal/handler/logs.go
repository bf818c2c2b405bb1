package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/macromaster/ingest-server-go/internal/audit"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type LogsHandler struct {
	logService *service.SystemLogService
	audit      *audit.Logger
}

func NewLogsHandler(logService *service.SystemLogService, auditLogger *audit.Logger) *LogsHandler {
	return &LogsHandler{logService: logService, audit: auditLogger}
}

func (h *LogsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/{id}/resolve", h.Resolve)

	return r
}

// GET /logs?level=ERROR&unresolved=true&limit=N
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	unresolved, err := parseBool(r, "unresolved")
	if err != nil {
		writeError(w, err)
		return
	}

	logs, err := h.logService.List(r.Context(), model.SystemLogFilter{
		Level:          model.LogLevel(strings.ToUpper(r.URL.Query().Get("level"))),
		UnresolvedOnly: unresolved,
		Limit:          limit,
	})
	if err != nil {
		recordReadFailure(r.Context(), h.audit, "System log listing failed", err)
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// POST /logs/{id}/resolve
func (h *LogsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, apperrors.InvalidInput("id", "must be an integer"))
		return
	}

	if err := h.logService.Resolve(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{"id": id, "resolved": true})
}
