package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/config"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type MaintenanceHandler struct {
	maintenanceService *service.MaintenanceService
	audit              *audit.Logger
}

func NewMaintenanceHandler(maintenanceService *service.MaintenanceService, auditLogger *audit.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		maintenanceService: maintenanceService,
		audit:              auditLogger,
	}
}

func (h *MaintenanceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/cleanup", h.Cleanup)
	r.Post("/backup", h.Backup)
	r.Get("/info", h.Info)

	return r
}

// POST /maintenance/cleanup?days=N
func (h *MaintenanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := config.DefaultCleanupDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apperrors.InvalidInput("days", "must be an integer"))
			return
		}
		days = v
	}

	result, err := h.maintenanceService.CleanupOldData(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"message": fmt.Sprintf("Cleaned up data older than %d days", days),
		"result":  result,
	})
}

// POST /maintenance/backup
func (h *MaintenanceHandler) Backup(w http.ResponseWriter, r *http.Request) {
	path, err := h.maintenanceService.BackupDatabase(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{"backup_path": path})
}

// GET /maintenance/info
func (h *MaintenanceHandler) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.maintenanceService.Info(r.Context())
	if err != nil {
		recordReadFailure(r.Context(), h.audit, "Database info failed", err)
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{"database": info})
}
