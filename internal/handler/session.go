package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macromaster/ingest-server-go/internal/audit"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	audit          *audit.Logger
}

func NewSessionHandler(sessionService *service.SessionService, auditLogger *audit.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		audit:          auditLogger,
	}
}

// Routes serves the lifecycle endpoints under /session.
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/start", h.StartSession)
	r.Post("/end", h.EndSession)

	return r
}

// ListRoutes serves the read-only catalogue under /sessions.
func (h *SessionHandler) ListRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListSessions)
	r.Get("/{sessionId}", h.GetSession)

	return r
}

type startSessionRequest struct {
	SessionID   string `json:"session_id"`
	Username    string `json:"username"`
	DisplayMode string `json:"display_mode"`
	CanvasMode  string `json:"canvas_mode"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

// POST /session/start
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	displayMode := req.DisplayMode
	if displayMode == "" {
		displayMode = req.CanvasMode
	}

	session, err := h.sessionService.StartSession(r.Context(), req.SessionID, req.Username, displayMode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"message": fmt.Sprintf("Session %s started", session.SessionID),
		"session": session,
	})
}

// POST /session/end
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ended, err := h.sessionService.EndSession(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ended {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	writeSuccess(w, map[string]any{
		"message":    fmt.Sprintf("Session %s ended", req.SessionID),
		"session_id": req.SessionID,
	})
}

// GET /sessions?active=true&limit=N
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}
	activeOnly, err := parseBool(r, "active")
	if err != nil {
		writeError(w, err)
		return
	}

	sessions, err := h.sessionService.ListSessions(r.Context(), activeOnly, limit)
	if err != nil {
		recordReadFailure(r.Context(), h.audit, "Session listing failed", err)
		writeError(w, err)
		return
	}

	writeSuccess(w, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GET /sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	session, err := h.sessionService.GetSession(r.Context(), sessionID)
	if err != nil {
		recordReadFailure(r.Context(), h.audit, fmt.Sprintf("Session lookup failed for %s", sessionID), err)
		writeError(w, err)
		return
	}
	if session == nil {
		writeError(w, apperrors.NotFound("Session"))
		return
	}

	writeSuccess(w, map[string]any{"session": session})
}
