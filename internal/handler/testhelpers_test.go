package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/repository"
	"github.com/macromaster/ingest-server-go/internal/service"
)

type testEnv struct {
	db           *database.DB
	broker       *live.Broker
	sessions     *service.SessionService
	interactions *service.InteractionService
	metrics      *service.MetricsService
	router       chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "handler.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))

	broker := live.NewBroker(nil)
	t.Cleanup(func() {
		broker.Close()
		db.Close()
	})

	sessionRepo := repository.NewSessionRepository(db.DB)
	interactionRepo := repository.NewInteractionRepository(db.DB)
	cacheRepo := repository.NewMetricsCacheRepository(db.DB)
	logRepo := repository.NewSystemLogRepository(db.DB)
	auditLogger := audit.NewLogger(logRepo)

	metricsService := service.NewMetricsService(interactionRepo, cacheRepo, 24*time.Hour)
	sessionService := service.NewSessionService(db, sessionRepo, auditLogger)
	interactionService := service.NewInteractionService(db, interactionRepo, metricsService, broker, auditLogger)
	maintenanceService := service.NewMaintenanceService(db, interactionRepo, sessionRepo, logRepo, auditLogger, 1000)
	logService := service.NewSystemLogService(logRepo)

	sessionHandler := NewSessionHandler(sessionService, auditLogger)
	metricsHandler := NewMetricsHandler(metricsService, interactionService, auditLogger)

	r := chi.NewRouter()
	r.Get("/health", Health)
	r.Mount("/session", sessionHandler.Routes())
	r.Mount("/sessions", sessionHandler.ListRoutes())
	r.Mount("/ingest", NewIngestHandler(interactionService).Routes())
	r.Get("/metrics/{sessionId}", metricsHandler.GetMetrics)
	r.Get("/interactions/{sessionId}", metricsHandler.GetInteractions)
	r.Mount("/maintenance", NewMaintenanceHandler(maintenanceService, auditLogger).Routes())
	r.Mount("/logs", NewLogsHandler(logService, auditLogger).Routes())
	r.Get("/events/{sessionId}", NewEventsHandler(broker, metricsService).ServeHTTP)
	r.Get("/ws", NewWSHandler(broker, metricsService, interactionService, auditLogger).ServeHTTP)

	return &testEnv{
		db:           db,
		broker:       broker,
		sessions:     sessionService,
		interactions: interactionService,
		metrics:      metricsService,
		router:       r,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) startSession(t *testing.T, id string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/session/start", map[string]any{
		"session_id": id,
		"username":   "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}
