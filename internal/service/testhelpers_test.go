package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/repository"
)

type testEnv struct {
	db              *database.DB
	broker          *live.Broker
	sessionRepo     repository.SessionRepository
	interactionRepo repository.InteractionRepository
	logRepo         repository.SystemLogRepository
	sessions        *SessionService
	interactions    *InteractionService
	metrics         *MetricsService
	maintenance     *MaintenanceService
	logs            *SystemLogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "service.db"))
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

	metrics := NewMetricsService(interactionRepo, cacheRepo, 24*time.Hour)

	return &testEnv{
		db:              db,
		broker:          broker,
		sessionRepo:     sessionRepo,
		interactionRepo: interactionRepo,
		logRepo:         logRepo,
		sessions:        NewSessionService(db, sessionRepo, auditLogger),
		interactions:    NewInteractionService(db, interactionRepo, metrics, broker, auditLogger),
		metrics:         metrics,
		maintenance:     NewMaintenanceService(db, interactionRepo, sessionRepo, logRepo, auditLogger, 1000),
		logs:            NewSystemLogService(logRepo),
	}
}

func (e *testEnv) startSession(t *testing.T, id string) {
	t.Helper()
	_, err := e.sessions.StartSession(context.Background(), id, "alice", "")
	require.NoError(t, err)
}

func (e *testEnv) countRows(t *testing.T, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.GetContext(context.Background(), &n, query, args...))
	return n
}

func macroExecution(execMs, boxes int64, counts map[string]int64) model.InteractionPayload {
	button := "Num5"
	return model.InteractionPayload{
		InteractionType:   "macro_execution",
		ButtonKey:         &button,
		ExecutionTimeMs:   execMs,
		TotalBoxes:        boxes,
		DegradationCounts: counts,
	}
}

func at(t time.Time) *model.FlexTime {
	ft := model.FlexTime(t)
	return &ft
}
