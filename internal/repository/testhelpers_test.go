package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/model"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func createTestSession(t *testing.T, db *database.DB, id string, start time.Time) {
	t.Helper()

	_, err := NewSessionRepository(db.DB).Create(context.Background(), model.CreateSessionParams{
		SessionID: id,
		Username:  "alice",
		StartTime: start,
	})
	require.NoError(t, err)
}

func createTestInteraction(t *testing.T, db *database.DB, sessionID string, ts time.Time, execMs, boxes int64) int64 {
	t.Helper()

	id, err := NewInteractionRepository(db.DB).Create(context.Background(), model.CreateInteractionParams{
		SessionID:       sessionID,
		Timestamp:       ts,
		InteractionType: "macro_execution",
		ExecutionTimeMs: execMs,
		TotalBoxes:      boxes,
	})
	require.NoError(t, err)
	return id
}
