package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
)

func TestMaintenanceService_CleanupBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSession(t, "s1")

	const days = 7
	now := time.Now()

	expired := macroExecution(10, 1, map[string]int64{"smudge": 1})
	expired.Timestamp = at(now.Add(-(days + 1) * 24 * time.Hour))
	expiredID, err := env.interactions.RecordInteraction(ctx, "s1", expired)
	require.NoError(t, err)

	kept := macroExecution(10, 1, nil)
	kept.Timestamp = at(now.Add(-(days - 1) * 24 * time.Hour))
	keptID, err := env.interactions.RecordInteraction(ctx, "s1", kept)
	require.NoError(t, err)

	result, err := env.maintenance.CleanupOldData(ctx, days)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Interactions)

	gone, err := env.interactionRepo.FindByID(ctx, expiredID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	still, err := env.interactionRepo.FindByID(ctx, keptID)
	require.NoError(t, err)
	assert.NotNil(t, still)

	assert.Equal(t, 0, env.countRows(t, `SELECT COUNT(*) FROM degradation_counts WHERE interaction_id = ?`, expiredID))
}

func TestMaintenanceService_CleanupSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.sessions.now = func() time.Time { return time.Now().Add(-40 * 24 * time.Hour) }
	env.startSession(t, "old-closed")
	env.startSession(t, "old-open")
	env.sessions.now = time.Now

	_, err := env.sessions.EndSession(ctx, "old-closed")
	require.NoError(t, err)

	result, err := env.maintenance.CleanupOldData(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Sessions)

	s, err := env.sessions.GetSession(ctx, "old-closed")
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = env.sessions.GetSession(ctx, "old-open")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestMaintenanceService_TrimsSystemLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.maintenance.logRetention = 20

	for i := 0; i < 30; i++ {
		_, err := env.logRepo.Create(ctx, model.CreateSystemLogParams{
			LogLevel:  model.LogLevelInfo,
			Component: model.ComponentJobs,
			Message:   fmt.Sprintf("entry %d", i),
		})
		require.NoError(t, err)
	}

	result, err := env.maintenance.CleanupOldData(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(11), result.SystemLogs)

	// The summary entry fills the slot left by the trim.
	assert.Equal(t, 20, env.countRows(t, `SELECT COUNT(*) FROM system_logs`))
	var newest string
	require.NoError(t, env.db.GetContext(ctx, &newest,
		`SELECT message FROM system_logs ORDER BY timestamp DESC, id DESC LIMIT 1`))
	assert.Contains(t, newest, "Cleanup completed")
}

func TestMaintenanceService_TrimKeepsRetentionAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 1100; i++ {
		_, err := env.logRepo.Create(ctx, model.CreateSystemLogParams{
			LogLevel:  model.LogLevelInfo,
			Component: model.ComponentJobs,
			Message:   fmt.Sprintf("entry %d", i),
		})
		require.NoError(t, err)
	}

	for run := 0; run < 2; run++ {
		_, err := env.maintenance.CleanupOldData(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, 1000, env.countRows(t, `SELECT COUNT(*) FROM system_logs`))
	}
}

func TestMaintenanceService_RejectsNegativeDays(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.maintenance.CleanupOldData(context.Background(), -1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestMaintenanceService_Backup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSession(t, "s1")

	path, err := env.maintenance.BackupDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, env.db.Path()+".backup", path)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

func TestMaintenanceService_BackupFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A directory squatting on the backup path makes the final rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(env.db.BackupPath(), "occupied"), 0o755))

	path, err := env.maintenance.BackupDatabase(ctx)
	assert.Empty(t, path)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackupFailed))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(env.db.Path()), ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.Equal(t, 1, env.countRows(t, `SELECT COUNT(*) FROM system_logs WHERE message = 'Backup failed'`))
}

func TestMaintenanceService_Info(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSession(t, "s1")
	_, err := env.interactions.RecordInteraction(ctx, "s1", macroExecution(1, 1, map[string]int64{"rain": 1}))
	require.NoError(t, err)

	info, err := env.maintenance.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Sessions)
	assert.Equal(t, int64(1), info.Interactions)
	assert.Equal(t, int64(1), info.DegradationCounts)
	assert.Equal(t, int64(1), info.CachedMetrics)
}
