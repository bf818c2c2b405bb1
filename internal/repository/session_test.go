package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macromaster/ingest-server-go/internal/model"
)

func TestSessionRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	t.Run("creates active session with default display mode", func(t *testing.T) {
		session, err := repo.Create(ctx, model.CreateSessionParams{
			SessionID: "s1",
			Username:  "alice",
			StartTime: start,
		})
		require.NoError(t, err)
		assert.Equal(t, "s1", session.SessionID)
		assert.Equal(t, "alice", session.Username)
		assert.True(t, session.IsActive)
		assert.Nil(t, session.EndTime)
		assert.Equal(t, int64(0), session.TotalActiveTimeMs)
		assert.Equal(t, model.DefaultDisplayMode, session.DisplayMode)
		assert.True(t, start.Equal(session.StartTime))
	})

	t.Run("keeps explicit display mode", func(t *testing.T) {
		session, err := repo.Create(ctx, model.CreateSessionParams{
			SessionID:   "s2",
			Username:    "bob",
			DisplayMode: "compact",
			StartTime:   start,
		})
		require.NoError(t, err)
		assert.Equal(t, "compact", session.DisplayMode)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		_, err := repo.Create(ctx, model.CreateSessionParams{
			SessionID: "s1",
			Username:  "mallory",
			StartTime: start,
		})
		assert.ErrorIs(t, err, ErrDuplicate)

		session, err := repo.FindByID(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "alice", session.Username)
	})
}

func TestSessionRepository_FindByID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()
	createTestSession(t, db, "s1", time.Now())

	t.Run("finds existing session", func(t *testing.T) {
		session, err := repo.FindByID(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "s1", session.SessionID)
	})

	t.Run("returns nil for unknown id", func(t *testing.T) {
		session, err := repo.FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, session)
	})
}

func TestSessionRepository_End(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()
	createTestSession(t, db, "s1", time.Now().Add(-time.Hour))

	end := time.Now().UTC().Truncate(time.Microsecond)
	ok, err := repo.End(ctx, "s1", end, 1250)
	require.NoError(t, err)
	assert.True(t, ok)

	session, err := repo.FindByID(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.Equal(t, int64(1250), session.TotalActiveTimeMs)
	require.NotNil(t, session.EndTime)
	assert.True(t, end.Equal(*session.EndTime))

	t.Run("unknown id reports false", func(t *testing.T) {
		ok, err := repo.End(ctx, "ghost", end, 0)
		require.NoError(t, err)
		assert.False(t, ok)

		ghost, err := repo.FindByID(ctx, "ghost")
		require.NoError(t, err)
		assert.Nil(t, ghost)
	})
}

func TestSessionRepository_SumExecutionTime(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()
	now := time.Now()
	createTestSession(t, db, "s1", now.Add(-72*time.Hour))
	createTestSession(t, db, "s2", now)

	// Older than any metrics window; still counted.
	createTestInteraction(t, db, "s1", now.Add(-48*time.Hour), 1000, 1)
	createTestInteraction(t, db, "s1", now, 250, 1)
	createTestInteraction(t, db, "s2", now, 9999, 1)

	total, err := repo.SumExecutionTime(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), total)

	total, err = repo.SumExecutionTime(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestSessionRepository_ListAndCount(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()
	now := time.Now()
	createTestSession(t, db, "old", now.Add(-2*time.Hour))
	createTestSession(t, db, "mid", now.Add(-time.Hour))
	createTestSession(t, db, "new", now)

	_, err := repo.End(ctx, "mid", now, 0)
	require.NoError(t, err)

	all, err := repo.List(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].SessionID)
	assert.Equal(t, "old", all[2].SessionID)

	active, err := repo.List(ctx, true, 10)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, s := range active {
		assert.True(t, s.IsActive)
	}

	limited, err := repo.List(ctx, false, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	count, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSessionRepository_DeleteInactiveBefore(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewSessionRepository(db.DB)
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-7 * 24 * time.Hour)

	createTestSession(t, db, "old-closed", now.Add(-10*24*time.Hour))
	createTestSession(t, db, "old-active", now.Add(-10*24*time.Hour))
	createTestSession(t, db, "old-closed-with-data", now.Add(-10*24*time.Hour))
	createTestSession(t, db, "recent-closed", now.Add(-time.Hour))
	createTestInteraction(t, db, "old-closed-with-data", now, 10, 1)

	for _, id := range []string{"old-closed", "old-closed-with-data", "recent-closed"} {
		_, err := repo.End(ctx, id, now, 0)
		require.NoError(t, err)
	}

	deleted, err := repo.DeleteInactiveBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	gone, err := repo.FindByID(ctx, "old-closed")
	require.NoError(t, err)
	assert.Nil(t, gone)

	for _, id := range []string{"old-active", "old-closed-with-data", "recent-closed"} {
		s, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, s, id)
	}
}

func TestSessionRepository_WithTx(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	_, err = NewSessionRepository(db.DB).WithTx(tx).Create(ctx, model.CreateSessionParams{
		SessionID: "tx-session",
		Username:  "alice",
		StartTime: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	session, err := NewSessionRepository(db.DB).FindByID(ctx, "tx-session")
	require.NoError(t, err)
	assert.Nil(t, session)
}
