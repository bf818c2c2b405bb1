package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/model"
)

func TestSessionService_StartSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("starts active session", func(t *testing.T) {
		session, err := env.sessions.StartSession(ctx, "s1", "alice", "")
		require.NoError(t, err)
		assert.True(t, session.IsActive)
		assert.Nil(t, session.EndTime)
		assert.Equal(t, model.DefaultDisplayMode, session.DisplayMode)
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := env.sessions.StartSession(ctx, "s1", "bob", "compact")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateSession))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := env.sessions.StartSession(ctx, "", "alice", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))

		_, err = env.sessions.StartSession(ctx, "s2", "", "")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingRequired))
	})

	t.Run("writes a log entry", func(t *testing.T) {
		n := env.countRows(t, `SELECT COUNT(*) FROM system_logs WHERE message LIKE 'Session s1 started%'`)
		assert.Equal(t, 1, n)
	})
}

func TestSessionService_EndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSession(t, "s1")

	// Outside the metrics window; still part of the cumulative total.
	old := macroExecution(4000, 2, nil)
	old.Timestamp = at(time.Now().Add(-72 * time.Hour))
	_, err := env.interactions.RecordInteraction(ctx, "s1", old)
	require.NoError(t, err)
	_, err = env.interactions.RecordInteraction(ctx, "s1", macroExecution(1250, 5, nil))
	require.NoError(t, err)

	ok, err := env.sessions.EndSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	session, err := env.sessions.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, session.IsActive)
	assert.NotNil(t, session.EndTime)
	assert.Equal(t, int64(5250), session.TotalActiveTimeMs)
}

func TestSessionService_EndUnknownSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSession(t, "s1")

	before := env.countRows(t, `SELECT COUNT(*) FROM sessions WHERE is_active = 1`)

	ok, err := env.sessions.EndSession(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, before, env.countRows(t, `SELECT COUNT(*) FROM sessions WHERE is_active = 1`))
	assert.Equal(t, 1, env.countRows(t, `SELECT COUNT(*) FROM sessions`))

	session, err := env.sessions.GetSession(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionService_ListAndCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.startSession(t, "s1")
	env.startSession(t, "s2")

	_, err := env.sessions.EndSession(ctx, "s1")
	require.NoError(t, err)

	all, err := env.sessions.ListSessions(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := env.sessions.ListSessions(ctx, true, 0)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s2", active[0].SessionID)

	count, err := env.sessions.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
