package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "macromaster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestOpen(t *testing.T) {
	t.Run("creates parent directory and enables WAL and foreign keys", func(t *testing.T) {
		db := openTestDB(t)
		ctx := context.Background()

		_, err := os.Stat(filepath.Dir(db.Path()))
		require.NoError(t, err)

		var mode string
		require.NoError(t, db.GetContext(ctx, &mode, `PRAGMA journal_mode`))
		assert.Equal(t, "wal", mode)

		var fk int
		require.NoError(t, db.GetContext(ctx, &fk, `PRAGMA foreign_keys`))
		assert.Equal(t, 1, fk)
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := Open("")
		assert.Error(t, err)
	})
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, db.Migrate(ctx))
	})

	t.Run("creates all tables", func(t *testing.T) {
		var tables []string
		require.NoError(t, db.SelectContext(ctx, &tables,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
		assert.Equal(t, []string{"degradation_counts", "interactions", "metrics_cache", "sessions", "system_logs"}, tables)
	})

	t.Run("creates required indexes", func(t *testing.T) {
		var indexes []string
		require.NoError(t, db.SelectContext(ctx, &indexes,
			`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%' ORDER BY name`))
		assert.ElementsMatch(t, []string{
			"idx_degradation_interaction",
			"idx_interactions_session_time",
			"idx_interactions_type",
			"idx_logs_timestamp",
			"idx_metrics_session",
			"idx_metrics_session_type",
			"idx_sessions_active",
		}, indexes)
	})
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	insert := func(tx *sqlx.Tx, id string) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, username, start_time) VALUES (?, ?, ?)`,
			id, "alice", FormatTime(time.Now()))
		return err
	}

	t.Run("commits on success", func(t *testing.T) {
		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			return insert(tx, "committed")
		})
		require.NoError(t, err)

		var n int
		require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions WHERE session_id = 'committed'`))
		assert.Equal(t, 1, n)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			if err := insert(tx, "rolled-back"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		var n int
		require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions WHERE session_id = 'rolled-back'`))
		assert.Equal(t, 0, n)
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		assert.Panics(t, func() {
			_ = db.WithTx(ctx, func(tx *sqlx.Tx) error {
				_ = insert(tx, "panicked")
				panic("boom")
			})
		})

		var n int
		require.NoError(t, db.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions WHERE session_id = 'panicked'`))
		assert.Equal(t, 0, n)
	})
}

func TestBackup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, username, start_time) VALUES ('s1', 'alice', ?)`,
		FormatTime(time.Now()))
	require.NoError(t, err)

	t.Run("writes a readable copy next to the database", func(t *testing.T) {
		path, err := db.Backup(ctx)
		require.NoError(t, err)
		assert.Equal(t, db.Path()+BackupSuffix, path)

		backup, err := Open(path)
		require.NoError(t, err)
		defer backup.Close()

		var n int
		require.NoError(t, backup.GetContext(ctx, &n, `SELECT COUNT(*) FROM sessions`))
		assert.Equal(t, 1, n)
	})

	t.Run("overwrites the previous backup and leaves no temp files", func(t *testing.T) {
		_, err := db.Backup(ctx)
		require.NoError(t, err)
		_, err = db.Backup(ctx)
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Dir(db.Path()))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})

	t.Run("fails cleanly when the target directory is gone", func(t *testing.T) {
		broken := &DB{DB: db.DB, path: filepath.Join(t.TempDir(), "missing", "x.db")}
		_, err := broken.Backup(ctx)
		assert.Error(t, err)

		_, statErr := os.Stat(broken.BackupPath())
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestInfo(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	now := time.Now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, username, start_time) VALUES ('s1', 'alice', ?)`, FormatTime(now))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO interactions (session_id, timestamp, interaction_type) VALUES ('s1', ?, 'macro_execution')`,
		FormatTime(now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		`INSERT INTO interactions (session_id, timestamp, interaction_type) VALUES ('s1', ?, 'macro_execution')`,
		FormatTime(now))
	require.NoError(t, err)

	info, err := db.Info(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), info.Sessions)
	assert.Equal(t, int64(1), info.ActiveSessions)
	assert.Equal(t, int64(2), info.Interactions)
	require.NotNil(t, info.FirstInteraction)
	require.NotNil(t, info.LastInteraction)
	assert.True(t, info.FirstInteraction.Before(*info.LastInteraction))
	assert.Greater(t, info.SizeBytes, int64(0))
}

func TestTimeFormat(t *testing.T) {
	t.Run("round trips at microsecond precision", func(t *testing.T) {
		in := time.Date(2026, 10, 16, 9, 30, 0, 123456789, time.FixedZone("KST", 9*3600))
		out, err := ParseTime(FormatTime(in))
		require.NoError(t, err)
		assert.True(t, in.Truncate(time.Microsecond).Equal(out))
	})

	t.Run("orders lexicographically", func(t *testing.T) {
		a := FormatTime(time.Date(2026, 1, 1, 0, 0, 9, 900000000, time.UTC))
		b := FormatTime(time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC))
		assert.Less(t, a, b)
	})

	t.Run("accepts second precision", func(t *testing.T) {
		out, err := ParseTime("2026-10-16 09:30:00")
		require.NoError(t, err)
		assert.Equal(t, 2026, out.Year())
	})
}
