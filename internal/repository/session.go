package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// End closes the session and stores its cumulative active time. It reports
	// false when no session has that id.
	End(ctx context.Context, id string, endTime time.Time, totalActiveMs int64) (bool, error)
	SumExecutionTime(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error)
	CountActive(ctx context.Context) (int, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db queryer
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE session_id = ?
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	displayMode := params.DisplayMode
	if displayMode == "" {
		displayMode = model.DefaultDisplayMode
	}
	start := database.FormatTime(params.StartTime)

	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (session_id, username, start_time, is_active, display_mode, created_at)
		VALUES (?, ?, ?, 1, ?, ?)
		RETURNING *
	`, params.SessionID, params.Username, start, displayMode, start)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) End(ctx context.Context, id string, endTime time.Time, totalActiveMs int64) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE sessions SET
			end_time = ?,
			is_active = 0,
			total_active_time_ms = ?
		WHERE session_id = ?
	`, database.FormatTime(endTime), totalActiveMs, id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SumExecutionTime covers every interaction the session ever recorded, not a window.
func (r *sessionRepo) SumExecutionTime(ctx context.Context, id string) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(execution_time_ms), 0) FROM interactions WHERE session_id = ?
	`, id)
	return total, err
}

func (r *sessionRepo) List(ctx context.Context, activeOnly bool, limit int) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE (? = 0 OR is_active = 1)
		ORDER BY start_time DESC
		LIMIT ?
	`, activeOnly, limit)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sessions WHERE is_active = 1`)
	return count, err
}

// DeleteInactiveBefore removes closed sessions that started before cutoff.
// Sessions still owning interactions are kept so the foreign key holds.
func (r *sessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE is_active = 0
		AND start_time < ?
		AND NOT EXISTS (SELECT 1 FROM interactions i WHERE i.session_id = sessions.session_id)
	`, database.FormatTime(cutoff)))
}
