package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/model"
)

type SystemLogRepository interface {
	Create(ctx context.Context, params model.CreateSystemLogParams) (int64, error)
	List(ctx context.Context, filter model.SystemLogFilter) ([]model.SystemLog, error)
	// Resolve flags an entry as handled. It reports false for an unknown id.
	Resolve(ctx context.Context, id int64) (bool, error)
	// TrimToNewest deletes everything but the keep most recent entries.
	TrimToNewest(ctx context.Context, keep int) (int64, error)
	Count(ctx context.Context) (int, error)
}

type systemLogRepo struct {
	db *sqlx.DB
}

func NewSystemLogRepository(db *sqlx.DB) SystemLogRepository {
	return &systemLogRepo{db: db}
}

func (r *systemLogRepo) Create(ctx context.Context, params model.CreateSystemLogParams) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO system_logs (timestamp, log_level, component, message, error_details)
		VALUES (?, ?, ?, ?, ?)
	`, database.FormatTime(time.Now()), params.LogLevel, params.Component, params.Message, params.ErrorDetails)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (r *systemLogRepo) List(ctx context.Context, filter model.SystemLogFilter) ([]model.SystemLog, error) {
	logs := []model.SystemLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM system_logs
		WHERE (? = '' OR log_level = ?)
		AND (? = 0 OR resolved = 0)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, filter.Level, filter.Level, filter.UnresolvedOnly, filter.Limit)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *systemLogRepo) Resolve(ctx context.Context, id int64) (bool, error) {
	n, err := rowsAffected(r.db.ExecContext(ctx, `
		UPDATE system_logs SET resolved = 1 WHERE id = ?
	`, id))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *systemLogRepo) TrimToNewest(ctx context.Context, keep int) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM system_logs
		WHERE id NOT IN (
			SELECT id FROM system_logs
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		)
	`, keep))
}

func (r *systemLogRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM system_logs`)
	return count, err
}
