package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/model"
)

type MetricsCacheRepository interface {
	// Upsert replaces the single row for (sessionID, kind).
	Upsert(ctx context.Context, sessionID, kind string, data []byte, updatedAt time.Time) error
	Find(ctx context.Context, sessionID, kind string) (*model.MetricsCacheRow, error)
	WithTx(tx *sqlx.Tx) MetricsCacheRepository
}

type metricsCacheRepo struct {
	db queryer
}

func NewMetricsCacheRepository(db *sqlx.DB) MetricsCacheRepository {
	return &metricsCacheRepo{db: db}
}

func (r *metricsCacheRepo) WithTx(tx *sqlx.Tx) MetricsCacheRepository {
	return &metricsCacheRepo{db: tx}
}

func (r *metricsCacheRepo) Upsert(ctx context.Context, sessionID, kind string, data []byte, updatedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metrics_cache (session_id, metric_type, metric_data, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, metric_type) DO UPDATE SET
			metric_data = excluded.metric_data,
			last_updated = excluded.last_updated
	`, sessionID, kind, string(data), database.FormatTime(updatedAt))
	return err
}

func (r *metricsCacheRepo) Find(ctx context.Context, sessionID, kind string) (*model.MetricsCacheRow, error) {
	var row model.MetricsCacheRow
	err := r.db.GetContext(ctx, &row, `
		SELECT * FROM metrics_cache
		WHERE session_id = ? AND metric_type = ?
	`, sessionID, kind)
	return HandleNotFound(&row, err)
}
