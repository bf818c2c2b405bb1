package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/macromaster/ingest-server-go/internal/database"
	"github.com/macromaster/ingest-server-go/internal/model"
)

type InteractionRepository interface {
	Create(ctx context.Context, params model.CreateInteractionParams) (int64, error)
	CreateDegradationCounts(ctx context.Context, interactionID int64, counts map[string]int64) error
	FindByID(ctx context.Context, id int64) (*model.Interaction, error)
	FindRecent(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error)
	FindDegradationCounts(ctx context.Context, interactionID int64) ([]model.DegradationCount, error)
	Aggregate(ctx context.Context, sessionID string, since time.Time) (*model.SessionAggregate, error)
	DegradationSummary(ctx context.Context, sessionID string, since time.Time) (map[string]int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) InteractionRepository
}

type interactionRepo struct {
	db queryer
}

func NewInteractionRepository(db *sqlx.DB) InteractionRepository {
	return &interactionRepo{db: db}
}

func (r *interactionRepo) WithTx(tx *sqlx.Tx) InteractionRepository {
	return &interactionRepo{db: tx}
}

func (r *interactionRepo) Create(ctx context.Context, params model.CreateInteractionParams) (int64, error) {
	severity := params.SeverityLevel
	if severity == "" {
		severity = model.DefaultSeverityLevel
	}
	displayMode := params.DisplayMode
	if displayMode == "" {
		displayMode = model.DefaultDisplayMode
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO interactions (
			session_id, timestamp, interaction_type, button_key, layer,
			execution_time_ms, total_boxes, degradation_assignments, severity_level,
			display_mode, session_active_time_ms, break_mode_active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, params.SessionID, database.FormatTime(params.Timestamp), params.InteractionType,
		params.ButtonKey, params.Layer, params.ExecutionTimeMs, params.TotalBoxes,
		params.DegradationAssignments, severity, displayMode, params.SessionActiveTimeMs,
		params.BreakModeActive, database.FormatTime(time.Now()))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CreateDegradationCounts inserts one row per non-zero count.
func (r *interactionRepo) CreateDegradationCounts(ctx context.Context, interactionID int64, counts map[string]int64) error {
	for degradationType, count := range counts {
		if count == 0 {
			continue
		}
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO degradation_counts (interaction_id, degradation_type, count)
			VALUES (?, ?, ?)
		`, interactionID, degradationType, count); err != nil {
			return fmt.Errorf("insert degradation %q: %w", degradationType, err)
		}
	}
	return nil
}

func (r *interactionRepo) FindByID(ctx context.Context, id int64) (*model.Interaction, error) {
	var interaction model.Interaction
	err := r.db.GetContext(ctx, &interaction, `
		SELECT * FROM interactions WHERE id = ?
	`, id)
	return HandleNotFound(&interaction, err)
}

func (r *interactionRepo) FindRecent(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error) {
	interactions := []model.Interaction{}
	err := r.db.SelectContext(ctx, &interactions, `
		SELECT * FROM interactions
		WHERE session_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	return interactions, nil
}

func (r *interactionRepo) FindDegradationCounts(ctx context.Context, interactionID int64) ([]model.DegradationCount, error) {
	counts := []model.DegradationCount{}
	err := r.db.SelectContext(ctx, &counts, `
		SELECT interaction_id, degradation_type, count FROM degradation_counts
		WHERE interaction_id = ?
		ORDER BY degradation_type
	`, interactionID)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

type aggregateRow struct {
	TotalExecutions int64          `db:"total_executions"`
	TotalBoxes      int64          `db:"total_boxes"`
	TotalTimeMs     int64          `db:"total_time_ms"`
	AvgTimeMs       float64        `db:"avg_time_ms"`
	LastActivity    sql.NullString `db:"last_activity"`
}

func (r *interactionRepo) Aggregate(ctx context.Context, sessionID string, since time.Time) (*model.SessionAggregate, error) {
	var row aggregateRow
	err := r.db.GetContext(ctx, &row, `
		SELECT
			COUNT(*) AS total_executions,
			COALESCE(SUM(total_boxes), 0) AS total_boxes,
			COALESCE(SUM(execution_time_ms), 0) AS total_time_ms,
			COALESCE(AVG(execution_time_ms), 0.0) AS avg_time_ms,
			MAX(timestamp) AS last_activity
		FROM interactions
		WHERE session_id = ? AND timestamp >= ?
	`, sessionID, database.FormatTime(since))
	if err != nil {
		return nil, err
	}

	agg := &model.SessionAggregate{
		TotalExecutions: row.TotalExecutions,
		TotalBoxes:      row.TotalBoxes,
		TotalTimeMs:     row.TotalTimeMs,
		AvgTimeMs:       row.AvgTimeMs,
	}
	if row.LastActivity.Valid {
		last, err := database.ParseTime(row.LastActivity.String)
		if err != nil {
			return nil, fmt.Errorf("parse last activity: %w", err)
		}
		agg.LastActivity = &last
	}
	return agg, nil
}

func (r *interactionRepo) DegradationSummary(ctx context.Context, sessionID string, since time.Time) (map[string]int64, error) {
	var rows []struct {
		DegradationType string `db:"degradation_type"`
		Total           int64  `db:"total"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT dc.degradation_type, SUM(dc.count) AS total
		FROM degradation_counts dc
		JOIN interactions i ON i.id = dc.interaction_id
		WHERE i.session_id = ? AND i.timestamp >= ?
		GROUP BY dc.degradation_type
	`, sessionID, database.FormatTime(since))
	if err != nil {
		return nil, err
	}

	summary := make(map[string]int64, len(rows))
	for _, row := range rows {
		summary[row.DegradationType] = row.Total
	}
	return summary, nil
}

// DeleteBefore removes interactions older than cutoff. Their degradation rows
// go with them through the cascading foreign key.
func (r *interactionRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM interactions WHERE timestamp < ?
	`, database.FormatTime(cutoff)))
}
