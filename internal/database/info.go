package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"
)

// Info summarises the contents of the store.
type Info struct {
	Path              string     `json:"path"`
	SizeBytes         int64      `json:"size_bytes"`
	Sessions          int64      `json:"sessions"`
	ActiveSessions    int64      `json:"active_sessions"`
	Interactions      int64      `json:"interactions"`
	DegradationCounts int64      `json:"degradation_counts"`
	CachedMetrics     int64      `json:"cached_metrics"`
	SystemLogs        int64      `json:"system_logs"`
	FirstInteraction  *time.Time `json:"first_interaction,omitempty"`
	LastInteraction   *time.Time `json:"last_interaction,omitempty"`
}

func (db *DB) Info(ctx context.Context) (*Info, error) {
	info := &Info{Path: db.path}

	counts := []struct {
		dest  *int64
		query string
	}{
		{&info.Sessions, `SELECT COUNT(*) FROM sessions`},
		{&info.ActiveSessions, `SELECT COUNT(*) FROM sessions WHERE is_active = 1`},
		{&info.Interactions, `SELECT COUNT(*) FROM interactions`},
		{&info.DegradationCounts, `SELECT COUNT(*) FROM degradation_counts`},
		{&info.CachedMetrics, `SELECT COUNT(*) FROM metrics_cache`},
		{&info.SystemLogs, `SELECT COUNT(*) FROM system_logs`},
	}
	for _, c := range counts {
		if err := db.GetContext(ctx, c.dest, c.query); err != nil {
			return nil, fmt.Errorf("count rows: %w", err)
		}
	}

	var first, last sql.NullString
	if err := db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM interactions`).Scan(&first, &last); err != nil {
		return nil, fmt.Errorf("interaction range: %w", err)
	}
	info.FirstInteraction = parseNullTime(first)
	info.LastInteraction = parseNullTime(last)

	if st, err := os.Stat(db.path); err == nil {
		info.SizeBytes = st.Size()
	}

	return info, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := ParseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
