package model

import "time"

type Session struct {
	SessionID         string     `db:"session_id" json:"session_id"`
	Username          string     `db:"username" json:"username"`
	StartTime         time.Time  `db:"start_time" json:"start_time"`
	EndTime           *time.Time `db:"end_time" json:"end_time"`
	TotalActiveTimeMs int64      `db:"total_active_time_ms" json:"total_active_time_ms"`
	IsActive          bool       `db:"is_active" json:"is_active"`
	DisplayMode       string     `db:"display_mode" json:"display_mode"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

type CreateSessionParams struct {
	SessionID   string
	Username    string
	DisplayMode string
	StartTime   time.Time
}
