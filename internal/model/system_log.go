package model

import "time"

type LogLevel string

const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelCritical LogLevel = "CRITICAL"
)

type SystemLog struct {
	ID           int64     `db:"id" json:"id"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	LogLevel     LogLevel  `db:"log_level" json:"log_level"`
	Component    string    `db:"component" json:"component"`
	Message      string    `db:"message" json:"message"`
	ErrorDetails *string   `db:"error_details" json:"error_details"`
	Resolved     bool      `db:"resolved" json:"resolved"`
}

type CreateSystemLogParams struct {
	LogLevel     LogLevel
	Component    string
	Message      string
	ErrorDetails *string
}

type SystemLogFilter struct {
	Level          LogLevel
	UnresolvedOnly bool
	Limit          int
}
