package model

import (
	"encoding/json"
	"time"
)

type SessionStats struct {
	TotalExecutions    int64   `json:"total_executions"`
	TotalBoxes         int64   `json:"total_boxes"`
	TotalTimeMs        int64   `json:"total_time_ms"`
	AvgExecutionTimeMs float64 `json:"avg_execution_time_ms"`
	BoxesPerSecond     float64 `json:"boxes_per_second"`
	LastActivity       *string `json:"last_activity"`
}

type PerformanceMetrics struct {
	EfficiencyScore      float64 `json:"efficiency_score"`
	AvgBoxesPerExecution float64 `json:"avg_boxes_per_execution"`
}

// MetricsSnapshot is the document cached per session. It is stored as one
// JSON blob so a reader always sees a whole snapshot.
type MetricsSnapshot struct {
	SessionStats       SessionStats       `json:"session_stats"`
	DegradationSummary map[string]int64   `json:"degradation_summary"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
}

type MetricsCacheRow struct {
	ID          int64     `db:"id"`
	SessionID   string    `db:"session_id"`
	MetricType  string    `db:"metric_type"`
	MetricData  string    `db:"metric_data"`
	LastUpdated time.Time `db:"last_updated"`
}

// CachedMetrics is what the read path hands back: the stored bytes, untouched.
type CachedMetrics struct {
	Data        json.RawMessage
	LastUpdated time.Time
}

// SessionAggregate is the raw windowed aggregate the snapshot is derived from.
type SessionAggregate struct {
	TotalExecutions int64
	TotalBoxes      int64
	TotalTimeMs     int64
	AvgTimeMs       float64
	LastActivity    *time.Time
}
