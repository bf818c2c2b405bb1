package model

import "time"

type Interaction struct {
	ID                     int64     `db:"id" json:"id"`
	SessionID              string    `db:"session_id" json:"session_id"`
	Timestamp              time.Time `db:"timestamp" json:"timestamp"`
	InteractionType        string    `db:"interaction_type" json:"interaction_type"`
	ButtonKey              *string   `db:"button_key" json:"button_key"`
	Layer                  *int      `db:"layer" json:"layer"`
	ExecutionTimeMs        int64     `db:"execution_time_ms" json:"execution_time_ms"`
	TotalBoxes             int64     `db:"total_boxes" json:"total_boxes"`
	DegradationAssignments *string   `db:"degradation_assignments" json:"degradation_assignments"`
	SeverityLevel          string    `db:"severity_level" json:"severity_level"`
	DisplayMode            string    `db:"display_mode" json:"display_mode"`
	SessionActiveTimeMs    int64     `db:"session_active_time_ms" json:"session_active_time_ms"`
	BreakModeActive        bool      `db:"break_mode_active" json:"break_mode_active"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
}

type CreateInteractionParams struct {
	SessionID              string
	Timestamp              time.Time
	InteractionType        string
	ButtonKey              *string
	Layer                  *int
	ExecutionTimeMs        int64
	TotalBoxes             int64
	DegradationAssignments *string
	SeverityLevel          string
	DisplayMode            string
	SessionActiveTimeMs    int64
	BreakModeActive        bool
}

type DegradationCount struct {
	InteractionID   int64  `db:"interaction_id" json:"interaction_id"`
	DegradationType string `db:"degradation_type" json:"degradation_type"`
	Count           int64  `db:"count" json:"count"`
}

// InteractionPayload is the body accepted by the ingestion endpoint and the
// record CLI. Pointer fields distinguish "absent" from zero values.
type InteractionPayload struct {
	SessionID              string           `json:"session_id" yaml:"session_id"`
	InteractionType        string           `json:"interaction_type" yaml:"interaction_type"`
	Timestamp              *FlexTime        `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	ButtonKey              *string          `json:"button_key,omitempty" yaml:"button_key,omitempty"`
	Layer                  *int             `json:"layer,omitempty" yaml:"layer,omitempty"`
	ExecutionTimeMs        int64            `json:"execution_time_ms" yaml:"execution_time_ms"`
	TotalBoxes             int64            `json:"total_boxes" yaml:"total_boxes"`
	DegradationAssignments *string          `json:"degradation_assignments,omitempty" yaml:"degradation_assignments,omitempty"`
	DegradationCounts      map[string]int64 `json:"degradation_counts,omitempty" yaml:"degradation_counts,omitempty"`
	SeverityLevel          string           `json:"severity_level,omitempty" yaml:"severity_level,omitempty"`
	DisplayMode            string           `json:"display_mode,omitempty" yaml:"display_mode,omitempty"`
	CanvasMode             string           `json:"canvas_mode,omitempty" yaml:"canvas_mode,omitempty"`
	SessionActiveTimeMs    int64            `json:"session_active_time_ms" yaml:"session_active_time_ms"`
	BreakModeActive        bool             `json:"break_mode_active" yaml:"break_mode_active"`
}
