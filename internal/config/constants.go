package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// SQLite lock wait before SQLITE_BUSY surfaces
const DBBusyTimeout = 5 * time.Second

// Database ping timeout at startup
const DBPingTimeout = 5 * time.Second

// Recent interactions listing
const (
	DefaultInteractionLimit = 100
	MaxInteractionLimit     = 1000
)

// Default age for POST /maintenance/cleanup when no days param is given
const DefaultCleanupDays = 30

// Metric kind stored in metrics_cache
const SessionMetricsKind = "session_metrics"
