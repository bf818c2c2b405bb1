package model

const (
	DefaultDisplayMode   = "wide"
	DefaultSeverityLevel = "medium"
)

// Components that write system log entries.
const (
	ComponentDatabase  = "database"
	ComponentIngestion = "ingestion_service"
	ComponentDashboard = "dashboard"
	ComponentJobs      = "jobs"
)
