package handler

import (
	"net/http"
	"time"
)

const serviceName = "data_ingestion"

// Health reports liveness only; it does not touch the database.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
