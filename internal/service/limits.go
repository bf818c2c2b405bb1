package service

import "github.com/macromaster/ingest-server-go/internal/config"

func clampLimit(limit int) int {
	if limit <= 0 {
		return config.DefaultInteractionLimit
	}
	if limit > config.MaxInteractionLimit {
		return config.MaxInteractionLimit
	}
	return limit
}
