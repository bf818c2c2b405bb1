package handler

import (
	"net/http"
	"strconv"

	"github.com/macromaster/ingest-server-go/internal/config"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
)

// ParseLimit reads the limit query parameter. Absent means the default;
// values above the cap are clamped rather than rejected.
func ParseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return config.DefaultInteractionLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, apperrors.InvalidInput("limit", "must be a positive integer")
	}
	if limit > config.MaxInteractionLimit {
		limit = config.MaxInteractionLimit
	}
	return limit, nil
}

func parseBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.InvalidInput(name, "must be true or false")
	}
	return v, nil
}
