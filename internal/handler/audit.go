package handler

import (
	"context"
	"net/http"

	"github.com/macromaster/ingest-server-go/internal/audit"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/httputil"
	"github.com/macromaster/ingest-server-go/internal/model"
)

// recordReadFailure appends server-side read failures to the system log.
// Write paths are recorded by the services themselves.
func recordReadFailure(ctx context.Context, logger *audit.Logger, message string, err error) {
	if httputil.StatusFromCode(apperrors.GetCode(err)) < http.StatusInternalServerError {
		return
	}
	logger.Error(ctx, model.ComponentIngestion, message, err)
}
