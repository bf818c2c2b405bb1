package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeSuccess writes the success envelope: payload fields plus status and
// an RFC 3339 timestamp.
func writeSuccess(w http.ResponseWriter, payload map[string]any) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["status"] = httputil.StatusSuccess
	body["timestamp"] = time.Now().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON reads a JSON object body into dst. An empty body or malformed
// JSON is reported as invalid input.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.InvalidInput("body", "no data provided")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return apperrors.InvalidInput("body", "no data provided")
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.InvalidInput("body", "request body too large")
	}
	if err != nil {
		return apperrors.InvalidInput("body", err.Error())
	}
	return nil
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
