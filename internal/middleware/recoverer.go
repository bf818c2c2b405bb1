package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/macromaster/ingest-server-go/internal/audit"
	apperrors "github.com/macromaster/ingest-server-go/internal/errors"
	"github.com/macromaster/ingest-server-go/internal/httputil"
	"github.com/macromaster/ingest-server-go/internal/model"
)

// Recoverer turns a panicking handler into the JSON error envelope with a 500
// and appends the panic to the system log.
func Recoverer(auditLogger *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this to abort a response silently.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				auditLogger.Log(r.Context(), audit.Entry{
					Level:     model.LogLevelError,
					Component: model.ComponentIngestion,
					Message:   fmt.Sprintf("Unhandled error on %s %s", r.Method, r.URL.Path),
					Err:       fmt.Errorf("panic: %v", rec),
					Fields: map[string]interface{}{
						"request_id": chimiddleware.GetReqID(r.Context()),
						"stack":      string(debug.Stack()),
					},
				})

				if r.Header.Get("Connection") == "Upgrade" {
					return
				}
				httputil.WriteError(w, apperrors.Internal("An unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
