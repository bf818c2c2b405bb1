package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/service"
)

const (
	eventConnected   = "connected"
	eventInitialData = "initial_data"
)

type EventsHandler struct {
	broker         *live.Broker
	metricsService *service.MetricsService
}

func NewEventsHandler(broker *live.Broker, metricsService *service.MetricsService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		metricsService: metricsService,
	}
}

// GET /events/{sessionId}
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(sessionID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("sessionId", sessionID).
		Msg("sse connection established")

	ctx := r.Context()

	if err := h.sendEvent(w, flusher, eventConnected, map[string]any{
		"session_id": sessionID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	metrics, err := initialMetrics(ctx, h.metricsService, sessionID)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to load initial metrics")
	} else if err := h.sendRawEvent(w, flusher, live.Event{Type: eventInitialData, Data: metrics}); err != nil {
		return
	}

	heartbeat := time.NewTicker(live.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("sessionId", sessionID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("sessionId", sessionID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("sessionId", sessionID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, live.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event live.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// initialMetrics returns the cached snapshot bytes for a session, or the
// zero-valued snapshot when nothing has been computed yet.
func initialMetrics(ctx context.Context, metricsService *service.MetricsService, sessionID string) (json.RawMessage, error) {
	cached, err := metricsService.GetMetrics(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached.Data, nil
	}
	return json.Marshal(service.EmptySnapshot())
}
