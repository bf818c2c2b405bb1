package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/macromaster/ingest-server-go/internal/audit"
	"github.com/macromaster/ingest-server-go/internal/live"
	"github.com/macromaster/ingest-server-go/internal/model"
	"github.com/macromaster/ingest-server-go/internal/service"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 64 * 1024
	wsSendBuffer     = 64

	initialInteractionLimit = 50
)

// Client and server message types on /ws.
const (
	wsJoinSession    = "join_session"
	wsLeaveSession   = "leave_session"
	wsRequestUpdate  = "request_update"
	wsConnected      = "connected"
	wsSessionJoined  = "session_joined"
	wsInitialData    = "initial_data"
	wsRealtimeUpdate = "realtime_update"
	wsSessionLeft    = "session_left"
	wsError          = "error"
)

type wsClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type wsServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type WSHandler struct {
	broker             *live.Broker
	metricsService     *service.MetricsService
	interactionService *service.InteractionService
	audit              *audit.Logger
	upgrader           websocket.Upgrader
}

func NewWSHandler(
	broker *live.Broker,
	metricsService *service.MetricsService,
	interactionService *service.InteractionService,
	auditLogger *audit.Logger,
) *WSHandler {
	return &WSHandler{
		broker:             broker,
		metricsService:     metricsService,
		interactionService: interactionService,
		audit:              auditLogger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from other origins on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsConn is one dashboard connection. All writes go through send so that
// writePump is the only writer on the socket.
type wsConn struct {
	h      *WSHandler
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*live.Client
}

// GET /ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	c := &wsConn{
		h:        h,
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*live.Client),
	}

	log.Info().Str("remoteAddr", r.RemoteAddr).Msg("websocket client connected")

	go c.writePump()

	c.emit(wsConnected, map[string]any{
		"status":    "success",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	c.readPump()
}

func (c *wsConn) readPump() {
	defer c.close()

	c.conn.SetReadLimit(wsMaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read error")
			}
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.emitError("Invalid message")
			continue
		}

		switch msg.Type {
		case wsJoinSession:
			c.join(msg.SessionID)
		case wsLeaveSession:
			c.leave(msg.SessionID)
		case wsRequestUpdate:
			c.requestUpdate(msg.SessionID)
		default:
			c.emitError(fmt.Sprintf("Unknown message type: %s", msg.Type))
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *wsConn) close() {
	c.cancel()

	c.mu.Lock()
	for _, client := range c.sessions {
		c.h.broker.Unsubscribe(client)
	}
	c.sessions = map[string]*live.Client{}
	c.mu.Unlock()

	log.Info().Msg("websocket client disconnected")
}

func (c *wsConn) emit(msgType string, data any) {
	payload, err := json.Marshal(wsServerMessage{Type: msgType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal websocket message")
		return
	}

	select {
	case c.send <- payload:
	case <-c.ctx.Done():
	default:
		log.Warn().Str("type", msgType).Msg("websocket send buffer full, dropping message")
	}
}

func (c *wsConn) emitError(message string) {
	c.emit(wsError, map[string]string{"message": message})
}

func (c *wsConn) join(sessionID string) {
	if sessionID == "" {
		c.emitError("No session_id provided")
		return
	}

	c.mu.Lock()
	_, joined := c.sessions[sessionID]
	if !joined {
		client := c.h.broker.Subscribe(sessionID)
		c.sessions[sessionID] = client
		go c.forward(client)
	}
	c.mu.Unlock()

	c.h.audit.Info(c.ctx, model.ComponentDashboard, fmt.Sprintf("Client joined session: %s", sessionID))

	c.sendInitialData(sessionID)
	c.emit(wsSessionJoined, map[string]any{
		"session_id": sessionID,
		"status":     "success",
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *wsConn) leave(sessionID string) {
	c.mu.Lock()
	client, joined := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if !joined {
		return
	}

	c.h.broker.Unsubscribe(client)
	c.h.audit.Info(c.ctx, model.ComponentDashboard, fmt.Sprintf("Client left session: %s", sessionID))
	c.emit(wsSessionLeft, map[string]string{"session_id": sessionID})
}

func (c *wsConn) requestUpdate(sessionID string) {
	if sessionID == "" {
		c.emitError("No session_id provided")
		return
	}

	metrics, err := initialMetrics(c.ctx, c.h.metricsService, sessionID)
	if err != nil {
		recordReadFailure(c.ctx, c.h.audit, fmt.Sprintf("Failed to send realtime update: %s", sessionID), err)
		c.emitError("Failed to load metrics")
		return
	}
	c.emitUpdate(sessionID, metrics)
}

func (c *wsConn) sendInitialData(sessionID string) {
	metrics, err := initialMetrics(c.ctx, c.h.metricsService, sessionID)
	if err != nil {
		recordReadFailure(c.ctx, c.h.audit, fmt.Sprintf("Failed to send initial data: %s", sessionID), err)
		c.emitError("Failed to load initial data")
		return
	}

	interactions, err := c.h.interactionService.RecentInteractions(c.ctx, sessionID, initialInteractionLimit)
	if err != nil {
		recordReadFailure(c.ctx, c.h.audit, fmt.Sprintf("Failed to send initial data: %s", sessionID), err)
		c.emitError("Failed to load initial data")
		return
	}

	c.emit(wsInitialData, map[string]any{
		"session_id":          sessionID,
		"metrics":             metrics,
		"recent_interactions": interactions,
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *wsConn) emitUpdate(sessionID string, metrics json.RawMessage) {
	c.emit(wsRealtimeUpdate, map[string]any{
		"session_id": sessionID,
		"metrics":    metrics,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// forward relays broker events for one joined session until the session is
// left or the connection closes.
func (c *wsConn) forward(client *live.Client) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-client.Done:
			return
		case event := <-client.Events:
			if event.Type == live.EventMetricsUpdated {
				c.emitUpdate(event.SessionID, event.Data)
			}
		}
	}
}
