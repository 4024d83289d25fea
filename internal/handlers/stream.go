package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/queueit/backend/internal/broker"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/services"
)

const (
	// eventDropped tells a client its subscription ended and it must
	// resynchronize from a snapshot before reconnecting.
	eventDropped = "dropped"

	wsWriteWait = 10 * time.Second
)

// SessionLookup finds an active session; ended sessions are not found.
type SessionLookup interface {
	Get(ctx context.Context, sessionID string) (services.SessionDetails, error)
}

// StreamHandler serves the session's event stream over SSE and WebSocket.
type StreamHandler struct {
	broker         *broker.Broker
	sessions       SessionLookup
	heartbeat      time.Duration
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewStreamHandler creates a StreamHandler backed by the given broker.
// Browser WebSocket upgrades are accepted only from allowedOrigins.
func NewStreamHandler(b *broker.Broker, sessions SessionLookup, heartbeat time.Duration, allowedOrigins []string) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	h := &StreamHandler{
		broker:         b,
		sessions:       sessions,
		heartbeat:      heartbeat,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// subscribe registers the caller for the session's events, or writes a 404
// when the session is gone. The subscription comes first so that an end
// committed after the check still closes the stream.
func (h *StreamHandler) subscribe(w http.ResponseWriter, r *http.Request, transport string) (*broker.Subscription, bool) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")
	sub := h.broker.Subscribe(sessionID)
	if _, err := h.sessions.Get(ctx, sessionID); err != nil {
		h.broker.Unsubscribe(sub)
		writeServiceError(ctx, w, "Failed to open event stream", err)
		return nil, false
	}
	slog.DebugContext(ctx, "event stream opened",
		slog.String("transport", transport),
		slog.Int("subscribers", h.broker.Subscribers(sessionID)))
	return sub, true
}

// Events opens an SSE connection scoped to a session. It sends an initial
// "connected" event, then one event per committed change in commit order.
// A heartbeat comment keeps the connection alive through proxies. If the
// subscriber falls behind and is dropped, a final "dropped" event is sent.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, ok := h.subscribe(w, r, "sse")
	if !ok {
		return
	}
	defer h.broker.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-sub.Events():
			if !open {
				fmt.Fprintf(w, "event: %s\ndata: resync\n\n", eventDropped)
				flusher.Flush()
				return
			}
			env, err := models.EncodeEvent(ev)
			if err != nil {
				slog.ErrorContext(ctx, "encode event", slog.Any("error", err))
				continue
			}
			data := env.Data
			if len(data) == 0 {
				data = json.RawMessage("{}")
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Type, data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

// WebSocket upgrades the request and writes each event as a JSON envelope.
// The connection is read-only from the client's side; inbound messages are
// discarded and only used to detect disconnects.
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subscribe(w, r, "websocket")
	if !ok {
		return
	}
	defer h.broker.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(r.Context(), "websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	// Pings go out every heartbeat; a client missing two in a row is gone.
	pongWait := 2 * h.heartbeat
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case ev, open := <-sub.Events():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, eventDropped)
				conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			env, err := models.EncodeEvent(ev)
			if err != nil {
				slog.ErrorContext(ctx, "encode event", slog.Any("error", err))
				continue
			}
			data, err := json.Marshal(env)
			if err != nil {
				slog.ErrorContext(ctx, "marshal envelope", slog.Any("error", err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
