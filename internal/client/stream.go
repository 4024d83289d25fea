package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
)

// ErrDropped means the server dropped this subscriber, usually because it
// fell behind. The projection must reload a snapshot.
var ErrDropped = errors.New("event stream dropped by server")

// EventStream yields a session's events in commit order.
type EventStream interface {
	Next() (queue.Event, error)
	Close() error
}

// Dialer opens an EventStream.
type Dialer func(ctx context.Context) (EventStream, error)

// WebSocketStream reads JSON envelopes from the session's WebSocket.
type WebSocketStream struct {
	conn *websocket.Conn
}

// WebSocketDialer returns a Dialer for the server at baseURL. The token is
// passed as a query parameter since browsers cannot set headers on upgrades.
func WebSocketDialer(baseURL, sessionID, token string) Dialer {
	return func(ctx context.Context) (EventStream, error) {
		return DialStream(ctx, baseURL, sessionID, token)
	}
}

// DialStream connects to the session's WebSocket endpoint.
func DialStream(ctx context.Context, baseURL, sessionID, token string) (*WebSocketStream, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/sessions/" + url.PathEscape(sessionID) + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, fmt.Errorf("dial event stream: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial event stream: %w", err)
	}
	return &WebSocketStream{conn: conn}, nil
}

// Next blocks for the next event. A server close for a slow subscriber
// returns ErrDropped.
func (s *WebSocketStream) Next() (queue.Event, error) {
	var env models.Envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		if websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
			return nil, ErrDropped
		}
		return nil, err
	}
	return models.DecodeEvent(env)
}

func (s *WebSocketStream) Close() error {
	return s.conn.Close()
}
