package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueit/backend/internal/broker"
	"github.com/queueit/backend/internal/config"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		SpotifyClientID:     "spotify-client",
		SpotifyClientSecret: "spotify-secret",
		PollInterval:        5 * time.Second,
	}
}

// activeSessions is a SessionLookup over a fixed set of live session ids.
type activeSessions map[string]bool

func (a activeSessions) Get(_ context.Context, sessionID string) (services.SessionDetails, error) {
	id := queue.CanonicalID(sessionID)
	if !a[id] {
		return services.SessionDetails{}, queue.ErrSessionNotFound
	}
	return services.SessionDetails{Session: queue.Session{ID: id}}, nil
}

func newStreamServer(t *testing.T) (*broker.Broker, *httptest.Server) {
	t.Helper()
	hub := broker.New(8)
	h := NewStreamHandler(hub, activeSessions{"s1": true}, 50*time.Millisecond, []string{"http://localhost:5173"})

	r := chi.NewRouter()
	r.Get("/api/sessions/{id}/events", h.Events)
	r.Get("/api/sessions/{id}/ws", h.WebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

// nextSSEEvent reads the next named event, skipping heartbeat comments.
func nextSSEEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestStreamHandler_Events(t *testing.T) {
	hub, srv := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/S1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	name, _ := nextSSEEvent(t, reader)
	require.Equal(t, "connected", name)
	require.Equal(t, 1, hub.Subscribers("s1"))

	hub.Publish("s1", queue.VoteChanged{EntryID: "e1", Tally: 2})
	hub.Publish("s1", queue.QueueChanged{})

	name, data := nextSSEEvent(t, reader)
	assert.Equal(t, string(queue.KindVoteChanged), name)
	var vote models.VoteChangedData
	require.NoError(t, json.Unmarshal([]byte(data), &vote))
	assert.Equal(t, models.VoteChangedData{EntryID: "e1", Tally: 2}, vote)

	name, data = nextSSEEvent(t, reader)
	assert.Equal(t, string(queue.KindQueueChanged), name)
	assert.Equal(t, "{}", data)

	hub.CloseSession("s1")
	name, _ = nextSSEEvent(t, reader)
	assert.Equal(t, eventDropped, name)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamHandler_WebSocket(t *testing.T) {
	hub, srv := newStreamServer(t)

	header := http.Header{"Origin": []string{"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/sessions/s1/ws"), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("s1", queue.NowPlayingChanged{})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, queue.KindNowPlayingChanged, env.Type)

	ev, err := models.DecodeEvent(env)
	require.NoError(t, err)
	assert.Nil(t, ev.(queue.NowPlayingChanged).Entry)

	hub.CloseSession("s1")
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "got %v", err)
}

func TestStreamHandler_WebSocketRejectsForeignOrigin(t *testing.T) {
	hub, srv := newStreamServer(t)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/sessions/s1/ws"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 0 }, time.Second, 5*time.Millisecond)
}

func TestStreamHandler_UnknownSessionIsNotFound(t *testing.T) {
	hub, srv := newStreamServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/gone/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "session_not_found", body.Code)

	_, wsResp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/sessions/gone/ws"), nil)
	require.Error(t, err)
	require.NotNil(t, wsResp)
	assert.Equal(t, http.StatusNotFound, wsResp.StatusCode)

	assert.Equal(t, 0, hub.Subscribers("gone"))
}
