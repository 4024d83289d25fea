// Package client keeps a member's optimistic view of a session in step with
// the server: local overlays for in-flight votes, adds and skips, merged
// with hub events and polled snapshots.
package client

//go:generate mockgen -destination=mocks/mock_api.go -package=mocks github.com/queueit/backend/internal/client API

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
)

// API is the subset of the REST surface a session member drives.
type API interface {
	State(ctx context.Context) (models.StateResponse, error)
	AddSong(ctx context.Context, req models.AddSongRequest) (models.QueueEntryResponse, error)
	Vote(ctx context.Context, entryID string, value int) (models.VoteResponse, error)
	SongFinished(ctx context.Context, entryID string) (models.AdvanceResponse, error)
	Skip(ctx context.Context) (models.AdvanceResponse, error)
}

// APIError is a non-2xx response. It unwraps to the matching domain error
// so callers can use errors.Is and queue.NeedsRefresh.
type APIError struct {
	Status  int
	Code    string
	Message string
	Refresh bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"session_not_found":  queue.ErrSessionNotFound,
	"entry_not_found":    queue.ErrEntryNotFound,
	"song_not_found":     catalog.ErrNotFound,
	"not_authorized":     queue.ErrNotAuthorized,
	"not_member":         queue.ErrNotMember,
	"stale_advance":      queue.ErrStaleAdvance,
	"invalid_transition": queue.ErrInvalidTransition,
	"entry_not_votable":  queue.ErrEntryNotVotable,
	"session_locked":     queue.ErrSessionLocked,
	"invalid_vote":       queue.ErrInvalidVote,
	"join_code_taken":    queue.ErrJoinCodeTaken,
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

// NeedsRefresh reports whether err means the local view is out of date.
func NeedsRefresh(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Refresh {
		return true
	}
	return queue.NeedsRefresh(err)
}

// retryable reports whether a failed request may be sent again: transport
// failures and 5xx responses, never domain rejections.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}

// HTTPClient implements API against a QueueIT server for one session.
type HTTPClient struct {
	baseURL    string
	sessionID  string
	token      string
	httpClient *http.Client
	retryDelay time.Duration
}

// NewHTTPClient creates a client authenticated with a session token.
func NewHTTPClient(baseURL, sessionID, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		sessionID:  sessionID,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
	}
}

func (c *HTTPClient) sessionPath(suffix string) string {
	return c.baseURL + "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body models.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Error, Refresh: body.Refresh}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) State(ctx context.Context) (models.StateResponse, error) {
	var out models.StateResponse
	err := c.do(ctx, http.MethodGet, c.sessionPath("/state"), nil, &out)
	return out, err
}

func (c *HTTPClient) AddSong(ctx context.Context, req models.AddSongRequest) (models.QueueEntryResponse, error) {
	var out models.QueueEntryResponse
	err := c.do(ctx, http.MethodPost, c.sessionPath("/queue"), req, &out)
	return out, err
}

func (c *HTTPClient) Vote(ctx context.Context, entryID string, value int) (models.VoteResponse, error) {
	var out models.VoteResponse
	path := c.sessionPath("/queue/" + url.PathEscape(entryID) + "/vote")
	err := c.do(ctx, http.MethodPost, path, models.VoteRequest{Value: value}, &out)
	return out, err
}

// SongFinished reports the end of entryID. A transport failure or 5xx is
// retried exactly once after a fixed delay; the server rejects a duplicate
// with a stale-advance error, so the retry cannot skip an extra song.
func (c *HTTPClient) SongFinished(ctx context.Context, entryID string) (models.AdvanceResponse, error) {
	var out models.AdvanceResponse
	req := models.SongFinishedRequest{EntryID: entryID}
	err := c.do(ctx, http.MethodPost, c.sessionPath("/finished"), req, &out)
	if err == nil || !retryable(err) {
		return out, err
	}

	slog.WarnContext(ctx, "song finished failed, retrying", slog.String("entry_id", entryID), slog.Any("error", err))
	t := time.NewTimer(c.retryDelay)
	select {
	case <-ctx.Done():
		t.Stop()
		return out, ctx.Err()
	case <-t.C:
	}
	err = c.do(ctx, http.MethodPost, c.sessionPath("/finished"), req, &out)
	return out, err
}

func (c *HTTPClient) Skip(ctx context.Context) (models.AdvanceResponse, error) {
	var out models.AdvanceResponse
	err := c.do(ctx, http.MethodPost, c.sessionPath("/skip"), nil, &out)
	return out, err
}
