package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/services"
	"github.com/queueit/backend/internal/store"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{queue.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{queue.ErrEntryNotFound, http.StatusNotFound, "entry_not_found"},
	{catalog.ErrNotFound, http.StatusNotFound, "song_not_found"},
	{queue.ErrNotAuthorized, http.StatusForbidden, "not_authorized"},
	{queue.ErrNotMember, http.StatusForbidden, "not_member"},
	{queue.ErrStaleAdvance, http.StatusConflict, "stale_advance"},
	{queue.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{queue.ErrEntryNotVotable, http.StatusConflict, "entry_not_votable"},
	{queue.ErrJoinCodeTaken, http.StatusConflict, "join_code_taken"},
	{queue.ErrSessionLocked, http.StatusLocked, "session_locked"},
	{queue.ErrInvalidVote, http.StatusBadRequest, "invalid_vote"},
	{services.ErrInvalidJoinCode, http.StatusBadRequest, "invalid_join_code"},
	{catalog.ErrIncomplete, http.StatusBadRequest, "incomplete_song"},
	{catalog.ErrUnsupportedSource, http.StatusBadRequest, "unsupported_source"},
	{store.ErrTransient, http.StatusServiceUnavailable, "store_unavailable"},
}

// classifyError maps a service error to an HTTP status and a stable code.
func classifyError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeServiceError renders err with its mapped status. Domain errors carry
// their own message; anything unmapped is logged and hidden behind message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, message string, err error) {
	status, code := classifyError(err)
	body := models.ErrorResponse{Error: err.Error(), Code: code, Refresh: queue.NeedsRefresh(err)}
	if status >= 500 {
		body.Error = message
	}
	writeErrorBody(w, status, body)
	logCause(ctx, status, message, err)
}
