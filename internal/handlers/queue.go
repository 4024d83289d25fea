package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queueit/backend/internal/middleware"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/services"
)

// QueueHandler exposes the session's queue: snapshots, adds, votes and
// playback advances.
type QueueHandler struct {
	queue *services.QueueService
}

// NewQueueHandler creates a QueueHandler backed by the queue state machine.
func NewQueueHandler(q *services.QueueService) *QueueHandler {
	return &QueueHandler{queue: q}
}

// State returns the full snapshot: session, now playing, ranked queue and
// the caller's own votes. Clients poll it when no event stream is available.
func (h *QueueHandler) State(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	snap, err := h.queue.CurrentState(r.Context(), chi.URLParam(r, "id"), claims.UserID())
	if err != nil {
		writeServiceError(r.Context(), w, "failed to load state", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewStateResponse(snap, claims.UserID()))
}

// AddSong appends a song to the queue.
func (h *QueueHandler) AddSong(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	var req models.AddSongRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	ref, err := req.ToSongRef()
	if err != nil {
		writeServiceError(r.Context(), w, "invalid song", err)
		return
	}

	entry, err := h.queue.AddSong(r.Context(), chi.URLParam(r, "id"), ref, claims.UserID())
	if err != nil {
		writeServiceError(r.Context(), w, "failed to add song", err)
		return
	}

	writeJSON(w, http.StatusCreated, models.NewQueueEntryResponse(queue.RankedEntry{Entry: entry}))
}

// Vote records the caller's ballot on an entry and returns the entry's new
// tally with the re-ranked queue.
func (h *QueueHandler) Vote(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	entryID := chi.URLParam(r, "entryId")

	var req models.VoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tally, order, err := h.queue.CastVoteAndRerank(r.Context(), chi.URLParam(r, "id"), entryID, claims.UserID(), req.Value)
	if err != nil {
		writeServiceError(r.Context(), w, "failed to record vote", err)
		return
	}

	writeJSON(w, http.StatusOK, models.VoteResponse{
		EntryID: queue.CanonicalID(entryID),
		Tally:   tally,
		Queue:   models.NewQueueResponse(order),
	})
}

// Finished records that the host's player reached the end of the asserted
// entry. A repeated notification for an entry that is no longer current
// returns 409 with refresh set. Host-only.
func (h *QueueHandler) Finished(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	var req models.SongFinishedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EntryID == "" {
		writeError(w, http.StatusBadRequest, "entryId is required")
		return
	}

	res, err := h.queue.RecordSongFinished(r.Context(), chi.URLParam(r, "id"), claims.UserID(), req.EntryID)
	if err != nil {
		writeServiceError(r.Context(), w, "failed to advance queue", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewAdvanceResponse(res.Current, res.Queue))
}

// Skip retires the current entry as skipped. Host-only.
func (h *QueueHandler) Skip(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	res, err := h.queue.SkipCurrent(r.Context(), chi.URLParam(r, "id"), claims.UserID())
	if err != nil {
		writeServiceError(r.Context(), w, "failed to skip track", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewAdvanceResponse(res.Current, res.Queue))
}
