package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/queueit/backend/internal/logging"
	"github.com/queueit/backend/internal/middleware"
	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/services"
)

// SessionHandler manages session lifecycle: creation, joining, host controls
// and ending.
type SessionHandler struct {
	sessions    *services.SessionService
	queue       *services.QueueService
	authService *services.AuthService
}

// NewSessionHandler creates a SessionHandler with the required dependencies.
func NewSessionHandler(sessions *services.SessionService, q *services.QueueService, authService *services.AuthService) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		queue:       q,
		authService: authService,
	}
}

// Create starts a new session with the caller as host.
// Returns the session ID, join code and a host JWT.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.sessions.Create(r.Context(), services.CreateSessionParams{
		HostName:   req.HostName,
		JoinCode:   req.JoinCode,
		HostSecret: req.HostSecret,
	})
	if err != nil {
		writeServiceError(r.Context(), w, "failed to create session", err)
		return
	}

	token, err := h.authService.GenerateToken(sess.ID, sess.HostID, sess.HostName, services.RoleHost)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{
		SessionID: sess.ID,
		JoinCode:  sess.JoinCode,
		UserID:    sess.HostID,
		Token:     token,
	})
}

// Join adds the caller to a session by join code and returns a member JWT.
// A caller presenting a token for the same session keeps its identity.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req models.JoinSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JoinCode == "" {
		writeError(w, http.StatusBadRequest, "joinCode is required")
		return
	}

	userID := h.existingUserID(r)
	sess, member, err := h.sessions.Join(r.Context(), req.JoinCode, userID, req.DisplayName)
	if errors.Is(err, queue.ErrSessionNotFound) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadJoinCode, "join with unknown join code")
	}
	if err != nil {
		writeServiceError(r.Context(), w, "failed to join session", err)
		return
	}

	token, err := h.authService.GenerateToken(sess.ID, member.UserID, member.DisplayName, services.RoleMember)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, models.JoinSessionResponse{
		SessionID:   sess.ID,
		JoinCode:    sess.JoinCode,
		UserID:      member.UserID,
		DisplayName: member.DisplayName,
		Token:       token,
	})
}

// existingUserID returns the subject of a valid bearer token, if any. Join is
// a public route, so the token is optional and never rejected here.
func (h *SessionHandler) existingUserID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return ""
	}
	claims, err := h.authService.ValidateToken(header[len(prefix):])
	if err != nil || claims.Role != services.RoleMember {
		return ""
	}
	return claims.UserID()
}

// Rejoin issues a fresh host token to a host presenting the session's secret.
func (h *SessionHandler) Rejoin(w http.ResponseWriter, r *http.Request) {
	var req models.RejoinSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.JoinCode == "" || req.HostSecret == "" {
		writeError(w, http.StatusBadRequest, "joinCode and hostSecret are required")
		return
	}

	sess, err := h.sessions.Rejoin(r.Context(), req.JoinCode, req.HostSecret)
	if errors.Is(err, queue.ErrNotAuthorized) {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadHostSecret, "invalid host secret on rejoin")
		writeError(w, http.StatusUnauthorized, "invalid join code or host secret")
		return
	}
	if err != nil {
		writeServiceError(r.Context(), w, "failed to rejoin session", err)
		return
	}

	token, err := h.authService.GenerateToken(sess.ID, sess.HostID, sess.HostName, services.RoleHost)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, models.CreateSessionResponse{
		SessionID: sess.ID,
		JoinCode:  sess.JoinCode,
		UserID:    sess.HostID,
		Token:     token,
	})
}

// Get returns session info for any member.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	details, err := h.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(r.Context(), w, "failed to get session", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSessionResponse(details.Session, claims.UserID(), details.MemberCount))
}

// Leave removes the caller from the session's member list.
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	if err := h.sessions.Leave(r.Context(), chi.URLParam(r, "id"), claims.UserID()); err != nil {
		writeServiceError(r.Context(), w, "failed to leave session", err)
		return
	}

	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

// Control applies the host's lock toggle and skip request. Host-only.
func (h *SessionHandler) Control(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	claims := middleware.GetClaims(r.Context())

	var req models.ControlSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsLocked == nil && !req.SkipCurrentTrack {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.IsLocked != nil {
		if err := h.queue.SetLocked(r.Context(), sessionID, claims.UserID(), *req.IsLocked); err != nil {
			writeServiceError(r.Context(), w, "failed to update session", err)
			return
		}
	}

	if req.SkipCurrentTrack {
		res, err := h.queue.SkipCurrent(r.Context(), sessionID, claims.UserID())
		if err != nil {
			writeServiceError(r.Context(), w, "failed to skip track", err)
			return
		}
		writeJSON(w, http.StatusOK, models.NewAdvanceResponse(res.Current, res.Queue))
		return
	}

	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

// End archives the session and disconnects every subscriber. Host-only.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())

	if err := h.queue.EndSession(r.Context(), chi.URLParam(r, "id"), claims.UserID()); err != nil {
		writeServiceError(r.Context(), w, "failed to end session", err)
		return
	}

	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}
