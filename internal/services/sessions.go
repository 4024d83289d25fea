package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/queueit/backend/internal/crypto"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/store"
)

// CreateSessionParams describes a new session. JoinCode and HostSecret are
// optional; a code is generated when empty and a session without a secret
// cannot be rejoined by its host.
type CreateSessionParams struct {
	HostName   string
	JoinCode   string
	HostSecret string
}

// SessionDetails is a session plus derived counters.
type SessionDetails struct {
	Session     queue.Session
	MemberCount int
}

// SessionService manages the session lifecycle outside of playback:
// creating, joining, rejoining and leaving.
type SessionService struct {
	store *store.Store
	codes *JoinCodeService
	retry RetryPolicy
	now   func() time.Time
}

// NewSessionService creates a SessionService.
func NewSessionService(st *store.Store, codes *JoinCodeService, retry RetryPolicy) *SessionService {
	return &SessionService{store: st, codes: codes, retry: retry, now: time.Now}
}

// Create starts a session and registers the host as its first member.
func (s *SessionService) Create(ctx context.Context, p CreateSessionParams) (queue.Session, error) {
	sess := queue.Session{
		ID:        uuid.NewString(),
		HostID:    uuid.NewString(),
		HostName:  strings.TrimSpace(p.HostName),
		CreatedAt: s.now().UTC(),
	}
	if sess.HostName == "" {
		sess.HostName = s.codes.GenerateName()
	}

	if p.JoinCode != "" {
		code, err := NormalizeJoinCode(p.JoinCode)
		if err != nil {
			return queue.Session{}, err
		}
		sess.JoinCode = code
	} else {
		code, err := s.codes.Generate(ctx)
		if err != nil {
			return queue.Session{}, err
		}
		sess.JoinCode = code
	}

	if p.HostSecret != "" {
		hash, err := crypto.HashHostSecret(p.HostSecret, sess.ID)
		if err != nil {
			return queue.Session{}, fmt.Errorf("hash host secret: %w", err)
		}
		sess.HostSecretHash = hash
	}

	err := s.retry.Do(ctx, "create_session", func() error {
		return s.store.InTx(ctx, func(q *store.Queries) error {
			if err := q.CreateSession(ctx, sess); err != nil {
				return err
			}
			return q.AddMember(ctx, queue.Member{
				SessionID:   sess.ID,
				UserID:      sess.HostID,
				DisplayName: sess.HostName,
				JoinedAt:    sess.CreatedAt,
			})
		})
	})
	if err != nil {
		return queue.Session{}, err
	}

	slog.InfoContext(ctx, "session created", slog.String("session_id", sess.ID))
	return sess, nil
}

// Join adds a member to the active session with the given join code. An
// empty userID creates a new identity; a known one refreshes the display
// name.
func (s *SessionService) Join(ctx context.Context, joinCode, userID, displayName string) (queue.Session, queue.Member, error) {
	if userID == "" {
		userID = uuid.NewString()
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = s.codes.GenerateName()
	}

	var (
		sess   queue.Session
		member queue.Member
	)
	err := s.retry.Do(ctx, "join_session", func() error {
		return s.store.InTx(ctx, func(q *store.Queries) error {
			var err error
			sess, err = q.GetSessionByJoinCode(ctx, joinCode)
			if err != nil {
				return err
			}
			member = queue.Member{
				SessionID:   sess.ID,
				UserID:      queue.CanonicalID(userID),
				DisplayName: name,
				JoinedAt:    s.now().UTC(),
			}
			return q.AddMember(ctx, member)
		})
	})
	if err != nil {
		return queue.Session{}, queue.Member{}, err
	}
	return sess, member, nil
}

// Rejoin lets a host who lost their token reclaim the session with the
// secret chosen at creation.
func (s *SessionService) Rejoin(ctx context.Context, joinCode, hostSecret string) (queue.Session, error) {
	sess, err := s.store.GetSessionByJoinCode(ctx, joinCode)
	if err != nil {
		return queue.Session{}, err
	}
	ok, err := crypto.VerifyHostSecret(hostSecret, sess.ID, sess.HostSecretHash)
	if err != nil {
		return queue.Session{}, fmt.Errorf("verify host secret: %w", err)
	}
	if !ok {
		return queue.Session{}, queue.ErrNotAuthorized
	}
	return sess, nil
}

// Leave removes a member. The host keeps control of the session even after
// leaving; only EndSession retires it.
func (s *SessionService) Leave(ctx context.Context, sessionID, userID string) error {
	return s.retry.Do(ctx, "leave_session", func() error {
		return s.store.RemoveMember(ctx, sessionID, userID)
	})
}

// Get returns an active session with its member count.
func (s *SessionService) Get(ctx context.Context, sessionID string) (SessionDetails, error) {
	var details SessionDetails
	err := s.retry.Do(ctx, "get_session", func() error {
		return s.store.InTx(ctx, func(q *store.Queries) error {
			sess, err := activeSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			n, err := q.CountMembers(ctx, sessionID)
			if err != nil {
				return err
			}
			details = SessionDetails{Session: sess, MemberCount: n}
			return nil
		})
	})
	return details, err
}
