package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/queueit/backend/internal/queue"
)

const sessionColumns = `id, join_code, host_id, host_name, host_secret_hash, current_entry_id, is_locked, created_at, ended_at`

func scanSession(row interface{ Scan(...interface{}) error }) (queue.Session, error) {
	var (
		s         queue.Session
		current   sql.NullString
		locked    int
		createdAt int64
		endedAt   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.JoinCode, &s.HostID, &s.HostName, &s.HostSecretHash, &current, &locked, &createdAt, &endedAt); err != nil {
		return queue.Session{}, err
	}
	s.CurrentEntryID = current.String
	s.Locked = locked != 0
	s.CreatedAt = fromUnix(createdAt)
	if endedAt.Valid {
		t := fromUnix(endedAt.Int64)
		s.EndedAt = &t
	}
	return s, nil
}

// CreateSession inserts a new session. A duplicate join code yields
// queue.ErrJoinCodeTaken.
func (q *Queries) CreateSession(ctx context.Context, s queue.Session) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, join_code, host_id, host_name, host_secret_hash, current_entry_id, is_locked, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`,
		queue.CanonicalID(s.ID), queue.CanonicalID(s.JoinCode), queue.CanonicalID(s.HostID),
		s.HostName, s.HostSecretHash, boolToInt(s.Locked), toUnix(s.CreatedAt))
	if isUniqueViolation(err) {
		return queue.ErrJoinCodeTaken
	}
	if err != nil {
		return classify(fmt.Errorf("insert session: %w", err))
	}
	return nil
}

// GetSession loads a session by id.
func (q *Queries) GetSession(ctx context.Context, id string) (queue.Session, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, queue.CanonicalID(id))
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Session{}, queue.ErrSessionNotFound
	}
	if err != nil {
		return queue.Session{}, classify(fmt.Errorf("get session: %w", err))
	}
	return s, nil
}

// GetSessionByJoinCode loads an active session by its join code.
func (q *Queries) GetSessionByJoinCode(ctx context.Context, code string) (queue.Session, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE join_code = ? AND ended_at IS NULL`,
		queue.CanonicalID(code))
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Session{}, queue.ErrSessionNotFound
	}
	if err != nil {
		return queue.Session{}, classify(fmt.Errorf("get session by join code: %w", err))
	}
	return s, nil
}

// JoinCodeExists reports whether any session, ended or not, uses code.
func (q *Queries) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE join_code = ?`, queue.CanonicalID(code)).Scan(&n)
	if err != nil {
		return false, classify(fmt.Errorf("check join code: %w", err))
	}
	return n > 0, nil
}

// SetSessionLocked sets the lock flag.
func (q *Queries) SetSessionLocked(ctx context.Context, id string, locked bool) error {
	res, err := q.db.ExecContext(ctx, `UPDATE sessions SET is_locked = ? WHERE id = ?`, boolToInt(locked), queue.CanonicalID(id))
	if err != nil {
		return classify(fmt.Errorf("set session lock: %w", err))
	}
	return requireRow(res, queue.ErrSessionNotFound)
}

// EndSession archives a session.
func (q *Queries) EndSession(ctx context.Context, id string, at time.Time) error {
	res, err := q.db.ExecContext(ctx, `UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, toUnix(at), queue.CanonicalID(id))
	if err != nil {
		return classify(fmt.Errorf("end session: %w", err))
	}
	return requireRow(res, queue.ErrSessionNotFound)
}

// SwapCurrentEntry moves the session's pointer from expected to next, only
// if it still holds expected. Empty strings stand for NULL. A lost race
// returns ErrConflict.
func (q *Queries) SwapCurrentEntry(ctx context.Context, sessionID, expected, next string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE sessions SET current_entry_id = ? WHERE id = ? AND current_entry_id IS ?`,
		nullString(queue.CanonicalID(next)), queue.CanonicalID(sessionID), nullString(queue.CanonicalID(expected)))
	if err != nil {
		return classify(fmt.Errorf("swap current entry: %w", err))
	}
	return requireRow(res, ErrConflict)
}

// AddMember records userID as a member of the session, updating the
// display name if already present.
func (q *Queries) AddMember(ctx context.Context, m queue.Member) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO session_members (session_id, user_id, display_name, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, user_id) DO UPDATE SET display_name = excluded.display_name`,
		queue.CanonicalID(m.SessionID), queue.CanonicalID(m.UserID), m.DisplayName, toUnix(m.JoinedAt))
	if err != nil {
		return classify(fmt.Errorf("add member: %w", err))
	}
	return nil
}

// RemoveMember deletes a membership.
func (q *Queries) RemoveMember(ctx context.Context, sessionID, userID string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM session_members WHERE session_id = ? AND user_id = ?`,
		queue.CanonicalID(sessionID), queue.CanonicalID(userID))
	if err != nil {
		return classify(fmt.Errorf("remove member: %w", err))
	}
	return requireRow(res, queue.ErrNotMember)
}

// GetMember loads a membership or returns queue.ErrNotMember.
func (q *Queries) GetMember(ctx context.Context, sessionID, userID string) (queue.Member, error) {
	var (
		m        queue.Member
		joinedAt int64
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, display_name, joined_at FROM session_members
		WHERE session_id = ? AND user_id = ?`,
		queue.CanonicalID(sessionID), queue.CanonicalID(userID)).Scan(&m.SessionID, &m.UserID, &m.DisplayName, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Member{}, queue.ErrNotMember
	}
	if err != nil {
		return queue.Member{}, classify(fmt.Errorf("get member: %w", err))
	}
	m.JoinedAt = fromUnix(joinedAt)
	return m, nil
}

// CountMembers returns how many users are in the session.
func (q *Queries) CountMembers(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM session_members WHERE session_id = ?`, queue.CanonicalID(sessionID)).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("count members: %w", err))
	}
	return n, nil
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
