package queue

import "errors"

// Terminal domain errors. Callers compare with errors.Is.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrEntryNotFound     = errors.New("queue entry not found")
	ErrInvalidTransition = errors.New("invalid queue entry transition")
	ErrStaleAdvance      = errors.New("current entry has already advanced")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrEntryNotVotable   = errors.New("queue entry is no longer votable")
	ErrSessionLocked     = errors.New("session queue is locked")
	ErrInvalidVote       = errors.New("vote value must be +1 or -1")
	ErrJoinCodeTaken     = errors.New("join code already in use")
	ErrNotMember         = errors.New("not a member of this session")
)

// NeedsRefresh reports whether a client should reload the full snapshot
// before retrying after err.
func NeedsRefresh(err error) bool {
	return errors.Is(err, ErrStaleAdvance) || errors.Is(err, ErrInvalidTransition)
}

// ValidateVote checks a ballot value.
func ValidateVote(value int) error {
	if value != 1 && value != -1 {
		return ErrInvalidVote
	}
	return nil
}
