// Package queue holds the domain model of a listening session: sessions,
// queue entries and their lifecycle, the ranking rule, and the events that
// describe committed changes.
package queue

import (
	"strings"
	"time"

	"github.com/queueit/backend/internal/catalog"
)

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusPlaying Status = "playing"
	StatusPlayed  Status = "played"
	StatusSkipped Status = "skipped"
)

// transitions lists every legal forward move. Anything else is rejected.
var transitions = map[Status][]Status{
	StatusQueued:  {StatusPlaying},
	StatusPlaying: {StatusPlayed, StatusSkipped},
}

// CanTransition reports whether an entry may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Votable reports whether ballots on an entry in this status still count.
func (s Status) Votable() bool {
	return s == StatusQueued || s == StatusPlaying
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusPlayed || s == StatusSkipped
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusPlaying, StatusPlayed, StatusSkipped:
		return true
	}
	return false
}

// AdvanceReason says why the current entry is leaving the playing state.
type AdvanceReason string

const (
	ReasonFinished AdvanceReason = "finished"
	ReasonSkipped  AdvanceReason = "skipped"
)

// Status returns the status the outgoing entry ends up in.
func (r AdvanceReason) Status() Status {
	if r == ReasonSkipped {
		return StatusSkipped
	}
	return StatusPlayed
}

// CanonicalID normalizes identifiers (entry, voter, session ids and join
// codes) to the one casing used on every read and write path.
func CanonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Session is one live listening party.
type Session struct {
	ID             string
	JoinCode       string
	HostID         string
	HostName       string
	HostSecretHash string
	CurrentEntryID string // empty when nothing is playing
	Locked         bool
	CreatedAt      time.Time
	EndedAt        *time.Time
}

// Active reports whether the session has not been ended.
func (s Session) Active() bool {
	return s.EndedAt == nil
}

// IsHost reports whether userID is the session's host.
func (s Session) IsHost(userID string) bool {
	return CanonicalID(userID) == CanonicalID(s.HostID)
}

// Member is a participant of a session.
type Member struct {
	SessionID   string
	UserID      string
	DisplayName string
	JoinedAt    time.Time
}

// Entry is one song's presence in a session's queue.
type Entry struct {
	ID          string
	SessionID   string
	Song        catalog.Song
	AddedBy     string
	AddedByName string
	Status      Status
	CreatedAt   time.Time
}
