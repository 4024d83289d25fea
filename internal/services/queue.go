package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/store"
)

// maxAdvanceAttempts bounds how often an unasserted advance re-reads the
// pointer after losing a compare-and-set.
const maxAdvanceAttempts = 3

// Publisher fans committed events out to a session's subscribers.
// Publish must not block.
type Publisher interface {
	Publish(sessionID string, ev queue.Event)
	CloseSession(sessionID string)
}

// QueueService is the only writer of a session's playback state: the current
// entry pointer, entry lifecycles and the lock flag. Mutations of one session
// are serialized by a per-session lock and each one commits in a single
// transaction. Events are published before the lock is released, so
// subscribers see them in commit order.
type QueueService struct {
	store    *store.Store
	ledger   *VoteLedger
	resolver catalog.Resolver
	hub      Publisher
	locks    *sessionLocks
	retry    RetryPolicy
	now      func() time.Time
	newID    func() string
}

// NewQueueService wires the state machine to its collaborators.
func NewQueueService(st *store.Store, ledger *VoteLedger, resolver catalog.Resolver, hub Publisher, retry RetryPolicy) *QueueService {
	return &QueueService{
		store:    st,
		ledger:   ledger,
		resolver: resolver,
		hub:      hub,
		locks:    newSessionLocks(),
		retry:    retry,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func activeSession(ctx context.Context, q *store.Queries, sessionID string) (queue.Session, error) {
	sess, err := q.GetSession(ctx, sessionID)
	if err != nil {
		return queue.Session{}, err
	}
	if !sess.Active() {
		return queue.Session{}, queue.ErrSessionNotFound
	}
	return sess, nil
}

// AddSong resolves ref and appends it to the session's queue. When nothing
// is playing the new entry is promoted straight to playing, unless another
// entry claims the empty pointer first.
func (s *QueueService) AddSong(ctx context.Context, sessionID string, ref catalog.SongRef, adderID string) (queue.Entry, error) {
	song, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return queue.Entry{}, fmt.Errorf("resolve song: %w", err)
	}

	var (
		entry   queue.Entry
		started bool
	)
	err = s.retry.Do(ctx, "add_song", func() error {
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		entry = queue.Entry{
			ID:        s.newID(),
			SessionID: queue.CanonicalID(sessionID),
			Song:      song,
			AddedBy:   queue.CanonicalID(adderID),
			Status:    queue.StatusQueued,
			CreatedAt: s.now().UTC(),
		}
		started = false

		err := s.store.InTx(ctx, func(q *store.Queries) error {
			sess, err := activeSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			if sess.IsHost(adderID) {
				entry.AddedByName = sess.HostName
			} else {
				if sess.Locked {
					return queue.ErrSessionLocked
				}
				member, err := q.GetMember(ctx, sessionID, adderID)
				if err != nil {
					return err
				}
				entry.AddedByName = member.DisplayName
			}

			if err := q.UpsertSong(ctx, song); err != nil {
				return err
			}
			if err := q.InsertEntry(ctx, entry); err != nil {
				return err
			}
			if sess.CurrentEntryID != "" {
				return nil
			}
			started, err = q.ClaimCurrent(ctx, sessionID, entry.ID)
			return err
		})
		if err != nil {
			return err
		}

		if started {
			entry.Status = queue.StatusPlaying
		}
		s.hub.Publish(entry.SessionID, queue.QueueChanged{})
		if started {
			s.hub.Publish(entry.SessionID, queue.NowPlayingChanged{Entry: &queue.RankedEntry{Entry: entry}})
		}
		return nil
	})
	if err != nil {
		return queue.Entry{}, err
	}

	slog.InfoContext(ctx, "song added",
		slog.String("session_id", entry.SessionID),
		slog.String("entry_id", entry.ID),
		slog.Bool("auto_started", started))
	return entry, nil
}

// RecordSongFinished marks the current entry played and promotes the next
// one. Only the host may call it. assertedEntryID is the entry the host
// believes just finished; if the pointer has already moved on, the call
// fails with queue.ErrStaleAdvance and changes nothing, which makes a
// retried notification harmless.
func (s *QueueService) RecordSongFinished(ctx context.Context, sessionID, asserterID, assertedEntryID string) (store.AdvanceResult, error) {
	return s.advance(ctx, sessionID, asserterID, queue.ReasonFinished, assertedEntryID)
}

// SkipCurrent marks the current entry skipped and promotes the next one.
// Only the host may call it.
func (s *QueueService) SkipCurrent(ctx context.Context, sessionID, requesterID string) (store.AdvanceResult, error) {
	return s.advance(ctx, sessionID, requesterID, queue.ReasonSkipped, "")
}

func (s *QueueService) advance(ctx context.Context, sessionID, requesterID string, reason queue.AdvanceReason, asserted string) (store.AdvanceResult, error) {
	var res store.AdvanceResult
	err := s.retry.Do(ctx, "advance_"+string(reason), func() error {
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		for attempt := 1; ; attempt++ {
			err := s.store.InTx(ctx, func(q *store.Queries) error {
				sess, err := activeSession(ctx, q, sessionID)
				if err != nil {
					return err
				}
				if !sess.IsHost(requesterID) {
					return queue.ErrNotAuthorized
				}
				expected := sess.CurrentEntryID
				if asserted != "" && queue.CanonicalID(asserted) != queue.CanonicalID(expected) {
					return queue.ErrStaleAdvance
				}
				res, err = q.Advance(ctx, sessionID, expected, reason)
				return err
			})
			if errors.Is(err, store.ErrConflict) {
				if asserted != "" {
					return queue.ErrStaleAdvance
				}
				if attempt < maxAdvanceAttempts {
					continue
				}
				return fmt.Errorf("advance queue: %w", err)
			}
			if err != nil {
				return err
			}
			break
		}

		id := queue.CanonicalID(sessionID)
		s.hub.Publish(id, queue.NowPlayingChanged{Entry: res.Current})
		s.hub.Publish(id, queue.QueueChanged{})
		return nil
	})
	if err != nil {
		return store.AdvanceResult{}, err
	}

	next := ""
	if res.Current != nil {
		next = res.Current.ID
	}
	slog.InfoContext(ctx, "queue advanced",
		slog.String("session_id", queue.CanonicalID(sessionID)),
		slog.String("reason", string(reason)),
		slog.String("previous_entry_id", res.PreviousID),
		slog.String("current_entry_id", next))
	return res, nil
}

// CastVoteAndRerank records a ballot and returns the entry's new tally
// together with the queue order computed in the same critical section.
func (s *QueueService) CastVoteAndRerank(ctx context.Context, sessionID, entryID, voterID string, value int) (int, []queue.RankedEntry, error) {
	if err := queue.ValidateVote(value); err != nil {
		return 0, nil, err
	}

	var (
		tally int
		order []queue.RankedEntry
	)
	err := s.retry.Do(ctx, "cast_vote", func() error {
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		err := s.store.InTx(ctx, func(q *store.Queries) error {
			sess, err := activeSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			if !sess.IsHost(voterID) {
				if _, err := q.GetMember(ctx, sessionID, voterID); err != nil {
					return err
				}
			}
			entry, err := q.GetEntry(ctx, entryID)
			if err != nil {
				return err
			}
			if queue.CanonicalID(entry.SessionID) != sess.ID {
				return queue.ErrEntryNotFound
			}

			ledger := s.ledger.WithTx(q)
			tally, err = ledger.CastVote(ctx, entryID, voterID, value)
			if err != nil {
				return err
			}
			entries, err := q.ListActiveEntries(ctx, sessionID)
			if err != nil {
				return err
			}
			tallies, err := ledger.Tallies(ctx, sessionID)
			if err != nil {
				return err
			}
			order = queue.Rank(entries, tallies)
			return nil
		})
		if err != nil {
			return err
		}

		id := queue.CanonicalID(sessionID)
		s.hub.Publish(id, queue.VoteChanged{EntryID: queue.CanonicalID(entryID), Tally: tally})
		s.hub.Publish(id, queue.QueueChanged{})
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return tally, order, nil
}

// CurrentState returns a consistent snapshot of the session for viewerID.
// Snapshots of one session may be read concurrently with each other.
func (s *QueueService) CurrentState(ctx context.Context, sessionID, viewerID string) (queue.Snapshot, error) {
	var snap queue.Snapshot
	err := s.retry.Do(ctx, "current_state", func() error {
		unlock := s.locks.RLock(sessionID)
		defer unlock()

		return s.store.InTx(ctx, func(q *store.Queries) error {
			sess, err := activeSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			entries, err := q.ListActiveEntries(ctx, sessionID)
			if err != nil {
				return err
			}
			ledger := s.ledger.WithTx(q)
			tallies, err := ledger.Tallies(ctx, sessionID)
			if err != nil {
				return err
			}
			mine, err := ledger.Ballots(ctx, sessionID, viewerID)
			if err != nil {
				return err
			}
			snap = queue.BuildSnapshot(sess, entries, tallies, mine)
			return nil
		})
	})
	return snap, err
}

// SetLocked toggles whether non-host members may add songs.
func (s *QueueService) SetLocked(ctx context.Context, sessionID, requesterID string, locked bool) error {
	return s.retry.Do(ctx, "set_locked", func() error {
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		err := s.store.InTx(ctx, func(q *store.Queries) error {
			sess, err := activeSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			if !sess.IsHost(requesterID) {
				return queue.ErrNotAuthorized
			}
			return q.SetSessionLocked(ctx, sessionID, locked)
		})
		if err != nil {
			return err
		}
		s.hub.Publish(queue.CanonicalID(sessionID), queue.QueueChanged{})
		return nil
	})
}

// EndSession archives the session and disconnects its subscribers.
func (s *QueueService) EndSession(ctx context.Context, sessionID, requesterID string) error {
	return s.retry.Do(ctx, "end_session", func() error {
		unlock := s.locks.Lock(sessionID)
		defer unlock()

		err := s.store.InTx(ctx, func(q *store.Queries) error {
			sess, err := activeSession(ctx, q, sessionID)
			if err != nil {
				return err
			}
			if !sess.IsHost(requesterID) {
				return queue.ErrNotAuthorized
			}
			return q.EndSession(ctx, sessionID, s.now())
		})
		if err != nil {
			return err
		}
		s.hub.CloseSession(queue.CanonicalID(sessionID))
		return nil
	})
}
