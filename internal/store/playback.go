package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/queueit/backend/internal/queue"
)

// ClaimCurrent promotes entryID to playing if the session's pointer is still
// null. It reports false, leaving the entry queued, when another entry got
// there first.
func (q *Queries) ClaimCurrent(ctx context.Context, sessionID, entryID string) (bool, error) {
	err := q.SwapCurrentEntry(ctx, sessionID, "", entryID)
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := q.TransitionEntry(ctx, entryID, queue.StatusQueued, queue.StatusPlaying); err != nil {
		return false, err
	}
	return true, nil
}

// AdvanceResult describes a completed pointer swap.
type AdvanceResult struct {
	PreviousID string
	Current    *queue.RankedEntry
	Queue      []queue.RankedEntry
}

// Advance retires the entry the pointer holds (expected, which may be empty)
// with the status implied by reason, then promotes the highest ranked queued
// entry or clears the pointer. If the pointer no longer holds expected,
// nothing is written and ErrConflict is returned. Call it inside a
// transaction; the steps are only atomic together.
func (q *Queries) Advance(ctx context.Context, sessionID, expected string, reason queue.AdvanceReason) (AdvanceResult, error) {
	sess, err := q.GetSession(ctx, sessionID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if queue.CanonicalID(sess.CurrentEntryID) != queue.CanonicalID(expected) {
		return AdvanceResult{}, ErrConflict
	}

	// the old entry has to leave playing before the next one can enter it
	if expected != "" {
		if err := q.TransitionEntry(ctx, expected, queue.StatusPlaying, reason.Status()); err != nil {
			return AdvanceResult{}, fmt.Errorf("retire current entry: %w", err)
		}
	}

	entries, err := q.ListActiveEntries(ctx, sessionID)
	if err != nil {
		return AdvanceResult{}, err
	}
	tallies, err := q.SessionTallies(ctx, sessionID)
	if err != nil {
		return AdvanceResult{}, err
	}

	res := AdvanceResult{PreviousID: queue.CanonicalID(expected)}
	next, ok := queue.Next(entries, tallies)
	nextID := ""
	if ok {
		nextID = next.ID
	}
	if err := q.SwapCurrentEntry(ctx, sessionID, expected, nextID); err != nil {
		return AdvanceResult{}, err
	}
	if ok {
		if err := q.TransitionEntry(ctx, next.ID, queue.StatusQueued, queue.StatusPlaying); err != nil {
			return AdvanceResult{}, fmt.Errorf("promote next entry: %w", err)
		}
		next.Status = queue.StatusPlaying
		res.Current = &queue.RankedEntry{Entry: next, Tally: tallies[queue.CanonicalID(next.ID)]}
	}

	remaining := make([]queue.Entry, 0, len(entries))
	for _, e := range entries {
		if !ok || queue.CanonicalID(e.ID) != queue.CanonicalID(next.ID) {
			remaining = append(remaining, e)
		}
	}
	res.Queue = queue.Rank(remaining, tallies)
	return res, nil
}
