package services

import (
	"context"
	"time"

	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/store"
)

// VoteLedger records one ballot per (entry, voter) and reports tallies.
// Every id is canonicalized before it reaches the store, on reads and writes.
//
// A ledger bound to a transaction with WithTx runs inside it; otherwise each
// call opens its own.
type VoteLedger struct {
	store *store.Store
	q     *store.Queries
	now   func() time.Time
}

// NewVoteLedger creates a ledger over the given store.
func NewVoteLedger(st *store.Store) *VoteLedger {
	return &VoteLedger{store: st, now: time.Now}
}

// WithTx returns a ledger whose calls join the transaction behind q.
func (l *VoteLedger) WithTx(q *store.Queries) *VoteLedger {
	return &VoteLedger{store: l.store, q: q, now: l.now}
}

func (l *VoteLedger) run(ctx context.Context, fn func(q *store.Queries) error) error {
	if l.q != nil {
		return fn(l.q)
	}
	return l.store.InTx(ctx, fn)
}

// CastVote records voterID's ballot on entryID, replacing any earlier one,
// and returns the entry's fresh tally. Only queued or playing entries take
// votes.
func (l *VoteLedger) CastVote(ctx context.Context, entryID, voterID string, value int) (int, error) {
	if err := queue.ValidateVote(value); err != nil {
		return 0, err
	}
	var tally int
	err := l.run(ctx, func(q *store.Queries) error {
		entry, err := q.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if !entry.Status.Votable() {
			return queue.ErrEntryNotVotable
		}
		if err := q.UpsertBallot(ctx, queue.CanonicalID(entryID), queue.CanonicalID(voterID), value, l.now()); err != nil {
			return err
		}
		tally, err = l.WithTx(q).Tally(ctx, entryID)
		return err
	})
	return tally, err
}

// Tally returns the live tally of one entry.
func (l *VoteLedger) Tally(ctx context.Context, entryID string) (int, error) {
	var tally int
	err := l.run(ctx, func(q *store.Queries) error {
		var err error
		tally, err = q.EntryTally(ctx, queue.CanonicalID(entryID))
		return err
	})
	return tally, err
}

// Tallies returns the live tallies of a session keyed by canonical entry id.
func (l *VoteLedger) Tallies(ctx context.Context, sessionID string) (map[string]int, error) {
	var tallies map[string]int
	err := l.run(ctx, func(q *store.Queries) error {
		var err error
		tallies, err = q.SessionTallies(ctx, queue.CanonicalID(sessionID))
		return err
	})
	return tallies, err
}

// Ballots returns voterID's live ballots in a session keyed by entry id.
func (l *VoteLedger) Ballots(ctx context.Context, sessionID, voterID string) (map[string]int, error) {
	var ballots map[string]int
	err := l.run(ctx, func(q *store.Queries) error {
		var err error
		ballots, err = q.VoterBallots(ctx, queue.CanonicalID(sessionID), queue.CanonicalID(voterID))
		return err
	})
	return ballots, err
}
