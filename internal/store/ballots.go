package store

import (
	"context"
	"fmt"
	"time"

	"github.com/queueit/backend/internal/queue"
)

// UpsertBallot records voterID's ballot on entryID, replacing any earlier
// ballot from the same voter.
func (q *Queries) UpsertBallot(ctx context.Context, entryID, voterID string, value int, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ballots (entry_id, voter_id, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entry_id, voter_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		queue.CanonicalID(entryID), queue.CanonicalID(voterID), value, toUnix(at))
	if err != nil {
		return classify(fmt.Errorf("upsert ballot: %w", err))
	}
	return nil
}

// EntryTally sums the live ballots of one entry. Ballots on entries that
// left the queued/playing states no longer count.
func (q *Queries) EntryTally(ctx context.Context, entryID string) (int, error) {
	var tally int
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(b.value), 0)
		FROM ballots b
		JOIN queue_entries e ON e.id = b.entry_id
		WHERE b.entry_id = ? AND e.status IN ('queued', 'playing')`,
		queue.CanonicalID(entryID)).Scan(&tally)
	if err != nil {
		return 0, classify(fmt.Errorf("tally entry: %w", err))
	}
	return tally, nil
}

// SessionTallies returns the live tally of every active entry in a session
// that has at least one ballot, keyed by canonical entry id.
func (q *Queries) SessionTallies(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT b.entry_id, SUM(b.value)
		FROM ballots b
		JOIN queue_entries e ON e.id = b.entry_id
		WHERE e.session_id = ? AND e.status IN ('queued', 'playing')
		GROUP BY b.entry_id`, queue.CanonicalID(sessionID))
	if err != nil {
		return nil, classify(fmt.Errorf("session tallies: %w", err))
	}
	defer rows.Close()

	tallies := make(map[string]int)
	for rows.Next() {
		var (
			id    string
			tally int
		)
		if err := rows.Scan(&id, &tally); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies[queue.CanonicalID(id)] = tally
	}
	return tallies, classify(rows.Err())
}

// VoterBallots returns voterID's live ballots in a session keyed by
// canonical entry id.
func (q *Queries) VoterBallots(ctx context.Context, sessionID, voterID string) (map[string]int, error) {
	votes := make(map[string]int)
	if voterID == "" {
		return votes, nil
	}
	rows, err := q.db.QueryContext(ctx, `
		SELECT b.entry_id, b.value
		FROM ballots b
		JOIN queue_entries e ON e.id = b.entry_id
		WHERE e.session_id = ? AND b.voter_id = ? AND e.status IN ('queued', 'playing')`,
		queue.CanonicalID(sessionID), queue.CanonicalID(voterID))
	if err != nil {
		return nil, classify(fmt.Errorf("voter ballots: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			value int
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan ballot: %w", err)
		}
		votes[queue.CanonicalID(id)] = value
	}
	return votes, classify(rows.Err())
}
