package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/store"
)

func TestVoteLedger_ReplaceNotAccumulate(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()
	f.add(t, sess, "u1", "playing")
	e := f.add(t, sess, "u1", "A")

	ledger := f.queue.ledger
	tally, err := ledger.CastVote(ctx, e.ID, "voter", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)

	tally, err = ledger.CastVote(ctx, e.ID, "voter", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)

	tally, err = ledger.CastVote(ctx, strings.ToUpper(e.ID), "VOTER", -1)
	require.NoError(t, err)
	assert.Equal(t, -1, tally)

	ballots, err := ledger.Ballots(ctx, sess.ID, "Voter")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{e.ID: -1}, ballots)

	got, err := ledger.Tally(ctx, strings.ToUpper(e.ID))
	require.NoError(t, err)
	assert.Equal(t, -1, got)

	tallies, err := ledger.Tallies(ctx, strings.ToUpper(sess.ID))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{e.ID: -1}, tallies)
}

func TestVoteLedger_Errors(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()
	playing := f.add(t, sess, "u1", "playing")
	ledger := f.queue.ledger

	_, err := ledger.CastVote(ctx, playing.ID, "voter", 0)
	assert.ErrorIs(t, err, queue.ErrInvalidVote)

	_, err = ledger.CastVote(ctx, "nope", "voter", 1)
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)

	// the playing entry still takes votes
	tally, err := ledger.CastVote(ctx, playing.ID, "voter", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)

	_, err = f.queue.SkipCurrent(ctx, sess.ID, sess.HostID)
	require.NoError(t, err)
	_, err = ledger.CastVote(ctx, playing.ID, "voter", 1)
	assert.ErrorIs(t, err, queue.ErrEntryNotVotable)

	// ballots on a retired entry no longer count
	tally, err = ledger.Tally(ctx, playing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, tally)
}

func TestEntryIDsAreCanonical(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	e := f.add(t, sess, "u1", "A")
	assert.Equal(t, queue.CanonicalID(e.ID), e.ID)
}

func TestVoteLedger_WithTxJoinsTransaction(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()
	f.add(t, sess, "u1", "playing")
	e := f.add(t, sess, "u1", "A")

	rollback := errors.New("rollback")
	err := f.store.InTx(ctx, func(q *store.Queries) error {
		ledger := f.queue.ledger.WithTx(q)
		tally, err := ledger.CastVote(ctx, e.ID, "voter", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, tally)

		tallies, err := ledger.Tallies(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, tallies[e.ID])
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	tally, err := f.queue.ledger.Tally(ctx, e.ID)
	require.NoError(t, err)
	assert.Zero(t, tally)
}
