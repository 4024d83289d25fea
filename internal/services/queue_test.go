package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/database"
	"github.com/queueit/backend/internal/queue"
	"github.com/queueit/backend/internal/store"
)

type recordingHub struct {
	mu     sync.Mutex
	events map[string][]queue.Event
	closed []string
}

func newRecordingHub() *recordingHub {
	return &recordingHub{events: make(map[string][]queue.Event)}
}

func (h *recordingHub) Publish(sessionID string, ev queue.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[sessionID] = append(h.events[sessionID], ev)
}

func (h *recordingHub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, sessionID)
}

func (h *recordingHub) kinds(sessionID string) []queue.EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	var kinds []queue.EventKind
	for _, ev := range h.events[sessionID] {
		kinds = append(kinds, ev.Kind())
	}
	return kinds
}

func (h *recordingHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = make(map[string][]queue.Event)
}

type fixture struct {
	store    *store.Store
	hub      *recordingHub
	queue    *QueueService
	sessions *SessionService
	clock    time.Time
	mu       sync.Mutex
}

// newFixture wires the services against a fresh database. The clock ticks
// one millisecond per read so creation order is strict.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))

	st := store.NewStore(db)
	f := &fixture{store: st, hub: newRecordingHub(), clock: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
	retry := RetryPolicy{Attempts: 2, Delay: time.Millisecond}
	f.queue = NewQueueService(st, NewVoteLedger(st), catalog.StaticResolver{}, f.hub, retry)
	f.queue.now = f.tick
	f.queue.ledger.now = f.tick
	f.sessions = NewSessionService(st, NewJoinCodeService(st), retry)
	f.sessions.now = f.tick
	return f
}

func (f *fixture) tick() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock
}

func (f *fixture) session(t *testing.T) queue.Session {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), CreateSessionParams{HostName: "Host", HostSecret: "secret"})
	require.NoError(t, err)
	return sess
}

func (f *fixture) member(t *testing.T, sess queue.Session, userID string) {
	t.Helper()
	_, _, err := f.sessions.Join(context.Background(), sess.JoinCode, userID, userID)
	require.NoError(t, err)
}

func (f *fixture) add(t *testing.T, sess queue.Session, userID, title string) queue.Entry {
	t.Helper()
	e, err := f.queue.AddSong(context.Background(), sess.ID, songRef(title), userID)
	require.NoError(t, err)
	return e
}

func songRef(title string) catalog.SongRef {
	return catalog.SongRef{ID: "track-" + title, Source: catalog.SourceSpotify, Title: title, Artists: "Artist"}
}

func countPlaying(t *testing.T, st *store.Store, sessionID string) int {
	t.Helper()
	entries, err := st.ListActiveEntries(context.Background(), sessionID)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.Status == queue.StatusPlaying {
			n++
		}
	}
	return n
}

func TestAddSong_FirstSongAutoStarts(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")

	first := f.add(t, sess, "u1", "A")
	second := f.add(t, sess, "u1", "B")

	assert.Equal(t, queue.StatusPlaying, first.Status)
	assert.Equal(t, queue.StatusQueued, second.Status)
	assert.Equal(t, "u1", first.AddedByName)

	snap, err := f.queue.CurrentState(context.Background(), sess.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, snap.Current)
	assert.Equal(t, first.ID, snap.Current.ID)
	require.Len(t, snap.Queue, 1)
	assert.Equal(t, second.ID, snap.Queue[0].ID)

	assert.Equal(t, []queue.EventKind{
		queue.KindQueueChanged, queue.KindNowPlayingChanged,
		queue.KindQueueChanged,
	}, f.hub.kinds(sess.ID))
}

func TestAddSong_ConcurrentOnEmptyQueue(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	f.member(t, sess, "u2")

	const adders = 8
	var wg sync.WaitGroup
	entries := make([]queue.Entry, adders)
	errs := make([]error, adders)
	for i := 0; i < adders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "u1"
			if i%2 == 1 {
				user = "u2"
			}
			entries[i], errs[i] = f.queue.AddSong(context.Background(), sess.ID, songRef(fmt.Sprintf("song-%d", i)), user)
		}(i)
	}
	wg.Wait()

	playing := 0
	for i := range entries {
		require.NoError(t, errs[i])
		if entries[i].Status == queue.StatusPlaying {
			playing++
		}
	}
	assert.Equal(t, 1, playing)
	assert.Equal(t, 1, countPlaying(t, f.store, sess.ID))

	snap, err := f.queue.CurrentState(context.Background(), sess.ID, "")
	require.NoError(t, err)
	assert.Len(t, snap.Queue, adders-1)
}

func TestAddSong_Rejections(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()

	_, err := f.queue.AddSong(ctx, sess.ID, songRef("A"), "stranger")
	assert.ErrorIs(t, err, queue.ErrNotMember)

	_, err = f.queue.AddSong(ctx, "missing", songRef("A"), "u1")
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)

	_, err = f.queue.AddSong(ctx, sess.ID, catalog.SongRef{ID: "x"}, "u1")
	assert.ErrorIs(t, err, catalog.ErrIncomplete)

	require.NoError(t, f.queue.SetLocked(ctx, sess.ID, sess.HostID, true))
	_, err = f.queue.AddSong(ctx, sess.ID, songRef("A"), "u1")
	assert.ErrorIs(t, err, queue.ErrSessionLocked)

	// the host may still add while locked
	e, err := f.queue.AddSong(ctx, sess.ID, songRef("A"), sess.HostID)
	require.NoError(t, err)
	assert.Equal(t, "Host", e.AddedByName)
}

func TestRecordSongFinished(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()

	a := f.add(t, sess, "u1", "A")
	b := f.add(t, sess, "u1", "B")
	c := f.add(t, sess, "u1", "C")
	_, _, err := f.queue.CastVoteAndRerank(ctx, sess.ID, c.ID, "u1", 1)
	require.NoError(t, err)

	res, err := f.queue.RecordSongFinished(ctx, sess.ID, sess.HostID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Current)
	assert.Equal(t, c.ID, res.Current.ID)
	require.Len(t, res.Queue, 1)
	assert.Equal(t, b.ID, res.Queue[0].ID)

	got, err := f.store.GetEntry(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPlayed, got.Status)
	assert.Equal(t, 1, countPlaying(t, f.store, sess.ID))
}

func TestRecordSongFinished_DuplicateIsStale(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()

	a := f.add(t, sess, "u1", "A")
	b := f.add(t, sess, "u1", "B")
	f.add(t, sess, "u1", "C")

	_, err := f.queue.RecordSongFinished(ctx, sess.ID, sess.HostID, a.ID)
	require.NoError(t, err)
	before, err := f.queue.CurrentState(ctx, sess.ID, "")
	require.NoError(t, err)
	f.hub.reset()

	_, err = f.queue.RecordSongFinished(ctx, sess.ID, sess.HostID, a.ID)
	assert.ErrorIs(t, err, queue.ErrStaleAdvance)
	assert.True(t, queue.NeedsRefresh(err))

	after, err := f.queue.CurrentState(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, b.ID, after.Current.ID)
	assert.Empty(t, f.hub.kinds(sess.ID))
}

func TestRecordSongFinished_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()

	a := f.add(t, sess, "u1", "A")
	f.add(t, sess, "u1", "B")
	f.add(t, sess, "u1", "C")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.queue.RecordSongFinished(ctx, sess.ID, sess.HostID, a.ID)
		}(i)
	}
	wg.Wait()

	stale := 0
	for _, err := range errs {
		if errors.Is(err, queue.ErrStaleAdvance) {
			stale++
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, 1, stale)

	snap, err := f.queue.CurrentState(ctx, sess.ID, "")
	require.NoError(t, err)
	assert.Len(t, snap.Queue, 1)
}

func TestAdvance_HostOnly(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()
	a := f.add(t, sess, "u1", "A")

	_, err := f.queue.RecordSongFinished(ctx, sess.ID, "u1", a.ID)
	assert.ErrorIs(t, err, queue.ErrNotAuthorized)
	_, err = f.queue.SkipCurrent(ctx, sess.ID, "u1")
	assert.ErrorIs(t, err, queue.ErrNotAuthorized)
	assert.ErrorIs(t, f.queue.SetLocked(ctx, sess.ID, "u1", true), queue.ErrNotAuthorized)
	assert.ErrorIs(t, f.queue.EndSession(ctx, sess.ID, "u1"), queue.ErrNotAuthorized)
}

func TestSkipCurrent(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	ctx := context.Background()

	a := f.add(t, sess, "u1", "A")
	f.hub.reset()

	res, err := f.queue.SkipCurrent(ctx, sess.ID, sess.HostID)
	require.NoError(t, err)
	assert.Nil(t, res.Current)

	got, err := f.store.GetEntry(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusSkipped, got.Status)
	assert.Equal(t, []queue.EventKind{queue.KindNowPlayingChanged, queue.KindQueueChanged}, f.hub.kinds(sess.ID))

	// skipping with nothing playing and nothing queued is a no-op advance
	res, err = f.queue.SkipCurrent(ctx, sess.ID, sess.HostID)
	require.NoError(t, err)
	assert.Nil(t, res.Current)

	// a song added after the queue drained starts immediately
	b := f.add(t, sess, "u1", "B")
	assert.Equal(t, queue.StatusPlaying, b.Status)
}

func TestCastVoteAndRerank(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	f.member(t, sess, "u1")
	f.member(t, sess, "u2")
	ctx := context.Background()

	f.add(t, sess, "u1", "playing")
	a := f.add(t, sess, "u1", "A")
	b := f.add(t, sess, "u1", "B")
	f.hub.reset()

	tally, order, err := f.queue.CastVoteAndRerank(ctx, sess.ID, b.ID, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, tally)
	require.Len(t, order, 2)
	assert.Equal(t, b.ID, order[0].ID)

	// same voter again replaces the ballot, upper-cased ids included
	tally, order, err = f.queue.CastVoteAndRerank(ctx, sess.ID, strings.ToUpper(b.ID), "U1", -1)
	require.NoError(t, err)
	assert.Equal(t, -1, tally)
	assert.Equal(t, a.ID, order[0].ID)

	kinds := f.hub.kinds(sess.ID)
	assert.Equal(t, []queue.EventKind{
		queue.KindVoteChanged, queue.KindQueueChanged,
		queue.KindVoteChanged, queue.KindQueueChanged,
	}, kinds)

	snap, err := f.queue.CurrentState(ctx, sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{b.ID: -1}, snap.MyVotes)
}

func TestCastVoteAndRerank_Rejections(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	other := f.session(t)
	f.member(t, sess, "u1")
	f.member(t, other, "u1")
	ctx := context.Background()

	a := f.add(t, sess, "u1", "A")
	f.add(t, sess, "u1", "B")
	foreign := f.add(t, other, "u1", "X")

	_, _, err := f.queue.CastVoteAndRerank(ctx, sess.ID, a.ID, "u1", 2)
	assert.ErrorIs(t, err, queue.ErrInvalidVote)

	_, _, err = f.queue.CastVoteAndRerank(ctx, sess.ID, "missing", "u1", 1)
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)

	_, _, err = f.queue.CastVoteAndRerank(ctx, sess.ID, foreign.ID, "u1", 1)
	assert.ErrorIs(t, err, queue.ErrEntryNotFound)

	_, _, err = f.queue.CastVoteAndRerank(ctx, sess.ID, a.ID, "stranger", 1)
	assert.ErrorIs(t, err, queue.ErrNotMember)

	_, err = f.queue.RecordSongFinished(ctx, sess.ID, sess.HostID, a.ID)
	require.NoError(t, err)
	_, _, err = f.queue.CastVoteAndRerank(ctx, sess.ID, a.ID, "u1", 1)
	assert.ErrorIs(t, err, queue.ErrEntryNotVotable)
}

func TestCurrentState_RankingScenario(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		f.member(t, sess, u)
	}

	f.add(t, sess, "u1", "playing")
	b := f.add(t, sess, "u1", "B")
	a := f.add(t, sess, "u1", "A")
	c := f.add(t, sess, "u1", "C")

	votes := map[string][]string{
		a.ID: {"u1", "u2"},
		b.ID: {"u1", "u2"},
		c.ID: {"u1", "u2", "u3"},
	}
	for entryID, voters := range votes {
		for _, v := range voters {
			_, _, err := f.queue.CastVoteAndRerank(ctx, sess.ID, entryID, v, 1)
			require.NoError(t, err)
		}
	}

	snap, err := f.queue.CurrentState(ctx, sess.ID, "")
	require.NoError(t, err)
	var got []string
	for _, e := range snap.Queue {
		got = append(got, e.ID)
	}
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, got)
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	sess := f.session(t)
	ctx := context.Background()

	require.NoError(t, f.queue.EndSession(ctx, sess.ID, sess.HostID))
	assert.Equal(t, []string{sess.ID}, f.hub.closed)

	_, err := f.queue.CurrentState(ctx, sess.ID, "")
	assert.ErrorIs(t, err, queue.ErrSessionNotFound)
	assert.ErrorIs(t, f.queue.EndSession(ctx, sess.ID, sess.HostID), queue.ErrSessionNotFound)
}
