package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/queueit/backend/internal/models"
	"github.com/queueit/backend/internal/queue"
)

// DefaultPollInterval is used when the server does not advertise one.
const DefaultPollInterval = 5 * time.Second

// Session drives a Projection from user actions, the event stream and,
// when the stream is unavailable, periodic snapshot polling. Network calls
// run on their own goroutines; user-facing methods never block on them.
type Session struct {
	api          API
	dial         Dialer
	proj         *Projection
	pollInterval time.Duration

	errs    chan error
	changed chan struct{}
	wg      sync.WaitGroup
}

// NewSession creates a driver. dial may be nil for polling only.
func NewSession(api API, dial Dialer, pollInterval time.Duration) *Session {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Session{
		api:          api,
		dial:         dial,
		proj:         NewProjection(),
		pollInterval: pollInterval,
		errs:         make(chan error, 16),
		changed:      make(chan struct{}, 1),
	}
}

// View returns the current projection.
func (s *Session) View() View {
	return s.proj.View()
}

// Errors carries failures the user should see. Old errors are dropped if
// nobody reads them.
func (s *Session) Errors() <-chan error {
	return s.errs
}

// Changed is signalled, coalesced, whenever the view may have changed.
func (s *Session) Changed() <-chan struct{} {
	return s.changed
}

// Wait blocks until every in-flight request has settled.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Session) report(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

// Refresh loads a full snapshot.
func (s *Session) Refresh(ctx context.Context) error {
	state, err := s.api.State(ctx)
	if err != nil {
		return err
	}
	s.proj.ApplySnapshot(state)
	s.notify()
	return nil
}

func (s *Session) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Vote overlays value on entryID at once and sends it. A vote made while
// another for the same entry is in flight is sent after it settles.
func (s *Session) Vote(ctx context.Context, entryID string, value int) {
	if err := queue.ValidateVote(value); err != nil {
		s.report(err)
		return
	}
	send := s.proj.BeginVote(entryID, value)
	s.notify()
	if !send {
		return
	}
	s.spawn(func() { s.sendVote(ctx, entryID, value) })
}

func (s *Session) sendVote(ctx context.Context, entryID string, value int) {
	for {
		resp, err := s.api.Vote(ctx, entryID, value)
		next, again := s.proj.ResolveVote(entryID, resp, err)
		s.notify()
		if err != nil {
			s.report(err)
			if NeedsRefresh(err) {
				s.refreshQuietly(ctx)
			}
			return
		}
		if !again {
			return
		}
		value = next
	}
}

// AddSong shows req as pending at once and sends it.
func (s *Session) AddSong(ctx context.Context, req models.AddSongRequest) string {
	localID := s.proj.BeginAdd(req)
	s.notify()
	s.spawn(func() {
		entry, err := s.api.AddSong(ctx, req)
		if err != nil {
			s.proj.FailAdd(localID)
			s.notify()
			s.report(err)
			return
		}
		s.proj.ConfirmAdd(localID, entry)
		s.notify()
	})
	return localID
}

// Skip hides now playing at once and asks the server to skip it.
func (s *Session) Skip(ctx context.Context) {
	s.proj.BeginSkip()
	s.notify()
	s.spawn(func() {
		resp, err := s.api.Skip(ctx)
		if err != nil {
			s.proj.FailSkip()
			s.notify()
			s.report(err)
			if NeedsRefresh(err) {
				s.refreshQuietly(ctx)
			}
			return
		}
		s.proj.ApplyAdvance(resp)
		s.notify()
	})
}

// SongFinished reports that the host's player finished the current entry.
// It is synchronous: the host's player waits for the next entry.
func (s *Session) SongFinished(ctx context.Context) error {
	entryID := s.proj.CurrentEntryID()
	if entryID == "" {
		return nil
	}
	resp, err := s.api.SongFinished(ctx, entryID)
	if err != nil {
		if NeedsRefresh(err) {
			s.refreshQuietly(ctx)
		}
		return err
	}
	s.proj.ApplyAdvance(resp)
	s.notify()
	return nil
}

func (s *Session) refreshQuietly(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "snapshot refresh failed", slog.Any("error", err))
	}
}

// Run keeps the projection current until ctx ends. It loads a snapshot,
// then follows the event stream; whenever the stream is unavailable it
// polls every poll interval and retries the stream.
func (s *Session) Run(ctx context.Context) error {
	s.refreshQuietly(ctx)
	for {
		if s.dial != nil {
			err := s.follow(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.WarnContext(ctx, "event stream unavailable, polling", slog.Any("error", err))
			// Events may have been missed while disconnected.
			s.refreshQuietly(ctx)
		}

		t := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		s.refreshQuietly(ctx)
	}
}

// follow consumes the event stream until it fails or ctx ends.
func (s *Session) follow(ctx context.Context) error {
	stream, err := s.dial(ctx)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-done:
		}
	}()
	defer stream.Close()

	// A snapshot taken after subscribing covers anything committed before.
	s.refreshQuietly(ctx)

	h := &eventApplier{ctx: ctx, s: s}
	for {
		ev, err := stream.Next()
		if err != nil {
			return err
		}
		ev.Accept(h)
		s.notify()
	}
}

// eventApplier merges hub events into the projection.
type eventApplier struct {
	ctx context.Context
	s   *Session
}

func (h *eventApplier) OnQueueChanged(queue.QueueChanged) {
	h.s.refreshQuietly(h.ctx)
}

func (h *eventApplier) OnVoteChanged(ev queue.VoteChanged) {
	h.s.proj.ApplyVoteChanged(ev.EntryID, ev.Tally)
}

func (h *eventApplier) OnNowPlayingChanged(ev queue.NowPlayingChanged) {
	if ev.Entry == nil {
		h.s.proj.ApplyNowPlaying(nil)
		return
	}
	entry := models.NewQueueEntryResponse(*ev.Entry)
	h.s.proj.ApplyNowPlaying(&entry)
}
