package queue

// EventKind names an event variant on the wire.
type EventKind string

const (
	KindQueueChanged      EventKind = "queueChanged"
	KindVoteChanged       EventKind = "voteChanged"
	KindNowPlayingChanged EventKind = "nowPlayingChanged"
)

// Event is a committed session change fanned out to members. The set of
// variants is closed: only this package can implement it, and consumers
// handle variants through EventHandler so a new variant breaks every
// handler at compile time.
type Event interface {
	Kind() EventKind
	Accept(h EventHandler)
	sealed()
}

// EventHandler receives one callback per event variant.
type EventHandler interface {
	OnQueueChanged(QueueChanged)
	OnVoteChanged(VoteChanged)
	OnNowPlayingChanged(NowPlayingChanged)
}

// QueueChanged means membership or order of the queue changed; consumers
// reload the snapshot.
type QueueChanged struct{}

// VoteChanged carries the fresh tally of one entry.
type VoteChanged struct {
	EntryID string
	Tally   int
}

// NowPlayingChanged carries the new current entry, or nil when nothing plays.
type NowPlayingChanged struct {
	Entry *RankedEntry
}

func (QueueChanged) Kind() EventKind      { return KindQueueChanged }
func (VoteChanged) Kind() EventKind       { return KindVoteChanged }
func (NowPlayingChanged) Kind() EventKind { return KindNowPlayingChanged }

func (e QueueChanged) Accept(h EventHandler)      { h.OnQueueChanged(e) }
func (e VoteChanged) Accept(h EventHandler)       { h.OnVoteChanged(e) }
func (e NowPlayingChanged) Accept(h EventHandler) { h.OnNowPlayingChanged(e) }

func (QueueChanged) sealed()      {}
func (VoteChanged) sealed()       {}
func (NowPlayingChanged) sealed() {}
