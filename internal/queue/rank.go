package queue

import (
	"sort"
)

// RankedEntry pairs an entry with its live tally.
type RankedEntry struct {
	Entry
	Tally int
}

// Rank orders the queued entries: tally descending, then creation time
// ascending, then canonical id. Entries in any other status (including the
// playing one) are left out. The input is not modified.
func Rank(entries []Entry, tallies map[string]int) []RankedEntry {
	ranked := make([]RankedEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status != StatusQueued {
			continue
		}
		ranked = append(ranked, RankedEntry{Entry: e, Tally: tallies[CanonicalID(e.ID)]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}

func less(a, b RankedEntry) bool {
	if a.Tally != b.Tally {
		return a.Tally > b.Tally
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return CanonicalID(a.ID) < CanonicalID(b.ID)
}

// Next returns the entry that should play next, if any.
func Next(entries []Entry, tallies map[string]int) (Entry, bool) {
	ranked := Rank(entries, tallies)
	if len(ranked) == 0 {
		return Entry{}, false
	}
	return ranked[0].Entry, true
}

// Snapshot is a consistent full read of a session's queue.
type Snapshot struct {
	Session Session
	Current *RankedEntry
	Queue   []RankedEntry
	// MyVotes holds the viewer's own ballot per canonical entry id.
	MyVotes map[string]int
}

// BuildSnapshot assembles a snapshot from one consistent read of entries,
// tallies and the viewer's ballots.
func BuildSnapshot(s Session, entries []Entry, tallies map[string]int, myVotes map[string]int) Snapshot {
	snap := Snapshot{
		Session: s,
		Queue:   Rank(entries, tallies),
		MyVotes: myVotes,
	}
	if snap.MyVotes == nil {
		snap.MyVotes = map[string]int{}
	}
	if s.CurrentEntryID == "" {
		return snap
	}
	current := CanonicalID(s.CurrentEntryID)
	for _, e := range entries {
		if CanonicalID(e.ID) == current {
			snap.Current = &RankedEntry{Entry: e, Tally: tallies[current]}
			break
		}
	}
	return snap
}
