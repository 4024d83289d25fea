package models

import (
	"github.com/queueit/backend/internal/queue"
)

func NewQueueEntryResponse(e queue.RankedEntry) QueueEntryResponse {
	return QueueEntryResponse{
		ID:          e.ID,
		SessionID:   e.SessionID,
		Song:        e.Song,
		AddedBy:     e.AddedBy,
		AddedByName: e.AddedByName,
		Status:      e.Status,
		Tally:       e.Tally,
		CreatedAt:   e.CreatedAt,
	}
}

// ToRankedEntry converts a wire entry back into the domain type.
func (r QueueEntryResponse) ToRankedEntry() queue.RankedEntry {
	return queue.RankedEntry{
		Entry: queue.Entry{
			ID:          queue.CanonicalID(r.ID),
			SessionID:   queue.CanonicalID(r.SessionID),
			Song:        r.Song,
			AddedBy:     r.AddedBy,
			AddedByName: r.AddedByName,
			Status:      r.Status,
			CreatedAt:   r.CreatedAt,
		},
		Tally: r.Tally,
	}
}

func newEntryPtr(e *queue.RankedEntry) *QueueEntryResponse {
	if e == nil {
		return nil
	}
	resp := NewQueueEntryResponse(*e)
	return &resp
}

func NewQueueResponse(entries []queue.RankedEntry) []QueueEntryResponse {
	out := make([]QueueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewQueueEntryResponse(e))
	}
	return out
}

func NewSessionResponse(s queue.Session, viewerID string, memberCount int) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		JoinCode:       s.JoinCode,
		HostName:       s.HostName,
		IsLocked:       s.Locked,
		IsHost:         s.IsHost(viewerID),
		MemberCount:    memberCount,
		CurrentEntryID: s.CurrentEntryID,
		CreatedAt:      s.CreatedAt,
	}
}

func NewStateResponse(snap queue.Snapshot, viewerID string) StateResponse {
	return StateResponse{
		Session:  NewSessionResponse(snap.Session, viewerID, 0),
		ViewerID: viewerID,
		Current:  newEntryPtr(snap.Current),
		Queue:    NewQueueResponse(snap.Queue),
		MyVotes:  snap.MyVotes,
	}
}

func NewAdvanceResponse(current *queue.RankedEntry, q []queue.RankedEntry) AdvanceResponse {
	return AdvanceResponse{Current: newEntryPtr(current), Queue: NewQueueResponse(q)}
}

// ToSnapshot converts a state response back into the domain snapshot.
// Fields the wire format omits (host id, secrets) stay empty.
func (r StateResponse) ToSnapshot() queue.Snapshot {
	snap := queue.Snapshot{
		Session: queue.Session{
			ID:             queue.CanonicalID(r.Session.ID),
			JoinCode:       r.Session.JoinCode,
			HostName:       r.Session.HostName,
			CurrentEntryID: queue.CanonicalID(r.Session.CurrentEntryID),
			Locked:         r.Session.IsLocked,
			CreatedAt:      r.Session.CreatedAt,
		},
		Queue:   make([]queue.RankedEntry, 0, len(r.Queue)),
		MyVotes: make(map[string]int, len(r.MyVotes)),
	}
	if r.Current != nil {
		cur := r.Current.ToRankedEntry()
		snap.Current = &cur
	}
	for _, e := range r.Queue {
		snap.Queue = append(snap.Queue, e.ToRankedEntry())
	}
	for id, v := range r.MyVotes {
		snap.MyVotes[queue.CanonicalID(id)] = v
	}
	return snap
}
