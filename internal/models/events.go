package models

import (
	"encoding/json"
	"fmt"

	"github.com/queueit/backend/internal/queue"
)

// Envelope is the wire form of a queue event shared by the SSE and
// WebSocket transports: {"type": "...", "data": {...}}.
type Envelope struct {
	Type queue.EventKind `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type VoteChangedData struct {
	EntryID string `json:"entryId"`
	Tally   int    `json:"tally"`
}

type NowPlayingChangedData struct {
	Entry *QueueEntryResponse `json:"entry"`
}

// envelopeEncoder builds the envelope for each variant. Because it
// implements queue.EventHandler, adding a variant fails to compile here.
type envelopeEncoder struct {
	env Envelope
	err error
}

func (e *envelopeEncoder) OnQueueChanged(queue.QueueChanged) {
	e.env = Envelope{Type: queue.KindQueueChanged}
}

func (e *envelopeEncoder) OnVoteChanged(ev queue.VoteChanged) {
	e.env, e.err = envelopeWith(queue.KindVoteChanged, VoteChangedData{EntryID: ev.EntryID, Tally: ev.Tally})
}

func (e *envelopeEncoder) OnNowPlayingChanged(ev queue.NowPlayingChanged) {
	e.env, e.err = envelopeWith(queue.KindNowPlayingChanged, NowPlayingChangedData{Entry: newEntryPtr(ev.Entry)})
}

func envelopeWith(kind queue.EventKind, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", kind, err)
	}
	return Envelope{Type: kind, Data: raw}, nil
}

// EncodeEvent converts a domain event into its envelope.
func EncodeEvent(ev queue.Event) (Envelope, error) {
	enc := &envelopeEncoder{}
	ev.Accept(enc)
	return enc.env, enc.err
}

// DecodeEvent converts an envelope back into a domain event. Unknown types
// are an error.
func DecodeEvent(env Envelope) (queue.Event, error) {
	switch env.Type {
	case queue.KindQueueChanged:
		return queue.QueueChanged{}, nil
	case queue.KindVoteChanged:
		var d VoteChangedData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return queue.VoteChanged{EntryID: queue.CanonicalID(d.EntryID), Tally: d.Tally}, nil
	case queue.KindNowPlayingChanged:
		var d NowPlayingChangedData
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &d); err != nil {
				return nil, fmt.Errorf("decode %s: %w", env.Type, err)
			}
		}
		if d.Entry == nil {
			return queue.NowPlayingChanged{}, nil
		}
		entry := d.Entry.ToRankedEntry()
		return queue.NowPlayingChanged{Entry: &entry}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", env.Type)
}
