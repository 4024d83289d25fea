package models

import (
	"time"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/queue"
)

// Session management
type CreateSessionRequest struct {
	HostName   string `json:"hostName"`
	JoinCode   string `json:"joinCode,omitempty"`
	HostSecret string `json:"hostSecret,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	JoinCode  string `json:"joinCode"`
	UserID    string `json:"userId"`
	Token     string `json:"token"`
}

type JoinSessionRequest struct {
	JoinCode    string `json:"joinCode"`
	DisplayName string `json:"displayName,omitempty"`
}

type JoinSessionResponse struct {
	SessionID   string `json:"sessionId"`
	JoinCode    string `json:"joinCode"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token"`
}

type RejoinSessionRequest struct {
	JoinCode   string `json:"joinCode"`
	HostSecret string `json:"hostSecret"`
}

type SessionResponse struct {
	ID             string    `json:"id"`
	JoinCode       string    `json:"joinCode"`
	HostName       string    `json:"hostName"`
	IsLocked       bool      `json:"isLocked"`
	IsHost         bool      `json:"isHost"`
	MemberCount    int       `json:"memberCount,omitempty"`
	CurrentEntryID string    `json:"currentEntryId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ControlSessionRequest combines the host's lock and skip controls.
type ControlSessionRequest struct {
	IsLocked         *bool `json:"isLocked,omitempty"`
	SkipCurrentTrack bool  `json:"skipCurrentTrack,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// Queue
type AddSongRequest struct {
	ID         string `json:"id"`
	Source     string `json:"source,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	Title      string `json:"title,omitempty"`
	Artists    string `json:"artists,omitempty"`
	Album      string `json:"album,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// ToSongRef validates the source tag and builds a catalog reference.
func (r AddSongRequest) ToSongRef() (catalog.SongRef, error) {
	source, err := catalog.ParseSource(r.Source)
	if err != nil {
		return catalog.SongRef{}, err
	}
	return catalog.SongRef{
		ID:         r.ID,
		Source:     source,
		ISRC:       r.ISRC,
		Title:      r.Title,
		Artists:    r.Artists,
		Album:      r.Album,
		DurationMS: r.DurationMS,
		ArtworkURL: r.ArtworkURL,
	}, nil
}

type QueueEntryResponse struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"sessionId"`
	Song        catalog.Song `json:"song"`
	AddedBy     string       `json:"addedBy"`
	AddedByName string       `json:"addedByName,omitempty"`
	Status      queue.Status `json:"status"`
	Tally       int          `json:"tally"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type VoteRequest struct {
	Value int `json:"value"`
}

type VoteResponse struct {
	EntryID string               `json:"entryId"`
	Tally   int                  `json:"tally"`
	Queue   []QueueEntryResponse `json:"queue"`
}

type SongFinishedRequest struct {
	EntryID string `json:"entryId"`
}

type AdvanceResponse struct {
	Current *QueueEntryResponse  `json:"current"`
	Queue   []QueueEntryResponse `json:"queue"`
}

// StateResponse is the full snapshot used for initial load and polling.
type StateResponse struct {
	Session  SessionResponse      `json:"session"`
	ViewerID string               `json:"viewerId,omitempty"`
	Current  *QueueEntryResponse  `json:"current"`
	Queue    []QueueEntryResponse `json:"queue"`
	MyVotes  map[string]int       `json:"myVotes"`
}

// Error response. Refresh tells the client to reload the snapshot before
// retrying.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
}

type ConfigResponse struct {
	SpotifyClientID string `json:"spotifyClientId,omitempty"`
	PollIntervalMs  int64  `json:"pollIntervalMs"`
}
