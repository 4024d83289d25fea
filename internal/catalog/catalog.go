// Package catalog resolves caller-supplied track references into canonical
// song records. Search and catalog matching live outside this service; the
// queue only needs display metadata for the entries it holds.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Source identifies the music service a track identifier belongs to.
type Source string

const (
	SourceSpotify    Source = "spotify"
	SourceAppleMusic Source = "apple_music"
)

var (
	ErrNotFound          = errors.New("song not found in catalog")
	ErrUnsupportedSource = errors.New("unsupported song source")
	ErrIncomplete        = errors.New("song reference is missing metadata")
)

// ParseSource normalizes a source tag. An empty tag defaults to Spotify.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceSpotify:
		return SourceSpotify, nil
	case SourceAppleMusic, "apple", "applemusic":
		return SourceAppleMusic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, s)
}

// SongRef is what a client sends when adding a song: the track identifier,
// its source, and optionally the metadata the client already has from search.
type SongRef struct {
	ID         string
	Source     Source
	ISRC       string
	Title      string
	Artists    string
	Album      string
	DurationMS int64
	ArtworkURL string
}

// HasMetadata reports whether the reference carries enough to display an entry.
func (r SongRef) HasMetadata() bool {
	return r.Title != "" && r.Artists != ""
}

// Song is a canonical catalog record.
type Song struct {
	ExternalID string `json:"id"`
	Source     Source `json:"source"`
	ISRC       string `json:"isrc,omitempty"`
	Title      string `json:"title"`
	Artists    string `json:"artists"`
	Album      string `json:"album"`
	DurationMS int64  `json:"durationMs"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// Resolver turns a SongRef into a Song.
type Resolver interface {
	Resolve(ctx context.Context, ref SongRef) (Song, error)
}

// StaticResolver trusts the metadata carried by the reference itself.
type StaticResolver struct{}

func (StaticResolver) Resolve(_ context.Context, ref SongRef) (Song, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return Song{}, fmt.Errorf("%w: id is required", ErrIncomplete)
	}
	if !ref.HasMetadata() {
		return Song{}, ErrIncomplete
	}
	return Song{
		ExternalID: strings.TrimSpace(ref.ID),
		Source:     ref.Source,
		ISRC:       ref.ISRC,
		Title:      ref.Title,
		Artists:    ref.Artists,
		Album:      ref.Album,
		DurationMS: ref.DurationMS,
		ArtworkURL: ref.ArtworkURL,
	}, nil
}

// Chain tries each resolver in order and returns the first success.
// ErrIncomplete and ErrUnsupportedSource fall through to the next resolver;
// any other error is returned as-is.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, ref SongRef) (Song, error) {
	lastErr := ErrNotFound
	for _, r := range c {
		song, err := r.Resolve(ctx, ref)
		if err == nil {
			return song, nil
		}
		if errors.Is(err, ErrIncomplete) || errors.Is(err, ErrUnsupportedSource) {
			lastErr = err
			continue
		}
		return Song{}, err
	}
	return Song{}, lastErr
}
