package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	spotifyAPIBase  = "https://api.spotify.com/v1"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// SpotifyResolver looks tracks up through the Spotify Web API using the
// client-credentials flow. The access token is cached until shortly before
// it expires.
type SpotifyResolver struct {
	clientID     string
	clientSecret string
	apiBase      string
	tokenURL     string
	httpClient   *http.Client

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

type spotifyTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type spotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	DurationMS  int64           `json:"duration_ms"`
	Album       spotifyAlbum    `json:"album"`
	Artists     []spotifyArtist `json:"artists"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
}

type spotifyAlbum struct {
	Name   string         `json:"name"`
	Images []spotifyImage `json:"images"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// NewSpotifyResolver creates a resolver against the public Spotify endpoints.
func NewSpotifyResolver(clientID, clientSecret string) *SpotifyResolver {
	return &SpotifyResolver{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiBase:      spotifyAPIBase,
		tokenURL:     spotifyTokenURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithEndpoints overrides the API and token URLs.
func (s *SpotifyResolver) WithEndpoints(apiBase, tokenURL string) *SpotifyResolver {
	s.apiBase = strings.TrimRight(apiBase, "/")
	s.tokenURL = tokenURL
	return s
}

// Enabled reports whether credentials are configured.
func (s *SpotifyResolver) Enabled() bool {
	return s.clientID != "" && s.clientSecret != ""
}

// Resolve fetches the track by ID. Only Spotify references are handled.
func (s *SpotifyResolver) Resolve(ctx context.Context, ref SongRef) (Song, error) {
	if ref.Source != SourceSpotify || !s.Enabled() {
		return Song{}, ErrUnsupportedSource
	}
	track, err := s.getTrack(ctx, strings.TrimSpace(ref.ID))
	if err != nil {
		return Song{}, err
	}

	artists := make([]string, len(track.Artists))
	for i, a := range track.Artists {
		artists[i] = a.Name
	}
	var artwork string
	if len(track.Album.Images) > 0 {
		artwork = track.Album.Images[0].URL
	}

	return Song{
		ExternalID: track.ID,
		Source:     SourceSpotify,
		ISRC:       track.ExternalIDs.ISRC,
		Title:      track.Name,
		Artists:    strings.Join(artists, " & "),
		Album:      track.Album.Name,
		DurationMS: track.DurationMS,
		ArtworkURL: artwork,
	}, nil
}

func (s *SpotifyResolver) getAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed: %s", string(body))
	}

	var tokenResp spotifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	s.token = tokenResp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return s.token, nil
}

func (s *SpotifyResolver) getTrack(ctx context.Context, trackID string) (*spotifyTrack, error) {
	if trackID == "" {
		return nil, ErrIncomplete
	}
	token, err := s.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	trackURL := fmt.Sprintf("%s/tracks/%s", s.apiBase, url.PathEscape(trackID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create track request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("track request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, trackID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("track request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var track spotifyTrack
	if err := json.NewDecoder(resp.Body).Decode(&track); err != nil {
		return nil, fmt.Errorf("failed to decode track response: %w", err)
	}

	return &track, nil
}
