package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/queueit/backend/internal/catalog"
	"github.com/queueit/backend/internal/catalog/mocks"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    catalog.Source
		wantErr bool
	}{
		{"", catalog.SourceSpotify, false},
		{"Spotify", catalog.SourceSpotify, false},
		{" apple_music ", catalog.SourceAppleMusic, false},
		{"apple", catalog.SourceAppleMusic, false},
		{"tidal", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := catalog.ParseSource(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, catalog.ErrUnsupportedSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticResolver(t *testing.T) {
	ctx := context.Background()

	song, err := catalog.StaticResolver{}.Resolve(ctx, catalog.SongRef{
		ID:         " 3n3Ppam7vgaVa1iaRUc9Lp ",
		Source:     catalog.SourceSpotify,
		Title:      "Mr. Brightside",
		Artists:    "The Killers",
		Album:      "Hot Fuss",
		DurationMS: 222075,
	})
	require.NoError(t, err)
	assert.Equal(t, "3n3Ppam7vgaVa1iaRUc9Lp", song.ExternalID)
	assert.Equal(t, "Mr. Brightside", song.Title)

	_, err = catalog.StaticResolver{}.Resolve(ctx, catalog.SongRef{ID: "x", Source: catalog.SourceSpotify})
	assert.ErrorIs(t, err, catalog.ErrIncomplete)
}

func TestChain_FallsThroughIncomplete(t *testing.T) {
	ctx := context.Background()
	ref := catalog.SongRef{ID: "abc", Source: catalog.SourceSpotify}
	want := catalog.Song{ExternalID: "abc", Source: catalog.SourceSpotify, Title: "Song", Artists: "Band"}

	second := &mocks.MockResolver{}
	second.On("Resolve", mock.Anything, ref).Return(want, nil)

	chain := catalog.Chain{catalog.StaticResolver{}, second}
	got, err := chain.Resolve(ctx, ref)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	second.AssertExpectations(t)
}

func TestChain_StopsOnHardError(t *testing.T) {
	ctx := context.Background()
	ref := catalog.SongRef{ID: "abc", Source: catalog.SourceSpotify}
	boom := errors.New("upstream down")

	first := &mocks.MockResolver{}
	first.On("Resolve", mock.Anything, ref).Return(catalog.Song{}, boom)
	second := &mocks.MockResolver{}

	_, err := catalog.Chain{first, second}.Resolve(ctx, ref)

	assert.ErrorIs(t, err, boom)
	second.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestSpotifyResolver_Resolve(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenCalls.Add(1)
			user, pass, ok := r.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
		case "/v1/tracks/abc":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"id":"abc","name":"Song","duration_ms":1000,
				"album":{"name":"LP","images":[{"url":"http://img/1","height":640,"width":640}]},
				"artists":[{"name":"A"},{"name":"B"}],"external_ids":{"isrc":"US123"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	r := catalog.NewSpotifyResolver("id", "secret").WithEndpoints(srv.URL+"/v1", srv.URL+"/token")
	ctx := context.Background()

	song, err := r.Resolve(ctx, catalog.SongRef{ID: "abc", Source: catalog.SourceSpotify})
	require.NoError(t, err)
	assert.Equal(t, "A & B", song.Artists)
	assert.Equal(t, "http://img/1", song.ArtworkURL)
	assert.Equal(t, "US123", song.ISRC)

	_, err = r.Resolve(ctx, catalog.SongRef{ID: "missing", Source: catalog.SourceSpotify})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.Equal(t, int32(1), tokenCalls.Load(), "token should be cached")

	_, err = r.Resolve(ctx, catalog.SongRef{ID: "abc", Source: catalog.SourceAppleMusic})
	assert.ErrorIs(t, err, catalog.ErrUnsupportedSource)
}
