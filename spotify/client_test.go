package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestParseLink(t *testing.T) {
	tests := []struct {
		link string
		kind Kind
		id   string
	}{
		{"https://open.spotify.com/track/6rqhFgbbKwnb9MLmUQDhG6?si=abc", KindTrack, "6rqhFgbbKwnb9MLmUQDhG6"},
		{"https://open.spotify.com/intl-de/album/1DFixLWuPkv3KT3TnV35m3", KindAlbum, "1DFixLWuPkv3KT3TnV35m3"},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", KindPlaylist, "37i9dQZF1DXcBWIGoYBM5M"},
		{"spotify:track:6rqhFgbbKwnb9MLmUQDhG6", KindTrack, "6rqhFgbbKwnb9MLmUQDhG6"},
	}
	for _, tt := range tests {
		kind, id, err := ParseLink(tt.link)
		if err != nil || kind != tt.kind || string(id) != tt.id {
			t.Errorf("ParseLink(%q) = %s, %s, %v", tt.link, kind, id, err)
		}
	}

	for _, bad := range []string{"https://open.spotify.com/artist/123", "https://open.spotify.com/", "spotify:show"} {
		if _, _, err := ParseLink(bad); !errors.Is(err, ErrUnsupportedLink) {
			t.Errorf("ParseLink(%q) expected ErrUnsupportedLink, got %v", bad, err)
		}
	}
}

func TestTrackQuery(t *testing.T) {
	if got := (Track{Name: "Song", Artist: "Band"}).Query(); got != "Band - Song" {
		t.Errorf("unexpected query %q", got)
	}
	if got := (Track{Name: "Song"}).Query(); got != "Song" {
		t.Errorf("unexpected query without artist %q", got)
	}
}

func playlistItem(id, name string, local bool) string {
	return fmt.Sprintf(`{"is_local":%t,"track":{"type":"track","id":%q,"name":%q,
		"artists":[{"name":"Artist %s"}],"album":{"name":"Album","images":[{"url":"https://i.scdn.co/x"}]},"duration_ms":180000}}`,
		local, id, name, id)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v1/playlists/PL/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "2" {
			fmt.Fprintf(w, `{"items":[%s],"total":3,"offset":2,"limit":2,"next":null}`, playlistItem("c", "Third", false))
			return
		}
		fmt.Fprintf(w, `{"items":[%s,%s],"total":3,"offset":0,"limit":2,"next":%q}`,
			playlistItem("a", "First", false), playlistItem("", "Local", true), srv.URL+"/v1/playlists/PL/tracks?offset=2&limit=2")
	})
	mux.HandleFunc("/v1/tracks/T1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"type":"track","id":"T1","name":"Solo","artists":[{"name":"Singer"}],"album":{"name":"One"},"duration_ms":1000}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestTracksFromPlaylist(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(context.Background(), "id", "secret", zaptest.NewLogger(t), WithEndpoints(srv.URL+"/token", srv.URL+"/v1/"))

	tracks, err := c.TracksFromURL(context.Background(), "https://open.spotify.com/playlist/PL", 0)
	if err != nil {
		t.Fatalf("TracksFromURL failed: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Name != "First" || tracks[1].Name != "Third" {
		t.Fatalf("Expected local file skipped and second page followed, got %+v", tracks)
	}
	if tracks[0].Query() != "Artist a - First" || tracks[0].Album != "Album" {
		t.Errorf("unexpected track %+v", tracks[0])
	}

	limited, err := c.TracksFromURL(context.Background(), "spotify:playlist:PL", 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Expected a single track with limit 1, got %d, %v", len(limited), err)
	}
}

func TestTracksFromTrack(t *testing.T) {
	srv := newTestServer(t)
	c := NewClient(context.Background(), "id", "secret", zaptest.NewLogger(t), WithEndpoints(srv.URL+"/token", srv.URL+"/v1/"))

	tracks, err := c.TracksFromURL(context.Background(), "https://open.spotify.com/track/T1", 0)
	if err != nil {
		t.Fatalf("TracksFromURL failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Query() != "Singer - Solo" {
		t.Errorf("unexpected tracks %+v", tracks)
	}
}

func TestRequestsAreBounded(t *testing.T) {
	srv := newTestServer(t)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	c := NewClient(context.Background(), "id", "secret", zaptest.NewLogger(t),
		WithEndpoints(srv.URL+"/token", slow.URL+"/v1/"), WithHTTPTimeout(50*time.Millisecond))

	start := time.Now()
	if _, err := c.TracksFromURL(context.Background(), "https://open.spotify.com/track/T1", 0); err == nil {
		t.Fatal("Expected a timeout error from a stalled API")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("request should be cut off by the client timeout, took %v", elapsed)
	}
}
