package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Kind is the type of Spotify object a link points at.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
)

var ErrUnsupportedLink = errors.New("unsupported spotify link")

// Track is the subset of Spotify track metadata needed to find the same
// song on YouTube.
type Track struct {
	ID       string
	Name     string
	Artist   string
	Album    string
	ImageURL string
	Duration time.Duration
}

// Query is the search text used to find the track on YouTube.
func (t Track) Query() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Artist + " - " + t.Name
}

type Client struct {
	api *spotify.Client
	log *zap.Logger
}

const defaultHTTPTimeout = 10 * time.Second

type options struct {
	tokenURL string
	baseURL  string
	timeout  time.Duration
}

type Option func(*options)

// WithEndpoints points the client at a different token and API host.
func WithEndpoints(tokenURL, apiBaseURL string) Option {
	return func(o *options) {
		o.tokenURL = tokenURL
		o.baseURL = apiBaseURL
	}
}

// WithHTTPTimeout bounds every token and API request.
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// NewClient authenticates with the client-credentials flow. Tokens are
// fetched lazily and refreshed by the oauth2 transport.
func NewClient(ctx context.Context, clientID, clientSecret string, log *zap.Logger, opts ...Option) *Client {
	o := options{tokenURL: spotifyauth.TokenURL, timeout: defaultHTTPTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	creds := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     o.tokenURL,
	}

	var clientOpts []spotify.ClientOption
	if o.baseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(o.baseURL))
	}

	// the token source uses the client found in ctx
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: o.timeout})
	httpClient := creds.Client(ctx)
	httpClient.Timeout = o.timeout

	return &Client{
		api: spotify.New(httpClient, clientOpts...),
		log: log.Named("spotify"),
	}
}

// ParseLink extracts the object kind and id from an open.spotify.com URL
// (locale prefixes such as /intl-de/ allowed) or a spotify: URI.
func ParseLink(link string) (Kind, spotify.ID, error) {
	link = strings.TrimSpace(link)

	var parts []string
	if strings.HasPrefix(link, "spotify:") {
		parts = strings.Split(strings.TrimPrefix(link, "spotify:"), ":")
	} else {
		u, err := url.Parse(link)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrUnsupportedLink, err)
		}
		parts = strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
			parts = parts[1:]
		}
	}

	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedLink, link)
	}
	switch k := Kind(parts[0]); k {
	case KindTrack, KindAlbum, KindPlaylist:
		return k, spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedLink, link)
}

// TracksFromURL lists the tracks behind a track, album or playlist link,
// following pagination until limit tracks were collected (limit <= 0 means
// all). Local files and podcast episodes are skipped.
func (c *Client) TracksFromURL(ctx context.Context, link string, limit int) ([]Track, error) {
	kind, id, err := ParseLink(link)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindTrack:
		full, err := c.api.GetTrack(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get track %s: %w", id, err)
		}
		return []Track{fromFull(full)}, nil
	case KindAlbum:
		return c.albumTracks(ctx, id, limit)
	default:
		return c.playlistTracks(ctx, id, limit)
	}
}

func full(tracks []Track, limit int) bool {
	return limit > 0 && len(tracks) >= limit
}

func (c *Client) playlistTracks(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	page, err := c.api.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get playlist %s: %w", id, err)
	}

	var tracks []Track
	for {
		for _, item := range page.Items {
			ft := item.Track.Track
			if ft == nil || item.IsLocal || ft.ID == "" || (ft.Type != "" && ft.Type != "track") {
				continue
			}
			tracks = append(tracks, fromFull(ft))
			if full(tracks, limit) {
				return tracks, nil
			}
		}

		if err := c.api.NextPage(ctx, page); err != nil {
			if errors.Is(err, spotify.ErrNoMorePages) {
				break
			}
			return tracks, fmt.Errorf("next playlist page: %w", err)
		}
	}
	c.log.Debug("playlist loaded", zap.String("id", string(id)), zap.Int("tracks", len(tracks)))
	return tracks, nil
}

func (c *Client) albumTracks(ctx context.Context, id spotify.ID, limit int) ([]Track, error) {
	album, err := c.api.GetAlbum(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get album %s: %w", id, err)
	}

	var image string
	if len(album.Images) > 0 {
		image = album.Images[0].URL
	}

	page := &album.Tracks
	var tracks []Track
	for {
		for _, st := range page.Tracks {
			t := Track{
				ID:       string(st.ID),
				Name:     st.Name,
				Album:    album.Name,
				ImageURL: image,
				Duration: time.Duration(st.Duration) * time.Millisecond,
			}
			if len(st.Artists) > 0 {
				t.Artist = st.Artists[0].Name
			}
			tracks = append(tracks, t)
			if full(tracks, limit) {
				return tracks, nil
			}
		}

		if err := c.api.NextPage(ctx, page); err != nil {
			if errors.Is(err, spotify.ErrNoMorePages) {
				break
			}
			return tracks, fmt.Errorf("next album page: %w", err)
		}
	}
	return tracks, nil
}

func fromFull(ft *spotify.FullTrack) Track {
	t := Track{
		ID:       string(ft.ID),
		Name:     ft.Name,
		Album:    ft.Album.Name,
		Duration: time.Duration(ft.Duration) * time.Millisecond,
	}
	if len(ft.Artists) > 0 {
		t.Artist = ft.Artists[0].Name
	}
	if len(ft.Album.Images) > 0 {
		t.ImageURL = ft.Album.Images[0].URL
	}
	return t
}
