package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type Source string

const (
	SourceUnknown    Source = ""
	SourceYouTube    Source = "youtube"
	SourceYTMusic    Source = "youtube-music"
	SourceSpotify    Source = "spotify"
	SourceSoundCloud Source = "soundcloud"
)

var ErrUnsupportedSource = errors.New("unsupported source")

// GetSourceURL builds the canonical page URL of an item on a provider.
func GetSourceURL(source Source, id string) (string, error) {
	switch source {
	case SourceSpotify:
		return "https://open.spotify.com/track/" + id, nil
	case SourceYouTube:
		return "https://www.youtube.com/watch?v=" + id, nil
	case SourceYTMusic:
		return "https://music.youtube.com/watch?v=" + id, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

// IsURL reports whether s looks like an absolute http(s) link rather than
// free text.
func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// GetSource classifies a link by host. spotify: URIs count as Spotify.
func GetSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "spotify:") {
		return SourceSpotify, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return SourceUnknown, fmt.Errorf("could not parse URL: %w", err)
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case strings.HasSuffix(host, "music.youtube.com"):
		return SourceYTMusic, nil
	case strings.HasSuffix(host, "youtube.com"), host == "youtu.be":
		return SourceYouTube, nil
	case strings.HasSuffix(host, "spotify.com"):
		return SourceSpotify, nil
	case strings.HasSuffix(host, "soundcloud.com"):
		return SourceSoundCloud, nil
	}
	return SourceUnknown, fmt.Errorf("%w: %s", ErrUnsupportedSource, host)
}

// NormalizeYouTubeURL rewrites YouTube Music links to the regular watch page.
// Playlist links and anything without a video id are returned unchanged.
func NormalizeYouTubeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || !strings.HasSuffix(strings.ToLower(parsed.Hostname()), "music.youtube.com") {
		return raw
	}
	id := parsed.Query().Get("v")
	if id == "" {
		return raw
	}
	u, _ := GetSourceURL(SourceYouTube, id)
	return u
}
