package media

import (
	"fmt"
	"strings"
)

type Type string

const (
	Audio Type = "audio"
	Video Type = "video"
)

// ParseType accepts "audio"/"video" (case-insensitive). Empty defaults to audio.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "audio":
		return Audio, nil
	case "video":
		return Video, nil
	default:
		return "", fmt.Errorf("unknown media type %q", s)
	}
}

// Ext is the file extension of a finished download of this type.
func (t Type) Ext() string {
	if t == Video {
		return "mp4"
	}
	return "mp3"
}

type Scope string

const (
	ScopeAudio Scope = "audio"
	ScopeVideo Scope = "video"
	ScopeAll   Scope = "all"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAudio:
		return ScopeAudio, nil
	case ScopeVideo:
		return ScopeVideo, nil
	case ScopeAll, "":
		return ScopeAll, nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}

type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformYouTube
	PlatformSoundCloud
)

func (p Platform) String() string {
	switch p {
	case PlatformYouTube:
		return "youtube"
	case PlatformSoundCloud:
		return "soundcloud"
	default:
		return "unknown"
	}
}

func (p Platform) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Platform) UnmarshalText(b []byte) error {
	switch string(b) {
	case "youtube":
		*p = PlatformYouTube
	case "soundcloud":
		*p = PlatformSoundCloud
	default:
		*p = PlatformUnknown
	}
	return nil
}

// Descriptor is one playable candidate produced by the resolver.
type Descriptor struct {
	SourceID     string   `json:"source_id"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Duration     string   `json:"duration"` // display label, "LIVE" for streams
	URL          string   `json:"url"`
	Platform     Platform `json:"platform"`
}
