package downloader

import (
	"fmt"
	"os"
	"time"

	"github.com/bogem/id3v2"
	"github.com/gopxl/beep/mp3"
)

// TrackTags are the ID3 fields written into downloaded mp3 files.
type TrackTags struct {
	Title  string
	Artist string
	Album  string
}

func metaString(meta map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := meta[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// tagsFromMetadata prefers music fields from the yt-dlp sidecar and falls
// back to the uploader as artist.
func tagsFromMetadata(meta map[string]any, fallbackTitle string) TrackTags {
	tags := TrackTags{
		Title:  metaString(meta, "track", "title"),
		Artist: metaString(meta, "artist", "creator", "uploader", "channel"),
		Album:  metaString(meta, "album"),
	}
	if tags.Title == "" {
		tags.Title = fallbackTitle
	}
	return tags
}

// TagAudio writes title/artist/album frames into an mp3 file.
func TagAudio(path string, tags TrackTags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}

// ProbeDuration decodes the mp3 stream header to measure its length.
func ProbeDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
