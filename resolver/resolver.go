// Package resolver turns free text or a link into downloadable candidates.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"
	"cryogon/rizumu-fetch/spotify"
	"cryogon/rizumu-fetch/utils"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultTrackSearch = rate.Limit(5)
)

var (
	ErrUnsupportedSource = utils.ErrUnsupportedSource
	ErrEmptyQuery        = errors.New("empty query")
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error)
}

// Prober lists the items behind a link without downloading them.
type Prober interface {
	Probe(ctx context.Context, url string, limit int) ([]downloader.ProbeEntry, error)
}

type TrackLister interface {
	TracksFromURL(ctx context.Context, link string, limit int) ([]spotify.Track, error)
}

// Resolver routes a query by what it looks like:
//   - plain text goes to YouTube search
//   - YouTube, YouTube Music and SoundCloud links are probed with yt-dlp
//   - Spotify links become one YouTube search per track
type Resolver struct {
	search  Searcher
	prober  Prober
	spotify TrackLister
	timeout time.Duration
	pace    *rate.Limiter
	log     *zap.Logger
}

type Option func(*Resolver)

// WithTimeout bounds a whole Resolve call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithTrackSearchRate limits the YouTube searches issued for the tracks of
// a Spotify album or playlist.
func WithTrackSearchRate(limit rate.Limit) Option {
	return func(r *Resolver) { r.pace = rate.NewLimiter(limit, 1) }
}

// New builds a resolver. tracks may be nil, in which case Spotify links are
// rejected as unsupported.
func New(search Searcher, prober Prober, tracks TrackLister, log *zap.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		search:  search,
		prober:  prober,
		spotify: tracks,
		timeout: defaultTimeout,
		pace:    rate.NewLimiter(defaultTrackSearch, 3),
		log:     log.Named("resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fetchFailure reports a failed lookup. A caller cancellation is returned as
// is; anything else, an expired deadline included, is transient.
func fetchFailure(ctx context.Context, source string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return &downloader.TransientFetchError{Source: source, Err: err}
}

func isLink(q string) bool {
	return utils.IsURL(q) || strings.HasPrefix(q, "spotify:")
}

// Resolve returns candidates in source order, at most limit of them when
// limit > 0. No match is an empty slice and a nil error.
func (r *Resolver) Resolve(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if !isLink(query) {
		return r.search.Search(ctx, query, limit)
	}

	source, err := utils.GetSource(query)
	if err != nil {
		return nil, err
	}

	switch source {
	case utils.SourceSpotify:
		return r.resolveSpotify(ctx, query, limit)
	case utils.SourceYTMusic:
		return r.probe(ctx, utils.NormalizeYouTubeURL(query), media.PlatformYouTube, limit)
	case utils.SourceYouTube:
		return r.probe(ctx, query, media.PlatformYouTube, limit)
	case utils.SourceSoundCloud:
		return r.probe(ctx, query, media.PlatformSoundCloud, limit)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, query)
}

func (r *Resolver) probe(ctx context.Context, link string, platform media.Platform, limit int) ([]media.Descriptor, error) {
	entries, err := r.prober.Probe(ctx, link, limit)
	if err != nil {
		return nil, fetchFailure(ctx, platform.String(), err)
	}

	results := make([]media.Descriptor, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			continue
		}
		results = append(results, descriptorFromProbe(e, platform))
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}

func descriptorFromProbe(e downloader.ProbeEntry, platform media.Platform) media.Descriptor {
	d := media.Descriptor{
		SourceID:     e.ID,
		Title:        e.Title,
		Author:       e.Uploader,
		ThumbnailURL: e.Thumbnail,
		Duration:     durationLabel(e.Duration),
		Platform:     platform,
	}
	if d.Author == "" {
		d.Author = e.Channel
	}
	if d.ThumbnailURL == "" && len(e.Thumbnails) > 0 {
		d.ThumbnailURL = e.Thumbnails[len(e.Thumbnails)-1].URL
	}
	if e.LiveStatus == "is_live" {
		d.Duration = "LIVE"
	}

	switch {
	case platform == media.PlatformYouTube:
		d.URL, _ = utils.GetSourceURL(utils.SourceYouTube, e.ID)
	case e.WebpageURL != "":
		d.URL = e.WebpageURL
	default:
		d.URL = e.URL
	}
	return d
}

// durationLabel renders seconds the way YouTube does: "3:07", "1:02:03".
func durationLabel(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	s := int(seconds + 0.5)
	h, m, sec := s/3600, (s%3600)/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

// resolveSpotify maps every track to the first YouTube hit for
// "<artist> - <title>". Tracks without a hit are skipped.
func (r *Resolver) resolveSpotify(ctx context.Context, link string, limit int) ([]media.Descriptor, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("%w: spotify credentials are not configured", ErrUnsupportedSource)
	}

	tracks, err := r.spotify.TracksFromURL(ctx, link, limit)
	if err != nil {
		if errors.Is(err, spotify.ErrUnsupportedLink) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		return nil, fetchFailure(ctx, "spotify", err)
	}

	results := make([]media.Descriptor, 0, len(tracks))
	var lastErr error
	for _, t := range tracks {
		if err := r.pace.Wait(ctx); err != nil {
			return nil, fetchFailure(ctx, "youtube", err)
		}
		hits, err := r.search.Search(ctx, t.Query(), 1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fetchFailure(ctx, "youtube", err)
			}
			lastErr = err
			r.log.Warn("spotify track lookup failed", zap.String("query", t.Query()), zap.Error(err))
			continue
		}
		if len(hits) == 0 {
			r.log.Info("no youtube match for spotify track", zap.String("query", t.Query()))
			continue
		}
		results = append(results, hits[0])
	}

	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return results, nil
}

// First resolves query and returns its first candidate, or ErrNotFound.
func First(ctx context.Context, r downloader.Resolver, query string) (media.Descriptor, error) {
	results, err := r.Resolve(ctx, query, 1)
	if err != nil {
		return media.Descriptor{}, err
	}
	if len(results) == 0 {
		return media.Descriptor{}, downloader.ErrNotFound
	}
	return results[0], nil
}
