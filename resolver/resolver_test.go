package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"
	"cryogon/rizumu-fetch/spotify"

	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	hits    map[string][]media.Descriptor
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]media.Descriptor, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	hits := f.hits[query]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

type fakeProber struct {
	url     string
	limit   int
	entries []downloader.ProbeEntry
	err     error
}

func (f *fakeProber) Probe(ctx context.Context, url string, limit int) ([]downloader.ProbeEntry, error) {
	f.url, f.limit = url, limit
	return f.entries, f.err
}

type fakeTracks struct {
	tracks []spotify.Track
	err    error
}

func (f *fakeTracks) TracksFromURL(ctx context.Context, link string, limit int) ([]spotify.Track, error) {
	return f.tracks, f.err
}

func yt(id string) media.Descriptor {
	return media.Descriptor{SourceID: id, Title: "T " + id, URL: "https://www.youtube.com/watch?v=" + id, Platform: media.PlatformYouTube}
}

func TestResolveText(t *testing.T) {
	search := &fakeSearcher{hits: map[string][]media.Descriptor{"lofi": {yt("a"), yt("b")}}}
	r := New(search, &fakeProber{}, nil, zaptest.NewLogger(t))

	results, err := r.Resolve(context.Background(), "  lofi ", 0)
	if err != nil || len(results) != 2 {
		t.Fatalf("unexpected results %v, %v", results, err)
	}

	if _, err := r.Resolve(context.Background(), "   ", 0); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestResolvePlaylistProbe(t *testing.T) {
	prober := &fakeProber{entries: []downloader.ProbeEntry{
		{ID: "a", Title: "A", Channel: "Chan", Duration: 187},
		{ID: "", Title: "[Private video]"},
		{ID: "b", Title: "B", Uploader: "Up", LiveStatus: "is_live"},
	}}
	r := New(&fakeSearcher{}, prober, nil, zaptest.NewLogger(t))

	results, err := r.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1", 10)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if prober.limit != 10 {
		t.Errorf("limit should reach the prober, got %d", prober.limit)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://www.youtube.com/watch?v=a" || results[0].Author != "Chan" || results[0].Duration != "3:07" {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[1].Duration != "LIVE" {
		t.Errorf("live entry should be labelled LIVE, got %q", results[1].Duration)
	}
}

func TestResolveMusicAndSoundCloud(t *testing.T) {
	prober := &fakeProber{entries: []downloader.ProbeEntry{{ID: "x", Title: "X"}}}
	r := New(&fakeSearcher{}, prober, nil, zaptest.NewLogger(t))

	if _, err := r.Resolve(context.Background(), "https://music.youtube.com/watch?v=x&si=1", 1); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if prober.url != "https://www.youtube.com/watch?v=x" {
		t.Errorf("music link should be normalized, got %s", prober.url)
	}

	prober.entries = []downloader.ProbeEntry{{ID: "12345", Title: "Track", WebpageURL: "https://soundcloud.com/a/track"}}
	results, err := r.Resolve(context.Background(), "https://soundcloud.com/a/track", 1)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if results[0].Platform != media.PlatformSoundCloud || results[0].URL != "https://soundcloud.com/a/track" {
		t.Errorf("unexpected soundcloud result %+v", results[0])
	}
}

func TestResolveProbeFailureIsTransient(t *testing.T) {
	prober := &fakeProber{err: &downloader.ExtractionError{Code: 1, Stderr: "ERROR: 404"}}
	r := New(&fakeSearcher{}, prober, nil, zaptest.NewLogger(t))

	_, err := r.Resolve(context.Background(), "https://youtu.be/x", 1)
	if downloader.Kind(err) != "transient_fetch" {
		t.Errorf("Expected transient_fetch, got %v", err)
	}
}

func TestResolveUnsupported(t *testing.T) {
	r := New(&fakeSearcher{}, &fakeProber{}, nil, zaptest.NewLogger(t))

	if _, err := r.Resolve(context.Background(), "https://vimeo.com/1", 1); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("Expected ErrUnsupportedSource, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "https://open.spotify.com/track/1", 1); !errors.Is(err, ErrUnsupportedSource) {
		t.Errorf("spotify without credentials should be unsupported, got %v", err)
	}
}

func TestResolveSpotify(t *testing.T) {
	search := &fakeSearcher{hits: map[string][]media.Descriptor{
		"Band - One":   {yt("one"), yt("one-live")},
		"Band - Three": {yt("three")},
	}}
	tracks := &fakeTracks{tracks: []spotify.Track{
		{Name: "One", Artist: "Band"},
		{Name: "Two", Artist: "Band"},
		{Name: "Three", Artist: "Band"},
	}}
	r := New(search, &fakeProber{}, tracks, zaptest.NewLogger(t))

	results, err := r.Resolve(context.Background(), "https://open.spotify.com/album/AL", 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(results) != 2 || results[0].SourceID != "one" || results[1].SourceID != "three" {
		t.Errorf("Expected first hit per track with misses skipped, got %+v", results)
	}
	if len(search.queries) != 3 || search.queries[1] != "Band - Two" {
		t.Errorf("unexpected derived queries %v", search.queries)
	}
}

func TestFirst(t *testing.T) {
	r := New(&fakeSearcher{hits: map[string][]media.Descriptor{"q": {yt("a"), yt("b")}}}, &fakeProber{}, nil, zaptest.NewLogger(t))

	d, err := First(context.Background(), r, "q")
	if err != nil || d.SourceID != "a" {
		t.Errorf("unexpected first %+v, %v", d, err)
	}
	if _, err := First(context.Background(), r, "nothing"); !errors.Is(err, downloader.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]media.Descriptor
	err  error
}

func (m *memCache) Get(ctx context.Context, key string) ([]media.Descriptor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, results []media.Descriptor, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = results
	return nil
}

func TestCachedResolver(t *testing.T) {
	search := &fakeSearcher{hits: map[string][]media.Descriptor{"q": {yt("a")}}}
	inner := New(search, &fakeProber{}, nil, zaptest.NewLogger(t))
	cache := &memCache{data: map[string][]media.Descriptor{}}
	cached := NewCached(inner, cache, time.Minute, zaptest.NewLogger(t))

	for i := 0; i < 3; i++ {
		results, err := cached.Resolve(context.Background(), "q", 1)
		if err != nil || len(results) != 1 {
			t.Fatalf("unexpected results %v, %v", results, err)
		}
	}
	if len(search.queries) != 1 {
		t.Errorf("Expected one upstream search, got %d", len(search.queries))
	}

	cached.Resolve(context.Background(), "empty", 1)
	cached.Resolve(context.Background(), "empty", 1)
	if len(search.queries) != 3 {
		t.Errorf("empty results must not be cached, got %d searches", len(search.queries))
	}
}

func TestCachedResolverBypassesBrokenCache(t *testing.T) {
	search := &fakeSearcher{hits: map[string][]media.Descriptor{"q": {yt("a")}}}
	cache := &memCache{err: errors.New("connection refused")}
	cached := NewCached(New(search, &fakeProber{}, nil, zaptest.NewLogger(t)), cache, time.Minute, zaptest.NewLogger(t))

	results, err := cached.Resolve(context.Background(), "q", 1)
	if err != nil || len(results) != 1 {
		t.Errorf("cache failure should fall through, got %v, %v", results, err)
	}
}

// blockingProber never answers on its own; it returns once ctx ends.
type blockingProber struct{}

func (blockingProber) Probe(ctx context.Context, url string, limit int) ([]downloader.ProbeEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type blockingTracks struct{}

func (blockingTracks) TracksFromURL(ctx context.Context, link string, limit int) ([]spotify.Track, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveTimeoutIsTransient(t *testing.T) {
	tests := []struct {
		name  string
		r     *Resolver
		query string
	}{
		{"probe", New(&fakeSearcher{}, blockingProber{}, nil, zaptest.NewLogger(t), WithTimeout(30*time.Millisecond)),
			"https://soundcloud.com/artist/track"},
		{"spotify", New(&fakeSearcher{}, &fakeProber{}, blockingTracks{}, zaptest.NewLogger(t), WithTimeout(30*time.Millisecond)),
			"https://open.spotify.com/playlist/PL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			_, err := tt.r.Resolve(context.Background(), tt.query, 10)

			var transient *downloader.TransientFetchError
			if !errors.As(err, &transient) {
				t.Fatalf("Expected TransientFetchError, got %v", err)
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Expected the deadline to be the cause, got %v", err)
			}
			if elapsed := time.Since(start); elapsed > 2*time.Second {
				t.Errorf("resolve should give up after its timeout, took %v", elapsed)
			}
		})
	}
}

func TestResolveCallerCancel(t *testing.T) {
	r := New(&fakeSearcher{}, blockingProber{}, nil, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := r.Resolve(ctx, "https://www.youtube.com/playlist?list=PL1", 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	var transient *downloader.TransientFetchError
	if errors.As(err, &transient) {
		t.Error("caller cancellation should not be reported as a transient failure")
	}
}

func TestSpotifyTrackSearchesArePaced(t *testing.T) {
	search := &fakeSearcher{hits: map[string][]media.Descriptor{
		"A - One": {yt("1")}, "A - Two": {yt("2")}, "A - Three": {yt("3")},
	}}
	tracks := &fakeTracks{tracks: []spotify.Track{
		{Name: "One", Artist: "A"}, {Name: "Two", Artist: "A"}, {Name: "Three", Artist: "A"},
	}}
	interval := 40 * time.Millisecond
	r := New(search, &fakeProber{}, tracks, zaptest.NewLogger(t), WithTrackSearchRate(rate.Every(interval)))

	start := time.Now()
	results, err := r.Resolve(context.Background(), "https://open.spotify.com/album/AL", 0)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	// first search is immediate, the other two wait one interval each
	if elapsed := time.Since(start); elapsed < 2*interval-10*time.Millisecond {
		t.Errorf("track searches were not paced, took %v", elapsed)
	}
}
