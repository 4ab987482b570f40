// Package app exposes the public operations of rizumu-fetch on top of the
// content store, resolver, scheduler and download history.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cryogon/rizumu-fetch/config"
	"cryogon/rizumu-fetch/downloader"
	"cryogon/rizumu-fetch/media"
	"cryogon/rizumu-fetch/resolver"
	"cryogon/rizumu-fetch/spotify"
	"cryogon/rizumu-fetch/store"
	"cryogon/rizumu-fetch/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const searchLimit = 20

// Target is what to download: an already resolved candidate, or a link or
// search text that is resolved to its first candidate.
type Target struct {
	Descriptor *media.Descriptor
	URL        string
}

type Options struct {
	Type    media.Type
	Quality string
}

type App struct {
	media    *media.Store
	resolver downloader.Resolver
	service  *downloader.Service
	batcher  *downloader.Batcher
	history  *store.Store // nil disables history
	closers  []func() error
	log      *zap.Logger
}

// Deps are the parts an App is assembled from.
type Deps struct {
	Media         *media.Store
	Resolver      downloader.Resolver
	Extractor     downloader.Extractor
	History       *store.Store
	CookiesPath   string
	MaxConcurrent int
	BatchDelay    time.Duration
	BatchMaxItems int
	Log           *zap.Logger
}

func Assemble(d Deps) *App {
	fetcher := downloader.NewFetcher(d.Media, d.Extractor, d.CookiesPath, d.Log)
	service := downloader.NewService(fetcher,
		downloader.WithLogger(d.Log),
		downloader.WithMaxConcurrent(d.MaxConcurrent),
	)

	a := &App{
		media:    d.Media,
		resolver: d.Resolver,
		service:  service,
		batcher:  downloader.NewBatcher(d.Resolver, service, d.BatchDelay, d.BatchMaxItems, d.Log),
		history:  d.History,
		log:      d.Log.Named("app"),
	}
	if a.history != nil {
		service.Subscribe(a.recordEvent)
	}
	return a
}

// New wires the production stack from cfg. Spotify and the Redis search
// cache are enabled only when configured; a Redis that can't be reached is
// logged and skipped.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	mediaStore, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		return nil, fmt.Errorf("open media dir: %w", err)
	}

	if _, err := os.Stat(cfg.YtDlpPath); err != nil {
		log.Warn("yt-dlp binary not found, downloads will fail until it is installed",
			zap.String("path", cfg.YtDlpPath))
	}
	ytdlp := downloader.NewYtDlp(cfg.YtDlpPath, log)

	var tracks resolver.TrackLister
	if cfg.SpotifyEnabled() {
		tracks = spotify.NewClient(ctx, cfg.SpotifyClientID, cfg.SpotifyClientSecret, log,
			spotify.WithHTTPTimeout(cfg.FetchTimeout))
	}

	httpClient := utils.NewHTTPClient(cfg.FetchTimeout, cfg.UserAgent)
	var res downloader.Resolver = resolver.New(resolver.NewYouTubeSearch(httpClient, log), ytdlp, tracks, log,
		resolver.WithTimeout(cfg.ResolveTimeout))

	var closers []func() error
	if cfg.RedisAddr != "" {
		var client *redis.Client
		client, err = resolver.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("search cache disabled", zap.Error(err))
		} else {
			res = resolver.NewCached(res, resolver.NewRedisCache(client), cfg.SearchCacheTTL, log)
			closers = append(closers, client.Close)
		}
	}

	var history *store.Store
	if cfg.DBPath != "" {
		history, err = store.NewSQLiteStore(cfg.DBPath, log)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		closers = append(closers, history.Close)
	}

	a := Assemble(Deps{
		Media:         mediaStore,
		Resolver:      res,
		Extractor:     ytdlp,
		History:       history,
		CookiesPath:   cfg.CookiesPath,
		MaxConcurrent: cfg.MaxConcurrentExtractions,
		BatchDelay:    cfg.BatchDelay,
		BatchMaxItems: cfg.BatchMaxItems,
		Log:           log,
	})
	a.closers = closers
	return a, nil
}

// Scheduler exposes the queue for the event socket.
func (a *App) Scheduler() *downloader.Service { return a.service }

func (a *App) Subscribe(fn func(downloader.Event)) { a.service.Subscribe(fn) }

func (a *App) Search(ctx context.Context, query string) ([]media.Descriptor, error) {
	return a.resolver.Resolve(ctx, query, searchLimit)
}

// EnqueueDownload queues target for owner and returns immediately; use
// Job.Wait for the outcome.
func (a *App) EnqueueDownload(ctx context.Context, owner string, target Target, opts Options) (*downloader.Job, error) {
	if opts.Type == "" {
		opts.Type = media.Audio
	}

	var d media.Descriptor
	switch {
	case target.Descriptor != nil:
		d = *target.Descriptor
	case strings.TrimSpace(target.URL) != "":
		var err error
		d, err = resolver.First(ctx, a.resolver, target.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("download target is empty")
	}

	return a.service.Enqueue(owner, downloader.RequestFor(owner, d, opts.Type, opts.Quality))
}

// RemoveDownload deletes the file, its sidecar and its history row and
// reports whether the file existed.
func (a *App) RemoveDownload(ctx context.Context, sourceID, title string, t media.Type) (bool, error) {
	existed, err := a.media.Remove(sourceID, title, t)
	if err != nil {
		return existed, &downloader.IOError{Op: "remove download", Err: err}
	}
	if a.history != nil {
		if _, err := a.history.DeleteDownload(ctx, media.Key(sourceID, title), t); err != nil {
			a.log.Warn("history row not removed", zap.String("source_id", sourceID), zap.Error(err))
		}
	}
	return existed, nil
}

func (a *App) ClearAllDownloads(ctx context.Context, scope media.Scope) error {
	if err := a.media.Clear(scope); err != nil {
		return &downloader.IOError{Op: "clear downloads", Err: err}
	}
	if a.history != nil {
		if _, err := a.history.DeleteByType(ctx, scope); err != nil {
			a.log.Warn("history not cleared", zap.String("scope", string(scope)), zap.Error(err))
		}
	}
	a.log.Info("downloads cleared", zap.String("scope", string(scope)))
	return nil
}

func (a *App) ListPending(owner string) []downloader.Summary {
	return a.service.Pending(owner)
}

func (a *App) ClearPending(owner string) bool {
	return a.service.Clear(owner)
}

func (a *App) Batch(ctx context.Context, query string, opts downloader.BatchOptions) ([]*downloader.Outcome, error) {
	return a.batcher.Run(ctx, query, opts)
}

func (a *App) Job(id string) (*downloader.Job, bool) {
	return a.service.Job(id)
}

// History lists recorded outcomes, newest first. Without a history store
// it is always empty.
func (a *App) History(ctx context.Context, opts store.ListOptions) ([]*store.Download, error) {
	if a.history == nil {
		return []*store.Download{}, nil
	}
	return a.history.ListDownloads(ctx, opts)
}

// MediaPath is where a finished download of this candidate lives.
func (a *App) MediaPath(sourceID, title string, t media.Type) string {
	return a.media.PathFor(sourceID, title, t)
}

// Close shuts the scheduler down, killing in-flight extractions when ctx
// ends first, then releases the history and cache connections.
func (a *App) Close(ctx context.Context) error {
	err := a.service.Shutdown(ctx)
	for _, c := range a.closers {
		if cerr := c(); cerr != nil {
			a.log.Warn("close failed", zap.Error(cerr))
		}
	}
	return err
}

func (a *App) recordEvent(ev downloader.Event) {
	d := &store.Download{
		ContentKey: media.Key(ev.SourceID, ev.Title),
		MediaType:  string(ev.MediaType),
		SourceID:   ev.SourceID,
		Title:      ev.Title,
		URL:        ev.URL,
		Owner:      ev.Owner,
		JobID:      ev.JobID,
		UpdatedAt:  ev.At,
	}

	switch ev.Type {
	case downloader.EventCompleted:
		d.Status = store.StatusComplete
		d.FilePath = ev.Path
		if info, err := os.Stat(ev.Path); err == nil {
			d.FileSize = info.Size()
		}
	case downloader.EventFailed:
		d.Status = store.StatusFailed
		d.Error = ev.Error
		d.ErrorKind = ev.Kind
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.history.RecordDownload(ctx, d); err != nil {
		a.log.Warn("failed to record download", zap.String("job_id", ev.JobID), zap.Error(err))
	}
}
