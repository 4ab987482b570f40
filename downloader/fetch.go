package downloader

import (
	"context"
	"os"
	"path/filepath"

	"cryogon/rizumu-fetch/media"

	"go.uber.org/zap"
)

// Fetcher turns one Request into a file in the content store. It skips the
// extractor when the target already exists and applies the cookie policy:
// a configured cookie file is attached from the first attempt, and an
// authentication challenge without one is reported as CredentialsRequiredError.
// Nothing is retried.
type Fetcher struct {
	store       *media.Store
	extractor   Extractor
	cookiesPath string
	log         *zap.Logger
}

func NewFetcher(store *media.Store, extractor Extractor, cookiesPath string, log *zap.Logger) *Fetcher {
	return &Fetcher{
		store:       store,
		extractor:   extractor,
		cookiesPath: cookiesPath,
		log:         log.Named("fetcher"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, req Request, progress func(float64)) (*Outcome, error) {
	log := f.log.With(zap.String("source_id", req.SourceID), zap.String("type", string(req.Type)))

	target := f.store.PathFor(req.SourceID, req.Title, req.Type)
	if f.store.Exists(target) {
		meta, err := f.store.LoadMetadata(req.SourceID, req.Title)
		if err != nil {
			log.Warn("ignoring unreadable metadata", zap.Error(err))
			meta = map[string]any{}
		}
		log.Debug("already downloaded", zap.String("path", target))
		return &Outcome{Path: target, Metadata: meta, Cached: true}, nil
	}

	stage, err := f.store.Stage(req.SourceID)
	if err != nil {
		return nil, &IOError{Op: "stage download", Err: err}
	}
	defer os.RemoveAll(stage)

	opts := ExtractOptions{
		Type:     req.Type,
		Quality:  req.Quality,
		Progress: progress,
	}
	hasCookies := fileExists(f.cookiesPath)
	if hasCookies {
		opts.CookiesPath = f.cookiesPath
	}

	res, err := f.extractor.Extract(ctx, req.URL, filepath.Join(stage, "media."+req.Type.Ext()), opts)
	if err != nil {
		if !hasCookies && NeedsCredentials(err.Error()) {
			log.Warn("extraction needs cookies", zap.Error(err))
			return nil, &CredentialsRequiredError{Path: f.cookiesPath}
		}
		return nil, err
	}

	path, meta, err := f.store.Claim(res.MediaPath, res.SidecarPath, req.SourceID, req.Title, req.Type)
	if path == "" {
		return nil, &IOError{Op: "store download", Err: err}
	}
	if err != nil {
		log.Warn("metadata sidecar not claimed", zap.Error(err))
		meta = map[string]any{}
	}

	if req.Type == media.Audio {
		f.enrichAudio(log, req, path, meta)
	}

	log.Info("downloaded", zap.String("path", path))
	return &Outcome{Path: path, Metadata: meta}, nil
}

// enrichAudio is best effort: a file that can't be tagged is still a valid download.
func (f *Fetcher) enrichAudio(log *zap.Logger, req Request, path string, meta map[string]any) {
	if err := TagAudio(path, tagsFromMetadata(meta, req.Title)); err != nil {
		log.Warn("id3 tagging failed", zap.Error(err))
	}

	if _, ok := meta["duration"]; ok {
		return
	}
	d, err := ProbeDuration(path)
	if err != nil {
		log.Warn("duration probe failed", zap.Error(err))
		return
	}
	meta["duration"] = d.Seconds()
	if err := f.store.SaveMetadata(req.SourceID, req.Title, meta); err != nil {
		log.Warn("could not persist probed duration", zap.Error(err))
	}
}
