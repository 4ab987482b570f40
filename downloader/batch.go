package downloader

import (
	"context"
	"time"

	"cryogon/rizumu-fetch/media"

	"go.uber.org/zap"
)

const defaultBatchOwner = "batch"

// Resolver turns a query or a playlist/track URL into candidates.
type Resolver interface {
	Resolve(ctx context.Context, query string, limit int) ([]media.Descriptor, error)
}

// Enqueuer is the part of *Service a Batcher needs.
type Enqueuer interface {
	Enqueue(owner string, req Request) (*Job, error)
}

type BatchOptions struct {
	Owner    string // defaults to "batch"
	Type     media.Type
	Quality  string
	MaxItems int
}

// Batcher downloads every candidate of a query one after another. It is
// best effort: failed items are logged and skipped.
type Batcher struct {
	resolver Resolver
	queue    Enqueuer
	delay    time.Duration
	maxItems int
	log      *zap.Logger
}

// NewBatcher waits delay after each item finishes before starting the next;
// maxItems is the default cap when BatchOptions.MaxItems is unset.
func NewBatcher(resolver Resolver, queue Enqueuer, delay time.Duration, maxItems int, log *zap.Logger) *Batcher {
	return &Batcher{
		resolver: resolver,
		queue:    queue,
		delay:    delay,
		maxItems: maxItems,
		log:      log.Named("batch"),
	}
}

func (b *Batcher) pause(ctx context.Context) error {
	if b.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(b.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run returns only the successful outcomes. Per-item failures are reported
// through logs and job events, never through the return value. An error is
// returned when resolving fails or ctx ends; in the latter case the outcomes
// collected so far are returned as well.
func (b *Batcher) Run(ctx context.Context, query string, opts BatchOptions) ([]*Outcome, error) {
	if opts.Owner == "" {
		opts.Owner = defaultBatchOwner
	}
	if opts.Type == "" {
		opts.Type = media.Audio
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = b.maxItems
	}

	candidates, err := b.resolver.Resolve(ctx, query, opts.MaxItems)
	if err != nil {
		return nil, err
	}
	if opts.MaxItems > 0 && len(candidates) > opts.MaxItems {
		candidates = candidates[:opts.MaxItems]
	}

	log := b.log.With(zap.String("query", query), zap.String("owner", opts.Owner))
	log.Info("batch started", zap.Int("items", len(candidates)))

	outcomes := make([]*Outcome, 0, len(candidates))
	for i, c := range candidates {
		if i > 0 {
			if err := b.pause(ctx); err != nil {
				return outcomes, err
			}
		}

		itemLog := log.With(zap.Int("index", i), zap.String("source_id", c.SourceID), zap.String("title", c.Title))

		job, err := b.queue.Enqueue(opts.Owner, RequestFor(opts.Owner, c, opts.Type, opts.Quality))
		if err != nil {
			itemLog.Warn("batch item not queued", zap.String("kind", Kind(err)), zap.Error(err))
			continue
		}

		out, err := job.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return outcomes, ctx.Err()
			}
			itemLog.Warn("batch item failed", zap.String("job_id", job.ID), zap.String("kind", Kind(err)), zap.Error(err))
			continue
		}
		outcomes = append(outcomes, out)
	}

	log.Info("batch finished", zap.Int("succeeded", len(outcomes)), zap.Int("failed", len(candidates)-len(outcomes)))
	return outcomes, nil
}
