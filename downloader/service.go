// Package downloader runs downloads: one FIFO queue per owner with at most
// one yt-dlp extraction in flight per owner.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultRetainedJobs = 1000

// Runner executes a single request. *Fetcher is the production Runner.
type Runner interface {
	Fetch(ctx context.Context, req Request, progress func(float64)) (*Outcome, error)
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log.Named("downloader") }
}

// WithMaxConcurrent bounds extractions across all owners. n <= 0 means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRetainedJobs sets how many finished jobs stay available to Job lookups.
func WithRetainedJobs(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.retain = n
		}
	}
}

type ownerQueue struct {
	owner   string
	pending []*Job
	busy    bool
	wake    chan struct{}
}

func (q *ownerQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Service is the registry of owner queues. Each owner gets one worker
// goroutine that drains its queue and parks when it is empty.
type Service struct {
	runner Runner
	log    *zap.Logger
	sem    *semaphore.Weighted

	// stop parks workers; runCtx is handed to in-flight work and only
	// cancelled when a shutdown deadline expires.
	stopCtx   context.Context
	stop      context.CancelFunc
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	queues   map[string]*ownerQueue
	jobs     map[string]*Job
	finished []string
	retain   int

	subMu       sync.RWMutex
	subscribers []func(Event)
}

func NewService(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner: runner,
		log:    zap.NewNop(),
		queues: make(map[string]*ownerQueue),
		jobs:   make(map[string]*Job),
		retain: defaultRetainedJobs,
	}
	s.stopCtx, s.stop = context.WithCancel(context.Background())
	s.runCtx, s.cancelRun = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every job event. fn runs on the worker
// goroutine and must not block for long.
func (s *Service) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Service) publish(ev Event) {
	s.subMu.RLock()
	subs := s.subscribers
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Enqueue appends req to the owner's queue. The returned Job resolves once
// the request has been processed, dropped, or the service closed.
func (s *Service) Enqueue(owner string, req Request) (*Job, error) {
	if owner == "" {
		return nil, errors.New("owner id is required")
	}
	req.Owner = owner
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	job := newJob(req)
	s.publish(eventFor(EventQueued, job))

	s.mu.Lock()
	if s.closed {
		s.jobs[job.ID] = job
		s.mu.Unlock()
		// already announced, so the caller gets the job and sees it fail
		s.resolve(job, nil, ErrClosed)
		return job, nil
	}
	q := s.queueLocked(owner)
	q.pending = append(q.pending, job)
	s.jobs[job.ID] = job
	s.mu.Unlock()

	q.signal()
	s.log.Debug("queued", zap.String("owner", owner), zap.String("job_id", job.ID), zap.String("source_id", req.SourceID))
	return job, nil
}

// queueLocked is get-or-create; the caller holds s.mu.
func (s *Service) queueLocked(owner string) *ownerQueue {
	q, ok := s.queues[owner]
	if ok {
		return q
	}
	q = &ownerQueue{owner: owner, wake: make(chan struct{}, 1)}
	s.queues[owner] = q

	s.wg.Add(1)
	go s.drain(q)
	return q
}

// Pending lists jobs that have not started yet, in queue order.
func (s *Service) Pending(owner string) []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Summary{}
	if q, ok := s.queues[owner]; ok {
		for _, j := range q.pending {
			out = append(out, j.summary())
		}
	}
	return out
}

// Busy reports whether the owner has an extraction in flight.
func (s *Service) Busy(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[owner]
	return ok && q.busy
}

// Clear drops every pending job of owner; they resolve with ErrDropped.
// A job already in flight is not interrupted. Returns false for an unknown owner.
func (s *Service) Clear(owner string) bool {
	s.mu.Lock()
	q, ok := s.queues[owner]
	if !ok {
		s.mu.Unlock()
		return false
	}
	dropped := q.pending
	q.pending = nil
	s.mu.Unlock()

	for _, j := range dropped {
		s.resolve(j, nil, ErrDropped)
	}
	if len(dropped) > 0 {
		s.log.Info("cleared queue", zap.String("owner", owner), zap.Int("dropped", len(dropped)))
	}
	return true
}

func (s *Service) Job(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

func (s *Service) hasPending(q *ownerQueue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(q.pending) > 0
}

// pop removes the head; the job counts as started from here on.
func (s *Service) pop(q *ownerQueue) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	job := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.busy = true
	return job
}

func (s *Service) idle(q *ownerQueue) {
	s.mu.Lock()
	q.busy = false
	s.mu.Unlock()
}

func (s *Service) drain(q *ownerQueue) {
	defer s.wg.Done()

	for {
		if !s.hasPending(q) {
			select {
			case <-q.wake:
				continue
			case <-s.stopCtx.Done():
				return
			}
		}

		if s.sem != nil {
			if err := s.sem.Acquire(s.stopCtx, 1); err != nil {
				return
			}
		}

		if job := s.pop(q); job != nil {
			s.run(job)
			s.idle(q)
		}

		if s.sem != nil {
			s.sem.Release(1)
		}
	}
}

func (s *Service) run(job *Job) {
	log := s.log.With(
		zap.String("owner", job.Request.Owner),
		zap.String("job_id", job.ID),
		zap.String("source_id", job.Request.SourceID),
	)

	job.start()
	s.publish(eventFor(EventStarted, job))
	log.Info("download started", zap.String("url", job.Request.URL))

	out, err := s.fetch(job)
	if err != nil {
		log.Error("download failed", zap.String("kind", Kind(err)), zap.Error(err))
	} else {
		log.Info("download finished", zap.String("path", out.Path), zap.Bool("cached", out.Cached))
	}
	s.resolve(job, out, err)
}

// fetch keeps a panicking runner from killing the owner's worker.
func (s *Service) fetch(job *Job) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("download panicked: %v", r)
		}
	}()
	return s.runner.Fetch(s.runCtx, job.Request, job.setProgress)
}

func (s *Service) resolve(job *Job, out *Outcome, err error) {
	if !job.finish(out, err) {
		return
	}
	s.retire(job)

	switch {
	case err == nil:
		s.publish(eventFor(EventCompleted, job))
	case errors.Is(err, ErrDropped):
		s.publish(eventFor(EventDropped, job))
	default:
		s.publish(eventFor(EventFailed, job))
	}
}

func (s *Service) retire(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return
	}
	s.finished = append(s.finished, job.ID)
	for len(s.finished) > s.retain {
		delete(s.jobs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

// Shutdown stops accepting work, fails pending jobs with ErrClosed and waits
// for in-flight extractions. When ctx ends first they are killed.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var pending []*Job
	for _, q := range s.queues {
		pending = append(pending, q.pending...)
		q.pending = nil
	}
	s.mu.Unlock()

	for _, j := range pending {
		s.resolve(j, nil, ErrClosed)
	}
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancelRun()
		return nil
	case <-ctx.Done():
		s.cancelRun()
		<-done
		return ctx.Err()
	}
}

func (s *Service) Close() {
	_ = s.Shutdown(context.Background())
}
