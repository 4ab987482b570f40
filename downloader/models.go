package downloader

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"cryogon/rizumu-fetch/media"

	"github.com/google/uuid"
)

// Request is consumed exactly once by the Service.
type Request struct {
	URL      string     `json:"url"`
	SourceID string     `json:"source_id"`
	Title    string     `json:"title"`
	Type     media.Type `json:"type"`
	Quality  string     `json:"quality,omitempty"`
	Owner    string     `json:"owner"`
}

// RequestFor builds a request for a resolved candidate.
func RequestFor(owner string, d media.Descriptor, t media.Type, quality string) Request {
	return Request{
		URL:      d.URL,
		SourceID: d.SourceID,
		Title:    d.Title,
		Type:     t,
		Quality:  quality,
		Owner:    owner,
	}
}

func (r Request) Validate() error {
	switch {
	case r.URL == "":
		return errors.New("request has no url")
	case !isWebURL(r.URL):
		return errors.New("request url must be an absolute http(s) url")
	case r.SourceID == "":
		return errors.New("request has no source id")
	case r.Title == "":
		return errors.New("request has no title")
	case r.Type != media.Audio && r.Type != media.Video:
		return errors.New("request has an unknown media type")
	}
	return nil
}

func isWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Outcome of a successful download.
type Outcome struct {
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
	Cached   bool           `json:"cached"` // file already existed, yt-dlp was skipped
}

type TaskStatus string

const (
	StatusPending     TaskStatus = "Pending"
	StatusDownloading TaskStatus = "Downloading"
	StatusComplete    TaskStatus = "Complete"
	StatusFailed      TaskStatus = "Failed"
	StatusDropped     TaskStatus = "Dropped"
)

// Summary describes a pending (not yet started) job.
type Summary struct {
	JobID    string     `json:"job_id"`
	SourceID string     `json:"source_id"`
	Title    string     `json:"title"`
	Type     media.Type `json:"type"`
	QueuedAt time.Time  `json:"queued_at"`
}

// JobInfo is a point-in-time copy of a job, safe to serialize.
type JobInfo struct {
	ID         string     `json:"id"`
	Owner      string     `json:"owner"`
	SourceID   string     `json:"source_id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Type       media.Type `json:"type"`
	Status     TaskStatus `json:"status"`
	Progress   float64    `json:"progress"`
	Path       string     `json:"path,omitempty"`
	Cached     bool       `json:"cached,omitempty"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Job is the handle returned by Enqueue. Wait blocks until the job is resolved.
type Job struct {
	ID       string
	Request  Request
	QueuedAt time.Time

	mu         sync.Mutex
	status     TaskStatus
	progress   float64
	startedAt  time.Time
	finishedAt time.Time
	outcome    *Outcome
	err        error
	done       chan struct{}
}

func newJob(req Request) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Request:  req,
		QueuedAt: time.Now(),
		status:   StatusPending,
		done:     make(chan struct{}),
	}
}

func (j *Job) Done() <-chan struct{} { return j.done }

// Wait returns the job result, or ctx.Err() if ctx ends first. The job itself keeps running.
func (j *Job) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result is only meaningful after Done is closed.
func (j *Job) Result() (*Outcome, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome, j.err
}

func (j *Job) Status() TaskStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) start() {
	j.mu.Lock()
	j.status = StatusDownloading
	j.startedAt = time.Now()
	j.mu.Unlock()
}

func (j *Job) setProgress(p float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p > j.progress {
		j.progress = p
	}
}

// finish resolves the job exactly once; later calls are ignored.
func (j *Job) finish(out *Outcome, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	select {
	case <-j.done:
		return false
	default:
	}

	j.outcome, j.err = out, err
	j.finishedAt = time.Now()
	switch {
	case err == nil:
		j.status = StatusComplete
		j.progress = 100
	case errors.Is(err, ErrDropped):
		j.status = StatusDropped
	default:
		j.status = StatusFailed
	}
	close(j.done)
	return true
}

func (j *Job) summary() Summary {
	return Summary{
		JobID:    j.ID,
		SourceID: j.Request.SourceID,
		Title:    j.Request.Title,
		Type:     j.Request.Type,
		QueuedAt: j.QueuedAt,
	}
}

func (j *Job) Info() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()

	info := JobInfo{
		ID:       j.ID,
		Owner:    j.Request.Owner,
		SourceID: j.Request.SourceID,
		Title:    j.Request.Title,
		URL:      j.Request.URL,
		Type:     j.Request.Type,
		Status:   j.status,
		Progress: j.progress,
		QueuedAt: j.QueuedAt,
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		info.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		info.FinishedAt = &t
	}
	if j.outcome != nil {
		info.Path = j.outcome.Path
		info.Cached = j.outcome.Cached
	}
	if j.err != nil {
		info.Error = j.err.Error()
		info.ErrorKind = Kind(j.err)
	}
	return info
}
