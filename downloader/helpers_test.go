package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cryogon/rizumu-fetch/media"
)

// fakeExtractor writes a media file and sidecar, or fails with err.
type fakeExtractor struct {
	mu    sync.Mutex
	calls []ExtractOptions
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, url, outputPath string, opts ExtractOptions) (*Extraction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(outputPath, make([]byte, 256), 0o644); err != nil {
		return nil, err
	}
	sidecar := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".info.json"
	if err := os.WriteFile(sidecar, []byte(`{"title":"From Sidecar","uploader":"Someone","duration":12}`), 0o644); err != nil {
		return nil, err
	}
	if opts.Progress != nil {
		opts.Progress(50)
	}
	return &Extraction{MediaPath: outputPath, SidecarPath: sidecar}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// span records when a request ran.
type span struct {
	owner    string
	sourceID string
	start    time.Time
	end      time.Time
}

// recordingRunner sleeps for delay, records spans and fails requests whose
// source id is listed in fail.
type recordingRunner struct {
	mu    sync.Mutex
	spans []span
	delay time.Duration
	fail  map[string]error
	gate  chan struct{} // when set, every run blocks until it is closed
}

func (r *recordingRunner) Fetch(ctx context.Context, req Request, progress func(float64)) (*Outcome, error) {
	sp := span{owner: req.Owner, sourceID: req.SourceID, start: time.Now()}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	time.Sleep(r.delay)
	sp.end = time.Now()

	r.mu.Lock()
	r.spans = append(r.spans, sp)
	r.mu.Unlock()

	if err, ok := r.fail[req.SourceID]; ok {
		return nil, err
	}
	return &Outcome{Path: "/media/" + req.SourceID, Metadata: map[string]any{}}, nil
}

func (r *recordingRunner) recorded() []span {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]span(nil), r.spans...)
}

func testRequest(id string) Request {
	return Request{
		URL:      "https://www.youtube.com/watch?v=" + id,
		SourceID: id,
		Title:    "Title " + id,
		Type:     media.Audio,
	}
}

func waitJob(t *testing.T, j *Job) (*Outcome, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := j.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("job %s did not finish in time", j.ID)
	}
	return out, err
}

// eventually polls cond; job results are visible slightly before their
// completion events are published.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
