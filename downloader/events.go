package downloader

import (
	"time"

	"cryogon/rizumu-fetch/media"
)

type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventDropped   EventType = "dropped"
)

// Event is published for every job state change.
type Event struct {
	Type      EventType  `json:"type"`
	JobID     string     `json:"job_id"`
	Owner     string     `json:"owner"`
	SourceID  string     `json:"source_id"`
	Title     string     `json:"title"`
	URL       string     `json:"url"`
	MediaType media.Type `json:"media_type"`
	Path      string     `json:"path,omitempty"`
	Cached    bool       `json:"cached,omitempty"`
	Error     string     `json:"error,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	At        time.Time  `json:"at"`
}

func eventFor(t EventType, j *Job) Event {
	ev := Event{
		Type:      t,
		JobID:     j.ID,
		Owner:     j.Request.Owner,
		SourceID:  j.Request.SourceID,
		Title:     j.Request.Title,
		URL:       j.Request.URL,
		MediaType: j.Request.Type,
		At:        time.Now(),
	}
	out, err := j.Result()
	if out != nil {
		ev.Path = out.Path
		ev.Cached = out.Cached
	}
	if err != nil {
		ev.Error = err.Error()
		ev.Kind = Kind(err)
	}
	return ev
}
