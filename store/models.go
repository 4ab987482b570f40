package store

import (
	"errors"
	"time"
)

const (
	StatusComplete = "Complete"
	StatusFailed   = "Failed"
)

var ErrNotFound = errors.New("download not found")

// Download is the latest known outcome for one content key and media type.
type Download struct {
	ContentKey string    `json:"content_key"`
	MediaType  string    `json:"media_type"`
	SourceID   string    `json:"source_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url,omitempty"`
	Owner      string    `json:"owner,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListOptions struct {
	Status string // empty = any
	Limit  int    // <= 0 = 100
}
