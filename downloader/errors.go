package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a caller needs exactly one candidate and the resolver found none.
	ErrNotFound = errors.New("no media found")
	// ErrDropped resolves jobs removed from a queue before they started.
	ErrDropped = errors.New("download removed from queue before it started")
	// ErrInvalidRequest wraps a request rejected before it is queued.
	ErrInvalidRequest = errors.New("invalid download request")
	// ErrClosed resolves jobs still pending when the service shuts down.
	ErrClosed = errors.New("download service closed")
)

// TransientFetchError means a metadata source could not be reached or parsed.
// Retrying the whole operation later may succeed.
type TransientFetchError struct {
	Source string
	Err    error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s results: %v", e.Source, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// CredentialsRequiredError is a hard stop: the extractor hit an authentication
// challenge and no cookie file is configured.
type CredentialsRequiredError struct {
	Path string
}

func (e *CredentialsRequiredError) Error() string {
	return "cookies are required to download this media.\n" +
		"Please install a browser extension like \"Get cookies.txt\" (e.g. from Chrome Web Store),\n" +
		"export your YouTube cookies as cookies.txt, and place the file at:\n" +
		e.Path
}

// ExtractionError is a yt-dlp failure. Code is the exit status, or -1 when
// the process could not be spawned.
type ExtractionError struct {
	Code   int
	Stderr string
	Err    error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	if e.Code < 0 {
		fmt.Fprintf(&b, "yt-dlp could not be started: %v", e.Err)
	} else {
		fmt.Fprintf(&b, "yt-dlp exited with code %d", e.Code)
	}
	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// IOError wraps a filesystem failure in the content store.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *IOError) Unwrap() error { return e.Err }

// Kind maps an error to a stable, loggable name.
func Kind(err error) string {
	var (
		transient *TransientFetchError
		creds     *CredentialsRequiredError
		extract   *ExtractionError
		ioErr     *IOError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &creds):
		return "credentials_required"
	case errors.As(err, &transient):
		return "transient_fetch"
	case errors.As(err, &extract):
		return "extraction_failed"
	case errors.As(err, &ioErr):
		return "io_failure"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrDropped):
		return "dropped"
	case errors.Is(err, ErrClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}
