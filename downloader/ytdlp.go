package downloader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"cryogon/rizumu-fetch/media"

	"go.uber.org/zap"
)

type ExtractOptions struct {
	Type        media.Type
	Quality     string // audio: --audio-quality value; video: max height ("720", "720p")
	CookiesPath string // empty = unauthenticated
	Progress    func(percent float64)
}

// Extraction points at the files an extractor left behind.
type Extraction struct {
	MediaPath   string
	SidecarPath string // empty when yt-dlp wrote no info json
}

// Extractor downloads one URL to outputPath. Implementations never retry.
type Extractor interface {
	Extract(ctx context.Context, url, outputPath string, opts ExtractOptions) (*Extraction, error)
}

// YtDlp runs the yt-dlp binary.
type YtDlp struct {
	Binary string
	log    *zap.Logger
}

func NewYtDlp(binary string, log *zap.Logger) *YtDlp {
	return &YtDlp{Binary: binary, log: log.Named("yt-dlp")}
}

var heightRegex = regexp.MustCompile(`^(\d{3,4})p?$`)

// FormatSelector picks the best stream, video capped at the requested height.
func FormatSelector(t media.Type, quality string) string {
	if t != media.Video {
		return "bestaudio/best"
	}
	m := heightRegex.FindStringSubmatch(strings.TrimSpace(strings.ToLower(quality)))
	if m == nil {
		return "bestvideo+bestaudio/best"
	}
	return fmt.Sprintf("bestvideo[height<=%[1]s]+bestaudio/best[height<=%[1]s]", m[1])
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func (y *YtDlp) Args(url, outputPath string, opts ExtractOptions) []string {
	args := []string{
		"-f", FormatSelector(opts.Type, opts.Quality),
		"-o", trimExt(outputPath) + ".%(ext)s",
		"--no-playlist",
		"--ignore-config",
		"--no-color",
		"--newline",
		"--progress",
		"--write-info-json",
	}
	if opts.Type == media.Video {
		args = append(args, "--merge-output-format", "mp4")
	} else {
		args = append(args, "-x", "--audio-format", "mp3")
		if opts.Quality != "" {
			args = append(args, "--audio-quality", opts.Quality)
		}
	}
	if opts.CookiesPath != "" {
		args = append(args, "--cookies", opts.CookiesPath)
	}
	// the url is never parsed as an option
	return append(args, "--", url)
}

func (y *YtDlp) Extract(ctx context.Context, url, outputPath string, opts ExtractOptions) (*Extraction, error) {
	cmd := exec.CommandContext(ctx, y.Binary, y.Args(url, outputPath, opts)...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ExtractionError{Code: -1, Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, &ExtractionError{Code: -1, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ExtractionError{Code: -1, Err: err}
	}

	tail := newLineTail(20)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		y.streamOutput(stdoutPipe, "stdout", opts.Progress, nil)
	}()
	go func() {
		defer wg.Done()
		y.streamOutput(stderrPipe, "stderr", opts.Progress, tail)
	}()
	// pipes must be drained before Wait closes them
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("yt-dlp interrupted: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExtractionError{Code: exitErr.ExitCode(), Stderr: tail.String(), Err: err}
		}
		return nil, &ExtractionError{Code: -1, Stderr: tail.String(), Err: err}
	}

	mediaPath, err := locateOutput(outputPath)
	if err != nil {
		return nil, &ExtractionError{Code: 0, Stderr: tail.String(), Err: err}
	}

	res := &Extraction{MediaPath: mediaPath}
	if sidecar := trimExt(outputPath) + ".info.json"; fileExists(sidecar) {
		res.SidecarPath = sidecar
	}
	return res, nil
}

// locateOutput tolerates yt-dlp choosing a different container than requested.
func locateOutput(outputPath string) (string, error) {
	if fileExists(outputPath) {
		return outputPath, nil
	}
	matches, _ := filepath.Glob(trimExt(outputPath) + ".*")
	for _, m := range matches {
		if strings.HasSuffix(m, ".info.json") || strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp finished but %s was not written", filepath.Base(outputPath))
}

// Matches "[download]  10.5% of ..."
var progressRegex = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%`)

func (y *YtDlp) streamOutput(pipe io.Reader, stream string, progress func(float64), tail *lineTail) {
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		y.log.Debug(line, zap.String("stream", stream))

		if tail != nil {
			tail.add(line)
		}
		if progress == nil {
			continue
		}
		if matches := progressRegex.FindStringSubmatch(line); len(matches) > 1 {
			if p, err := strconv.ParseFloat(matches[1], 64); err == nil {
				progress(p)
			}
		}
	}
}

// ProbeEntry is one item of `yt-dlp -J --flat-playlist` output.
type ProbeEntry struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	WebpageURL   string  `json:"webpage_url"`
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	Duration     float64 `json:"duration"`
	Thumbnail    string  `json:"thumbnail"`
	Thumbnails   []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
	ExtractorKey string `json:"extractor_key"`
	IEKey        string `json:"ie_key"`
	LiveStatus   string `json:"live_status"`
}

type probeResult struct {
	ProbeEntry
	Type    string       `json:"_type"`
	Entries []ProbeEntry `json:"entries"`
}

// Probe lists what a URL points to without downloading: the members of a
// playlist (capped by limit when > 0) or the single item itself.
func (y *YtDlp) Probe(ctx context.Context, url string, limit int) ([]ProbeEntry, error) {
	args := []string{"--flat-playlist", "-J", "--no-warnings", "--ignore-config"}
	if limit > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(limit))
	}
	args = append(args, "--", url)

	out, err := exec.CommandContext(ctx, y.Binary, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExtractionError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(string(exitErr.Stderr)), Err: err}
		}
		return nil, &ExtractionError{Code: -1, Err: err}
	}
	return parseProbe(out, limit)
}

func parseProbe(out []byte, limit int) ([]ProbeEntry, error) {
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	if res.Type != "playlist" {
		return []ProbeEntry{res.ProbeEntry}, nil
	}

	entries := make([]ProbeEntry, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.ID == "" {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

type lineTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

func newLineTail(max int) *lineTail { return &lineTail{max: max} }

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.lines, "\n"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
