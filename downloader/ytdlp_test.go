package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"cryogon/rizumu-fetch/media"

	"go.uber.org/zap/zaptest"
)

func TestFormatSelector(t *testing.T) {
	tests := []struct {
		t       media.Type
		quality string
		want    string
	}{
		{media.Audio, "", "bestaudio/best"},
		{media.Audio, "720", "bestaudio/best"},
		{media.Video, "", "bestvideo+bestaudio/best"},
		{media.Video, "720", "bestvideo[height<=720]+bestaudio/best[height<=720]"},
		{media.Video, "1080p", "bestvideo[height<=1080]+bestaudio/best[height<=1080]"},
		{media.Video, "best", "bestvideo+bestaudio/best"},
	}
	for _, tt := range tests {
		if got := FormatSelector(tt.t, tt.quality); got != tt.want {
			t.Errorf("FormatSelector(%s, %q) = %q, want %q", tt.t, tt.quality, got, tt.want)
		}
	}
}

func TestArgs(t *testing.T) {
	y := NewYtDlp("yt-dlp", zaptest.NewLogger(t))

	audio := strings.Join(y.Args("https://youtu.be/x", "/stage/media.mp3", ExtractOptions{
		Type:        media.Audio,
		Quality:     "0",
		CookiesPath: "/c/cookies.txt",
	}), " ")
	for _, want := range []string{
		"-o /stage/media.%(ext)s",
		"-x --audio-format mp3",
		"--audio-quality 0",
		"--cookies /c/cookies.txt",
		"--no-playlist",
		"--write-info-json",
	} {
		if !strings.Contains(audio, want) {
			t.Errorf("audio args %q missing %q", audio, want)
		}
	}

	args := y.Args("--exec=rm -rf ~", "/stage/media.mp3", ExtractOptions{Type: media.Audio})
	if n := len(args); n < 2 || args[n-2] != "--" || args[n-1] != "--exec=rm -rf ~" {
		t.Errorf("url must follow a -- separator at the end, got %q", args)
	}

	video := strings.Join(y.Args("https://youtu.be/x", "/stage/media.mp4", ExtractOptions{Type: media.Video}), " ")
	if !strings.Contains(video, "--merge-output-format mp4") {
		t.Errorf("video args should merge to mp4: %q", video)
	}
	if strings.Contains(video, "--cookies") || strings.Contains(video, "-x") {
		t.Errorf("unexpected flags in video args: %q", video)
	}
}

func TestParseProbe(t *testing.T) {
	single := []byte(`{"id":"abc","title":"Song","uploader":"Band","duration":61.5,"webpage_url":"https://www.youtube.com/watch?v=abc"}`)
	entries, err := parseProbe(single, 0)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc" || entries[0].Duration != 61.5 {
		t.Errorf("unexpected single entry: %+v", entries)
	}

	playlist := []byte(`{"_type":"playlist","id":"PL1","entries":[
		{"id":"a","title":"A"},{"id":"","title":"private"},{"id":"b","title":"B"},{"id":"c","title":"C"}]}`)
	entries, err = parseProbe(playlist, 2)
	if err != nil {
		t.Fatalf("parseProbe failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("unexpected playlist entries: %+v", entries)
	}

	if _, err := parseProbe([]byte("not json"), 0); err == nil {
		t.Error("Expected error for malformed output")
	}
}

func TestLineTailKeepsLast(t *testing.T) {
	tail := newLineTail(2)
	for _, l := range []string{"one", "two", "three"} {
		tail.add(l)
	}
	if got := tail.String(); got != "two\nthree" {
		t.Errorf("Expected last two lines, got %q", got)
	}
}

// writeScript installs a fake yt-dlp that honours -o and prints progress.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script extractor not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractRunsBinary(t *testing.T) {
	bin := writeScript(t, `
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
base=$(echo "$out" | sed 's/\.%(ext)s$//')
echo "[download]  42.0% of 3.00MiB"
echo "[download] 100% of 3.00MiB"
printf 'data' > "$base.mp3"
printf '{"title":"t"}' > "$base.info.json"
`)
	y := NewYtDlp(bin, zaptest.NewLogger(t))
	stage := t.TempDir()

	var mu sync.Mutex
	var seen []float64
	res, err := y.Extract(context.Background(), "https://youtu.be/x", filepath.Join(stage, "media.mp3"), ExtractOptions{
		Type: media.Audio,
		Progress: func(p float64) {
			mu.Lock()
			seen = append(seen, p)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.MediaPath != filepath.Join(stage, "media.mp3") {
		t.Errorf("unexpected media path %s", res.MediaPath)
	}
	if res.SidecarPath != filepath.Join(stage, "media.info.json") {
		t.Errorf("unexpected sidecar path %s", res.SidecarPath)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 42 || seen[1] != 100 {
		t.Errorf("unexpected progress values %v", seen)
	}
}

func TestExtractExitError(t *testing.T) {
	bin := writeScript(t, `
echo "ERROR: [youtube] x: Sign in to confirm you're not a bot" >&2
exit 1
`)
	y := NewYtDlp(bin, zaptest.NewLogger(t))

	_, err := y.Extract(context.Background(), "https://youtu.be/x", filepath.Join(t.TempDir(), "media.mp3"), ExtractOptions{Type: media.Audio})
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("Expected ExtractionError, got %v", err)
	}
	if ee.Code != 1 || !NeedsCredentials(ee.Stderr) {
		t.Errorf("stderr tail should carry the failure: %+v", ee)
	}
}

func TestExtractMissingBinary(t *testing.T) {
	y := NewYtDlp(filepath.Join(t.TempDir(), "missing"), zaptest.NewLogger(t))
	_, err := y.Extract(context.Background(), "https://youtu.be/x", filepath.Join(t.TempDir(), "media.mp3"), ExtractOptions{})
	var ee *ExtractionError
	if !errors.As(err, &ee) || ee.Code != -1 {
		t.Errorf("Expected spawn failure, got %v", err)
	}
}

func TestExtractMissingOutput(t *testing.T) {
	bin := writeScript(t, "exit 0\n")
	y := NewYtDlp(bin, zaptest.NewLogger(t))
	_, err := y.Extract(context.Background(), "https://youtu.be/x", filepath.Join(t.TempDir(), "media.mp3"), ExtractOptions{})
	if Kind(err) != "extraction_failed" {
		t.Errorf("Expected extraction_failed when nothing was written, got %v", err)
	}
}

func TestProbeSeparatesURL(t *testing.T) {
	bin := writeScript(t, `
prev=""
last=""
for a in "$@"; do prev="$last"; last="$a"; done
if [ "$prev" != "--" ]; then echo "url not separated" >&2; exit 2; fi
printf '{"id":"abc","title":"Song"}'
`)
	y := NewYtDlp(bin, zaptest.NewLogger(t))

	entries, err := y.Probe(context.Background(), "--version", 0)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc" {
		t.Errorf("unexpected entries %+v", entries)
	}
}
