// Package media maps (source id, title) pairs to files on disk and owns the
// media/metadata directory layout.
package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	audioDir    = "audio"
	videoDir    = "videos"
	metadataDir = "metadata"
	stagingDir  = ".staging"
)

type Store struct {
	root string
}

// NewStore creates the directory layout under root if needed.
func NewStore(root string) (*Store, error) {
	s := &Store{root: root}
	if err := s.ensureDirs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) ensureDirs() error {
	for _, d := range []string{audioDir, videoDir, metadataDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(s.root, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

func typeDir(t Type) string {
	if t == Video {
		return videoDir
	}
	return audioDir
}

// PathFor never touches the disk.
func (s *Store) PathFor(sourceID, title string, t Type) string {
	return filepath.Join(s.root, typeDir(t), Key(sourceID, title)+"."+t.Ext())
}

func (s *Store) MetadataPath(sourceID, title string) string {
	return filepath.Join(s.root, metadataDir, Key(sourceID, title)+".json")
}

func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Remove deletes the media file and its sidecar. The sidecar survives while
// the other media type for the same key is still on disk.
func (s *Store) Remove(sourceID, title string, t Type) (bool, error) {
	existed, err := removeFile(s.PathFor(sourceID, title, t))
	if err != nil {
		return false, err
	}

	other := Audio
	if t == Audio {
		other = Video
	}
	if s.Exists(s.PathFor(sourceID, title, other)) {
		return existed, nil
	}
	if _, err := removeFile(s.MetadataPath(sourceID, title)); err != nil {
		return existed, err
	}
	return existed, nil
}

func removeFile(path string) (bool, error) {
	err := os.Remove(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("remove %s: %w", path, err)
	}
}

// Clear empties the scope and recreates the layout. Sidecars left without any
// media file are pruned. The staging area is left alone so extractions in
// flight can still be claimed.
func (s *Store) Clear(scope Scope) error {
	var targets []string
	switch scope {
	case ScopeAudio:
		targets = []string{audioDir}
	case ScopeVideo:
		targets = []string{videoDir}
	case ScopeAll:
		targets = []string{audioDir, videoDir, metadataDir}
	default:
		return fmt.Errorf("unknown scope %q", scope)
	}

	for _, d := range targets {
		if err := os.RemoveAll(filepath.Join(s.root, d)); err != nil {
			return fmt.Errorf("clear %s: %w", scope, err)
		}
	}
	if err := s.ensureDirs(); err != nil {
		return err
	}
	if scope == ScopeAll {
		return nil
	}
	return s.pruneSidecars()
}

func (s *Store) pruneSidecars() error {
	entries, err := os.ReadDir(filepath.Join(s.root, metadataDir))
	if err != nil {
		return fmt.Errorf("list metadata: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".json")
		if s.Exists(filepath.Join(s.root, audioDir, key+"."+Audio.Ext())) ||
			s.Exists(filepath.Join(s.root, videoDir, key+"."+Video.Ext())) {
			continue
		}
		if _, err := removeFile(filepath.Join(s.root, metadataDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Stage returns a fresh private directory for one extraction run.
func (s *Store) Stage(sourceID string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Join(s.root, stagingDir), HashID(sourceID)+"-*")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}

// Claim moves a staged media file (and optional sidecar) to their canonical
// locations and returns the canonical media path plus the parsed sidecar.
func (s *Store) Claim(stagedMedia, stagedSidecar, sourceID, title string, t Type) (string, map[string]any, error) {
	dst := s.PathFor(sourceID, title, t)
	if err := os.Rename(stagedMedia, dst); err != nil {
		return "", nil, fmt.Errorf("claim media: %w", err)
	}

	if stagedSidecar != "" && s.Exists(stagedSidecar) {
		if err := os.Rename(stagedSidecar, s.MetadataPath(sourceID, title)); err != nil {
			return dst, nil, fmt.Errorf("claim metadata: %w", err)
		}
	}

	meta, err := s.LoadMetadata(sourceID, title)
	if err != nil {
		return dst, nil, err
	}
	return dst, meta, nil
}

// LoadMetadata returns an empty map when there is no sidecar.
func (s *Store) LoadMetadata(sourceID, title string) (map[string]any, error) {
	data, err := os.ReadFile(s.MetadataPath(sourceID, title))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	meta := map[string]any{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return meta, nil
}

// SaveMetadata overwrites the canonical sidecar.
func (s *Store) SaveMetadata(sourceID, title string, meta map[string]any) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(s.MetadataPath(sourceID, title), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
