package core

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Harvester inspects the toolchain directory after an invocation.
//
// It only looks at names it is told about: the expected outputs, the
// sentinel files, and the debug glob patterns. It never scans for "whatever
// changed".
type Harvester struct {
	// BaseDir is the toolchain directory; relative names resolve against it.
	BaseDir string

	FS FS
}

// NewHarvester creates a new Harvester with the given base directory.
func NewHarvester(baseDir string, fsys FS) *Harvester {
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Harvester{BaseDir: baseDir, FS: fsys}
}

func (h *Harvester) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(h.BaseDir, name)
}

// Collect returns the artifact for name, or nil if the toolchain did not
// produce it.
func (h *Harvester) Collect(name string) (*Artifact, error) {
	path := h.resolve(name)
	info, err := h.FS.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat output %q: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("output %q is a directory", name)
	}
	content, err := h.FS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading output %q: %w", name, err)
	}
	return &Artifact{
		Path:   path,
		Size:   int64(len(content)),
		Digest: Digest(content),
	}, nil
}

// SentinelHit is a sentinel file that exists and has content.
type SentinelHit struct {
	Stage   Stage
	Path    string
	Content []byte
}

// CheckSentinels returns the first sentinel, in pipeline order, that exists
// and is non-empty. Empty sentinel files are ignored.
func (h *Harvester) CheckSentinels(sentinels Sentinels) (*SentinelHit, error) {
	for _, s := range sentinels.Ordered() {
		path := h.resolve(s.Name)
		info, err := h.FS.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat sentinel %q: %w", s.Name, err)
		}
		if info.IsDir() || info.Size() == 0 {
			continue
		}
		content, err := h.FS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading sentinel %q: %w", s.Name, err)
		}
		if len(content) == 0 {
			continue
		}
		return &SentinelHit{Stage: s.Stage, Path: path, Content: content}, nil
	}
	return nil, nil
}

// Intermediates expands the debug patterns in the base directory.
// The result is sorted and free of duplicates.
func (h *Harvester) Intermediates(patterns []string) ([]string, error) {
	var all []string
	for _, p := range patterns {
		matches, err := h.FS.Glob(h.resolve(p))
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", p, err)
		}
		all = append(all, matches...)
	}
	sort.Strings(all)
	return deduplicateSorted(all), nil
}

// deduplicateSorted removes duplicates from a sorted slice.
func deduplicateSorted(sorted []string) []string {
	if len(sorted) == 0 {
		return sorted
	}

	result := make([]string, 0, len(sorted))
	result = append(result, sorted[0])

	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			result = append(result, sorted[i])
		}
	}

	return result
}
