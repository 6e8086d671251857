// Package artifacts stores downloaded job archives. A Sink takes the raw
// archive stream for a job and returns where it put it.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink persists downloaded job artifacts.
type Sink interface {
	// Save writes the archive stream for jobID under name and returns the
	// location of the stored artifact.
	Save(ctx context.Context, jobID, name string, r io.Reader) (string, error)
}

// DirSink writes artifacts to a local directory, one subdirectory per job.
type DirSink struct {
	root string
}

var _ Sink = (*DirSink)(nil)

func NewDirSink(root string) *DirSink {
	return &DirSink{root: root}
}

func (s *DirSink) Save(ctx context.Context, jobID, name string, r io.Reader) (string, error) {
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create artifact file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	return path, nil
}
