package delivery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/spotdown/internal/shared"
)

// Workspace names the transient artifacts of one pipeline run.
//
// Every path shares the prefix <dir>/<trackID>-<runID>, so concurrent runs for the same track never collide
// and [Workspace.Purge] can find everything a run created.
type Workspace struct {
	dir     string
	trackID string
	runID   string
}

// NewWorkspace creates dir if needed and starts a run for trackID.
func NewWorkspace(dir, trackID string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{dir: dir, trackID: trackID, runID: shared.GenerateID()}, nil
}

// RunID identifies the run.
func (w *Workspace) RunID() string {
	return w.runID
}

func (w *Workspace) prefix() string {
	return w.trackID + "-" + w.runID
}

// Path returns the artifact path for an extension.
func (w *Workspace) Path(ext string) string {
	return filepath.Join(w.dir, w.prefix()+"."+strings.TrimPrefix(ext, "."))
}

// Artifacts lists the files the run currently has on disk.
func (w *Workspace) Artifacts() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), w.prefix()+".") {
			paths = append(paths, filepath.Join(w.dir, e.Name()))
		}
	}
	return paths, nil
}

// Purge deletes every artifact of the run. Files that are already gone are ignored.
func (w *Workspace) Purge() error {
	paths, err := w.Artifacts()
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
