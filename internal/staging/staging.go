// Package staging manages per-run scratch directories for downloaded
// segments. Every pipeline run works inside its own directory so that
// concurrent downloads never collide and cleanup can remove a run's
// intermediates in one operation.
package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Area is a scratch directory owned by a single pipeline run.
type Area struct {
	runID string
	root  string
}

// NewArea creates a fresh scratch directory under stagingDir keyed by runID.
// When runID is empty a new identifier is generated.
func NewArea(stagingDir, runID string) (*Area, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, fmt.Errorf("staging directory not configured")
	}
	if strings.TrimSpace(runID) == "" {
		runID = uuid.NewString()
	}
	root := filepath.Join(stagingDir, runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging area: %w", err)
	}
	return &Area{runID: runID, root: root}, nil
}

// RunID returns the identifier this area is keyed by.
func (a *Area) RunID() string { return a.runID }

// Root returns the absolute path of the scratch directory.
func (a *Area) Root() string { return a.root }

// SegmentPath returns the destination path for a named segment file.
func (a *Area) SegmentPath(filename string) string {
	return filepath.Join(a.root, filename)
}

// Release removes the scratch directory and everything in it. Safe to call
// more than once.
func (a *Area) Release() error {
	if a == nil || a.root == "" {
		return nil
	}
	if err := os.RemoveAll(a.root); err != nil {
		return fmt.Errorf("release staging area: %w", err)
	}
	return nil
}
