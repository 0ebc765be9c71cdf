// Package artifacts manages the output directory of rendered bulletins.
// Every bulletin is an MP3 payload plus a JSON sidecar with the same
// basename carrying run metadata.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"newsreel/internal/fileutil"
	"newsreel/internal/logging"
)

// ErrNotFound is returned when a named bulletin does not exist.
var ErrNotFound = errors.New("bulletin not found")

// Metadata is the JSON sidecar stored next to each bulletin.
type Metadata struct {
	RunID           string    `json:"run_id"`
	Profile         string    `json:"profile"`
	GeneratedAt     time.Time `json:"generated_at"`
	DurationSeconds float64   `json:"duration_seconds"`
	Sources         []string  `json:"sources"`
	SkippedSources  []string  `json:"skipped_sources,omitempty"`
}

// Artifact describes one bulletin on disk.
type Artifact struct {
	Name     string
	Path     string
	Size     int64
	ModTime  time.Time
	Metadata *Metadata
}

// Store lists, reads, and removes bulletins in the output directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "artifacts"),
	}
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// List returns all bulletins sorted newest first.
func (s *Store) List() ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp3") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifact := Artifact{
			Name:    entry.Name(),
			Path:    filepath.Join(s.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if meta, err := s.ReadMetadata(entry.Name()); err == nil {
			artifact.Metadata = meta
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].ModTime.After(artifacts[j].ModTime)
	})
	return artifacts, nil
}

// Get returns a single bulletin by name. Names containing path separators
// are rejected so callers cannot escape the output directory.
func (s *Store) Get(name string) (Artifact, error) {
	if err := validateName(name); err != nil {
		return Artifact{}, err
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Artifact{}, err
	}
	artifact := Artifact{Name: name, Path: path, Size: info.Size(), ModTime: info.ModTime()}
	if meta, err := s.ReadMetadata(name); err == nil {
		artifact.Metadata = meta
	}
	return artifact, nil
}

// WriteMetadata stores the sidecar for a named bulletin.
func (s *Store) WriteMetadata(name string, meta Metadata) error {
	if err := validateName(name); err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return fileutil.WriteFileAtomic(sidecarPath(filepath.Join(s.dir, name)), data, 0o644)
}

// ReadMetadata loads the sidecar for a named bulletin.
func (s *Store) ReadMetadata(name string) (*Metadata, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(sidecarPath(filepath.Join(s.dir, name)))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}

// Delete removes a bulletin and its sidecar. The sidecar removal is best
// effort since the payload is what occupies disk space.
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	_ = os.Remove(sidecarPath(path))
	s.logger.Info("bulletin deleted",
		logging.String("name", name),
		logging.String(logging.FieldEventType, "bulletin_deleted"),
	)
	return nil
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid bulletin name %q", name)
	}
	return nil
}

func sidecarPath(payloadPath string) string {
	return strings.TrimSuffix(payloadPath, filepath.Ext(payloadPath)) + ".json"
}
