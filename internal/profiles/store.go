package profiles

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"newsreel/internal/fileutil"
	"newsreel/internal/logging"
)

// Store is a concurrency-safe profile store backed by a JSON file. Every
// mutation rewrites the file atomically so a crash never leaves a partial
// document behind.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	doc Document
}

// Open loads the document at path, seeding defaults when the file does not
// exist yet. Documents from older installations that carry a bare source map
// are migrated into the profile shape on first load.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("profile store path not configured")
	}
	store := &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "profiles"),
	}
	if err := store.reload(); err != nil {
		return nil, err
	}
	return store, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.doc = DefaultDocument()
			s.mu.Unlock()
			return s.save()
		}
		return fmt.Errorf("read profile store: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse profile store: %w", err)
	}
	if len(doc.Profiles) == 0 {
		doc = migrateLegacy(data)
	}
	if doc.ActiveProfile == "" {
		doc.ActiveProfile = DefaultProfileID
	}
	if _, ok := doc.Profiles[DefaultProfileID]; !ok {
		doc.Profiles[DefaultProfileID] = Profile{Name: "Default", Sources: DefaultSources()}
	}
	if _, ok := doc.Profiles[doc.ActiveProfile]; !ok {
		doc.ActiveProfile = DefaultProfileID
	}

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// migrateLegacy converts the pre-profile document shape, a top level
// {"sources": {...}} map, into a single default profile.
func migrateLegacy(data []byte) Document {
	var legacy struct {
		Sources map[string]Source `json:"sources"`
	}
	doc := DefaultDocument()
	if err := json.Unmarshal(data, &legacy); err == nil && len(legacy.Sources) > 0 {
		doc.Profiles[DefaultProfileID] = Profile{Name: "Default", Sources: legacy.Sources}
	}
	return doc
}

func (s *Store) save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode profile store: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write profile store: %w", err)
	}
	return nil
}

// Document returns a deep copy of the current document.
func (s *Store) Document() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Active returns the active profile identifier and a copy of its contents.
func (s *Store) Active() (string, Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.doc.Profiles[s.doc.ActiveProfile]
	if !ok {
		return "", Profile{}, ErrProfileNotFound
	}
	copied := Profile{Name: profile.Name, Sources: make(map[string]Source, len(profile.Sources))}
	for name, source := range profile.Sources {
		copied.Sources[name] = source
	}
	return s.doc.ActiveProfile, copied, nil
}

// Get returns a copy of the named profile.
func (s *Store) Get(id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.doc.Profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	copied := Profile{Name: profile.Name, Sources: make(map[string]Source, len(profile.Sources))}
	for name, source := range profile.Sources {
		copied.Sources[name] = source
	}
	return copied, nil
}

// Create adds a new profile seeded with the stock source catalog. The
// identifier is derived from id via NormalizeID.
func (s *Store) Create(id, name string) (string, error) {
	id = NormalizeID(id)
	if id == "" {
		return "", fmt.Errorf("%w: profile id required", ErrInvalidInput)
	}
	if strings.TrimSpace(name) == "" {
		name = "New Profile"
	}

	s.mu.Lock()
	if _, exists := s.doc.Profiles[id]; exists {
		s.mu.Unlock()
		return "", ErrProfileExists
	}
	s.doc.Profiles[id] = Profile{Name: name, Sources: DefaultSources()}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return "", err
	}
	s.logger.Info("profile created", logging.String("profile", id))
	return id, nil
}

// Delete removes a profile. The default profile is protected, and deleting
// the active profile switches activity back to default.
func (s *Store) Delete(id string) error {
	if id == DefaultProfileID {
		return ErrDefaultProtected
	}

	s.mu.Lock()
	if _, ok := s.doc.Profiles[id]; !ok {
		s.mu.Unlock()
		return ErrProfileNotFound
	}
	delete(s.doc.Profiles, id)
	if s.doc.ActiveProfile == id {
		s.doc.ActiveProfile = DefaultProfileID
	}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return err
	}
	s.logger.Info("profile deleted", logging.String("profile", id))
	return nil
}

// Switch makes the named profile active.
func (s *Store) Switch(id string) error {
	s.mu.Lock()
	if _, ok := s.doc.Profiles[id]; !ok {
		s.mu.Unlock()
		return ErrProfileNotFound
	}
	s.doc.ActiveProfile = id
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return err
	}
	s.logger.Info("active profile switched", logging.String("profile", id))
	return nil
}

// UpdateSources replaces the full source map of a profile.
func (s *Store) UpdateSources(id string, sources map[string]Source) error {
	s.mu.Lock()
	profile, ok := s.doc.Profiles[id]
	if !ok {
		s.mu.Unlock()
		return ErrProfileNotFound
	}
	profile.Sources = sources
	s.doc.Profiles[id] = profile
	s.mu.Unlock()

	return s.save()
}

// SetSourceEnabled toggles a single source within a profile.
func (s *Store) SetSourceEnabled(id, sourceName string, enabled bool) error {
	s.mu.Lock()
	profile, ok := s.doc.Profiles[id]
	if !ok {
		s.mu.Unlock()
		return ErrProfileNotFound
	}
	source, ok := profile.Sources[sourceName]
	if !ok {
		s.mu.Unlock()
		return ErrSourceNotFound
	}
	source.Enabled = enabled
	profile.Sources[sourceName] = source
	s.mu.Unlock()

	return s.save()
}

// AddCustomSource adds a user supplied feed to a profile, enabled by default.
func (s *Store) AddCustomSource(id, name, url, description string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: source name and url required", ErrInvalidInput)
	}

	s.mu.Lock()
	profile, ok := s.doc.Profiles[id]
	if !ok {
		s.mu.Unlock()
		return ErrProfileNotFound
	}
	profile.Sources[name] = Source{
		Enabled:     true,
		URL:         url,
		Description: description,
		Custom:      true,
	}
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return err
	}
	s.logger.Info("custom source added",
		logging.String("profile", id),
		logging.String("source", name),
	)
	return nil
}

// RemoveSource deletes a source from a profile.
func (s *Store) RemoveSource(id, name string) error {
	s.mu.Lock()
	profile, ok := s.doc.Profiles[id]
	if !ok {
		s.mu.Unlock()
		return ErrProfileNotFound
	}
	if _, ok := profile.Sources[name]; !ok {
		s.mu.Unlock()
		return ErrSourceNotFound
	}
	delete(profile.Sources, name)
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return err
	}
	s.logger.Info("source removed",
		logging.String("profile", id),
		logging.String("source", name),
	)
	return nil
}
