// Package profiles persists the source catalog and named profile
// configuration as a JSON document on disk. A profile is a named set of
// feed sources; exactly one profile is active at a time and drives
// bulletin generation.
package profiles

import (
	"errors"
	"sort"
	"strings"
)

// Source describes one RSS feed a profile can draw bulletins from.
type Source struct {
	Enabled     bool   `json:"enabled"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Custom      bool   `json:"custom"`
}

// Profile is a named set of sources.
type Profile struct {
	Name    string            `json:"name"`
	Sources map[string]Source `json:"sources"`
}

// Document is the on-disk shape of the profile store.
type Document struct {
	ActiveProfile string             `json:"active_profile"`
	Profiles      map[string]Profile `json:"profiles"`
}

// DefaultProfileID is the profile every installation starts with. It can be
// edited but never deleted.
const DefaultProfileID = "default"

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrProfileExists    = errors.New("profile already exists")
	ErrDefaultProtected = errors.New("default profile cannot be deleted")
	ErrSourceNotFound   = errors.New("source not found")
	ErrInvalidInput     = errors.New("invalid profile input")
)

// EnabledSource pairs a source name with its feed URL in enumeration order.
type EnabledSource struct {
	Name string
	URL  string
}

// EnabledSources returns the profile's enabled sources sorted by name.
// Sorting makes enumeration order stable across runs, which fixes the
// segment order of the combined bulletin.
func (p Profile) EnabledSources() []EnabledSource {
	names := make([]string, 0, len(p.Sources))
	for name, source := range p.Sources {
		if source.Enabled && strings.TrimSpace(source.URL) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	sources := make([]EnabledSource, 0, len(names))
	for _, name := range names {
		sources = append(sources, EnabledSource{Name: name, URL: p.Sources[name].URL})
	}
	return sources
}

// NormalizeID converts a display name into a profile identifier.
func NormalizeID(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
}

// DefaultSources returns the stock source catalog seeded into new profiles.
func DefaultSources() map[string]Source {
	return map[string]Source{
		"ABC News Top Stories": {
			Enabled:     true,
			URL:         "https://www.abc.net.au/feeds/101858056/podcast.xml",
			Description: "Australian news headlines (60-90 seconds)",
		},
		"BBC News 5min": {
			Enabled:     true,
			URL:         "https://podcast.voice.api.bbci.co.uk/rss/audio/p002vsmz?api_key=Wbek5zSqxz0Hk1blo5IBqbd9SCWIfNbT",
			Description: "World news bulletin (5 minutes)",
		},
		"SBS News Updates": {
			Enabled:     true,
			URL:         "https://feeds.sbs.com.au/sbs-news-update",
			Description: "Australian/World news (morning/midday/evening)",
		},
		"CNBC Business Update": {
			Enabled:     true,
			URL:         "https://feeds.simplecast.com/oloBAvaH",
			Description: "US market updates (3-5 minutes)",
		},
		"CommSec Market Update": {
			Enabled:     true,
			URL:         "https://www.omnycontent.com/d/playlist/820f09cf-2ace-4180-a92d-aa4c0008f5fb/7ce30ada-3515-4538-a131-afef0177d550/1b3da022-8454-4155-8336-afef0177d567/podcast.rss",
			Description: "Australian market commentary",
		},
		"AI News Daily": {
			Enabled:     true,
			URL:         "https://ai-news-daily.podigee.io/feed/mp3",
			Description: "AI technology news (5 minutes)",
		},
	}
}

// DefaultDocument returns the document seeded on first use.
func DefaultDocument() Document {
	return Document{
		ActiveProfile: DefaultProfileID,
		Profiles: map[string]Profile{
			DefaultProfileID: {
				Name:    "Default",
				Sources: DefaultSources(),
			},
		},
	}
}

// Clone returns a deep copy so callers can mutate without racing the store.
func (d Document) Clone() Document {
	out := Document{
		ActiveProfile: d.ActiveProfile,
		Profiles:      make(map[string]Profile, len(d.Profiles)),
	}
	for id, profile := range d.Profiles {
		sources := make(map[string]Source, len(profile.Sources))
		for name, source := range profile.Sources {
			sources[name] = source
		}
		out.Profiles[id] = Profile{Name: profile.Name, Sources: sources}
	}
	return out
}
