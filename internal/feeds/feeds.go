// Package feeds resolves RSS and Atom feeds to the most recent audio
// bulletin they advertise.
package feeds

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"newsreel/internal/services"
)

// Reference identifies the audio enclosure selected from a feed.
type Reference struct {
	URL       string
	MediaType string
	Title     string
}

// Resolver parses feeds and picks the newest audio enclosure.
type Resolver struct {
	parser *gofeed.Parser
}

// NewResolver returns a resolver that identifies itself with userAgent.
func NewResolver(userAgent string) *Resolver {
	parser := gofeed.NewParser()
	if strings.TrimSpace(userAgent) != "" {
		parser.UserAgent = userAgent
	}
	return &Resolver{parser: parser}
}

// Resolve fetches the feed and returns the first audio enclosure of the
// newest entry. Entries are taken in feed-declared order, so the first item
// is the newest. Feeds that cannot be fetched or parsed, or carry zero
// entries, map to services.ErrSourceUnavailable; feeds with no audio
// enclosure on the newest entry map to services.ErrNoAudioEnclosure.
func (r *Resolver) Resolve(ctx context.Context, feedURL string) (Reference, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %v", services.ErrSourceUnavailable, err)
	}
	if len(feed.Items) == 0 {
		return Reference{}, fmt.Errorf("%w: feed has no entries", services.ErrSourceUnavailable)
	}

	newest := feed.Items[0]
	for _, enclosure := range newest.Enclosures {
		if enclosure == nil || strings.TrimSpace(enclosure.URL) == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(enclosure.Type), "audio") {
			continue
		}
		return Reference{
			URL:       enclosure.URL,
			MediaType: enclosure.Type,
			Title:     strings.TrimSpace(newest.Title),
		}, nil
	}

	return Reference{}, fmt.Errorf("%w: newest entry %q has no audio enclosure", services.ErrNoAudioEnclosure, strings.TrimSpace(newest.Title))
}
