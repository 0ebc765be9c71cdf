package media

import (
	"fmt"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
)

// Tags holds the ID3 metadata written onto a rendered bulletin.
type Tags struct {
	Title       string
	Album       string
	Sources     []string
	GeneratedAt time.Time
}

// WriteTags stamps the bulletin file with ID3v2 metadata so players show a
// sensible title instead of the raw filename.
func WriteTags(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag: %w", err)
	}
	defer tag.Close()

	tag.SetTitle(tags.Title)
	tag.SetArtist("Newsreel")
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	tag.SetGenre("News")
	if !tags.GeneratedAt.IsZero() {
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, tags.GeneratedAt.Format("2006-01-02"))
	}
	if len(tags.Sources) > 0 {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "sources",
			Text:        strings.Join(tags.Sources, ", "),
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag: %w", err)
	}
	return nil
}
