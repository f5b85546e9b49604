package itunes

import (
	"strings"
	"time"

	"github.com/mmcdole/tunes/internal/domain"
)

// MapAlbums converts feed entries to domain albums in chart order.
// Entries without an id, without artwork or without an artist are
// dropped, as are repeated ids. The number of dropped entries is returned.
func MapAlbums(entries []Entry) ([]domain.Album, int) {
	albums := make([]domain.Album, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	skipped := 0

	for _, e := range entries {
		album, ok := mapAlbum(e)
		if !ok {
			skipped++
			continue
		}
		if _, dup := seen[album.ID]; dup {
			skipped++
			continue
		}
		seen[album.ID] = struct{}{}
		albums = append(albums, album)
	}
	return albums, skipped
}

// mapAlbum converts a single entry, reporting false if it is unusable
func mapAlbum(e Entry) (domain.Album, bool) {
	id := strings.TrimSpace(e.ID.Attr("im:id"))
	if id == "" {
		return domain.Album{}, false
	}

	artwork := largestImage(e.Images)
	if artwork == "" {
		return domain.Album{}, false
	}

	var name, artist string
	if e.Name != nil {
		name = e.Name.Label
	}
	if e.Artist != nil {
		artist = e.Artist.Label
	}

	category := e.Category.Attr("label")
	if category == "" {
		category = e.Category.Attr("term")
	}

	album, err := domain.NewAlbum(
		id,
		name,
		artist,
		artwork,
		parseReleaseDate(e.ReleaseDate),
		category,
		albumURL(e.Link),
	)
	if err != nil {
		return domain.Album{}, false
	}
	return album, true
}

// largestImage returns the last non-blank image; the feed lists them
// smallest first.
func largestImage(images []Attributed) string {
	for i := len(images) - 1; i >= 0; i-- {
		if url := strings.TrimSpace(images[i].Label); url != "" {
			return url
		}
	}
	return ""
}

// parseReleaseDate parses the ISO-8601 label into a UTC instant, falling
// back to domain.UnknownReleaseDate.
func parseReleaseDate(a *Attributed) time.Time {
	if a == nil {
		return domain.UnknownReleaseDate
	}
	label := strings.TrimSpace(a.Label)
	if label == "" {
		return domain.UnknownReleaseDate
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, label); err == nil {
			return t.UTC()
		}
	}
	return domain.UnknownReleaseDate
}

// albumURL prefers the rel=alternate link
func albumURL(links []Attributed) string {
	for i := range links {
		if links[i].Attr("rel") == "alternate" && links[i].Attr("href") != "" {
			return links[i].Attr("href")
		}
	}
	for i := range links {
		if href := links[i].Attr("href"); href != "" {
			return href
		}
	}
	return ""
}
