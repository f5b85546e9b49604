package domain

import (
	"fmt"
	"strings"
	"time"
)

// UnknownReleaseDate marks an album whose release date could not be parsed.
// It sorts before every real date.
var UnknownReleaseDate = time.Time{}

// Album is one entry of the top albums chart.
// Values are immutable once built by NewAlbum.
type Album struct {
	ID          string    // iTunes collection ID
	Name        string    // Album title
	Artist      string    // Artist display name
	ArtworkURL  string    // Largest artwork variant
	ReleaseDate time.Time // UnknownReleaseDate if the feed value was unparsable
	Category    string    // Genre label, e.g. "Pop"
	URL         string    // Store page
}

// NewAlbum validates and builds an Album.
// A blank id or artist is rejected with an error wrapping ErrInvalidAlbum.
func NewAlbum(id, name, artist, artworkURL string, releaseDate time.Time, category, url string) (Album, error) {
	if strings.TrimSpace(id) == "" {
		return Album{}, fmt.Errorf("%w: id cannot be blank", ErrInvalidAlbum)
	}
	if strings.TrimSpace(artist) == "" {
		return Album{}, fmt.Errorf("%w: artist cannot be blank", ErrInvalidAlbum)
	}
	return Album{
		ID:          id,
		Name:        name,
		Artist:      artist,
		ArtworkURL:  artworkURL,
		ReleaseDate: releaseDate,
		Category:    category,
		URL:         url,
	}, nil
}

// Equal reports whether a and b describe the same album.
// Release dates are compared as instants.
func (a Album) Equal(b Album) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Artist == b.Artist &&
		a.ArtworkURL == b.ArtworkURL &&
		a.ReleaseDate.Equal(b.ReleaseDate) &&
		a.Category == b.Category &&
		a.URL == b.URL
}

// HasReleaseDate reports whether the release date is known
func (a Album) HasReleaseDate() bool {
	return !a.ReleaseDate.Equal(UnknownReleaseDate)
}

// FormattedReleaseDate returns the release date for display (e.g. "Jan 2, 2024")
func (a Album) FormattedReleaseDate() string {
	if !a.HasReleaseDate() {
		return "Unknown"
	}
	return a.ReleaseDate.Format("Jan 2, 2006")
}

// ReleaseYear returns the release year, or 0 if unknown
func (a Album) ReleaseYear() int {
	if !a.HasReleaseDate() {
		return 0
	}
	return a.ReleaseDate.Year()
}

// SyncInfo describes the last successful replacement of the album cache.
type SyncInfo struct {
	ID        string    // Snapshot identifier (UUID)
	FetchedAt time.Time // When the snapshot was written
	Count     int       // Number of albums in the snapshot
}

// IsZero reports whether no snapshot was ever recorded
func (s SyncInfo) IsZero() bool {
	return s.ID == "" && s.FetchedAt.IsZero()
}
