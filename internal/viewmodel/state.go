package viewmodel

import (
	"time"

	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/search"
)

// UIError is the presentation form of a domain failure
type UIError struct {
	Kind    domain.ErrorKind
	Message string             // Shown to the user
	Cause   *domain.AlbumError // Kept for logging
}

func newUIError(err *domain.AlbumError) *UIError {
	if err == nil {
		err = domain.NetworkError("")
	}
	return &UIError{Kind: err.Kind, Message: err.UserMessage(), Cause: err}
}

// UIState is an immutable snapshot of everything the albums screen shows.
// Slices are never modified after a state is published.
type UIState struct {
	Albums       []domain.Album
	IsLoading    bool
	IsRefreshing bool
	SearchQuery  string
	Error        *UIError
	LastUpdated  time.Time // Zero until a refresh has ever succeeded
}

func (s UIState) HasError() bool { return s.Error != nil }

// IsEmpty reports that there is nothing to show and nothing coming
func (s UIState) IsEmpty() bool { return len(s.Albums) == 0 && !s.IsLoading }

func (s UIState) HasContent() bool { return len(s.Albums) > 0 }

// FilteredAlbums applies the search query, if any
func (s UIState) FilteredAlbums() []domain.Album {
	return search.Filter(s.Albums, s.SearchQuery)
}
