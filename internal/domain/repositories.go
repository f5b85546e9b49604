package domain

import (
	"context"
)

// FeedPage is one decoded fetch of the top albums feed.
type FeedPage struct {
	Albums  []Album // Valid albums in chart order
	Skipped int     // Entries dropped by validation
	Updated string  // Feed "updated" label, informational
}

// AlbumSource fetches the chart from the network (implemented by feed clients).
//
// Failures are returned as *AlbumError. Cancellation of ctx is returned
// as ctx.Err() and never wrapped.
type AlbumSource interface {
	FetchTopAlbums(ctx context.Context, limit int) (FeedPage, error)
}
