package domain

import "context"

// Snapshot is one emission of a live store query.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// AlbumStore is the local album cache.
// Writes replace the whole chart; reads are available as live queries
// that re-emit after every committed write.
type AlbumStore interface {
	// GetAlbums returns the cached chart in rank order
	GetAlbums(ctx context.Context) ([]Album, error)

	// GetAlbum returns a single album, or ErrAlbumNotFound
	GetAlbum(ctx context.Context, id string) (Album, error)

	// ReplaceAll clears the chart and inserts albums in one transaction
	ReplaceAll(ctx context.Context, albums []Album) (SyncInfo, error)

	// LastSync returns metadata for the most recent ReplaceAll
	LastSync(ctx context.Context) (SyncInfo, error)

	// WatchAlbums emits the chart now and after each committed write.
	// The channel is closed when ctx is done.
	WatchAlbums(ctx context.Context) <-chan Snapshot[[]Album]

	// WatchAlbum is WatchAlbums for a single id. A missing album is
	// emitted as Err == ErrAlbumNotFound.
	WatchAlbum(ctx context.Context, id string) <-chan Snapshot[Album]

	// Clear removes every cached album and the sync metadata
	Clear(ctx context.Context) error

	Close() error
}
