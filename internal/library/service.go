package library

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/mmcdole/tunes/internal/domain"
)

const (
	DefaultLimit = 100
	refreshKey   = "refresh"
)

// Repository reconciles the album store with the remote feed.
// The store is the source of truth for reads; the feed is only consulted
// on Refresh.
type Repository struct {
	source domain.AlbumSource
	store  domain.AlbumStore
	limit  int
	logger *slog.Logger

	refreshes singleflight.Group
}

// NewRepository creates a repository requesting limit albums per refresh
func NewRepository(source domain.AlbumSource, store domain.AlbumStore, limit int, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Repository{source: source, store: store, limit: limit, logger: logger}
}

// TopAlbums streams the cached chart: Success for a non-empty chart,
// Loading while it is empty, Failure(Cache) when the store cannot be read.
// Store errors do not end the stream; it closes only when ctx is done
// or the store is closed.
func (r *Repository) TopAlbums(ctx context.Context) <-chan domain.Result[[]domain.Album] {
	out := make(chan domain.Result[[]domain.Album])
	snapshots := r.store.WatchAlbums(ctx)

	go func() {
		defer close(out)
		for snap := range snapshots {
			select {
			case out <- r.chartResult(snap):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func (r *Repository) chartResult(snap domain.Snapshot[[]domain.Album]) domain.Result[[]domain.Album] {
	if snap.Err != nil {
		r.logger.Error("failed to read albums", "error", snap.Err)
		return domain.Failure[[]domain.Album](domain.CacheError().WithCause(snap.Err))
	}
	if len(snap.Value) == 0 {
		return domain.Loading[[]domain.Album]()
	}
	albums := snap.Value
	if len(albums) > r.limit {
		albums = albums[:r.limit]
	}
	return domain.Success(albums)
}

// Album streams one cached album. A missing album is reported as
// Failure(EmptyResponse).
func (r *Repository) Album(ctx context.Context, id string) <-chan domain.Result[domain.Album] {
	out := make(chan domain.Result[domain.Album])
	snapshots := r.store.WatchAlbum(ctx, id)

	go func() {
		defer close(out)
		for snap := range snapshots {
			var res domain.Result[domain.Album]
			switch {
			case errors.Is(snap.Err, domain.ErrAlbumNotFound):
				res = domain.Failure[domain.Album](domain.EmptyResponseError().WithCause(snap.Err))
			case snap.Err != nil:
				r.logger.Error("failed to read album", "error", snap.Err, "albumID", id)
				res = domain.Failure[domain.Album](domain.CacheError().WithCause(snap.Err))
			default:
				res = domain.Success(snap.Value)
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// LastSync returns metadata for the most recent successful refresh
func (r *Repository) LastSync(ctx context.Context) (domain.SyncInfo, error) {
	return r.store.LastSync(ctx)
}

// Refresh fetches the chart and replaces the cache with it.
//
// Feed and store failures are returned as Failure results. An empty chart
// leaves the cache untouched and yields Failure(EmptyResponse). The error
// return is only ever ctx.Err().
//
// Concurrent callers share one fetch. If the caller that started it is
// cancelled, the remaining callers start a new one.
func (r *Repository) Refresh(ctx context.Context) (domain.Result[[]domain.Album], error) {
	for {
		ch := r.refreshes.DoChan(refreshKey, func() (interface{}, error) {
			return r.refresh(ctx)
		})

		select {
		case <-ctx.Done():
			return domain.Result[[]domain.Album]{}, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if err := ctx.Err(); err != nil {
					return domain.Result[[]domain.Album]{}, err
				}
				r.logger.Debug("shared refresh was cancelled, retrying")
				continue
			}
			if res.Shared {
				r.logger.Debug("joined in-flight refresh")
			}
			return res.Val.(domain.Result[[]domain.Album]), nil
		}
	}
}

func (r *Repository) refresh(ctx context.Context) (domain.Result[[]domain.Album], error) {
	page, err := r.source.FetchTopAlbums(ctx, r.limit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Result[[]domain.Album]{}, ctxErr
		}
		ae := domain.AsAlbumError(err)
		r.logger.Warn("refresh failed", "error", ae, "kind", ae.Kind.String())
		return domain.Failure[[]domain.Album](ae), nil
	}

	if page.Skipped > 0 {
		r.logger.Warn("dropped invalid feed entries", "count", page.Skipped)
	}

	albums := page.Albums
	if len(albums) == 0 {
		// Keep whatever is cached
		r.logger.Warn("feed returned no albums")
		return domain.Failure[[]domain.Album](domain.EmptyResponseError()), nil
	}
	if len(albums) > r.limit {
		albums = albums[:r.limit]
	}

	info, err := r.store.ReplaceAll(ctx, albums)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Result[[]domain.Album]{}, ctxErr
		}
		r.logger.Error("failed to save albums", "error", err)
		return domain.Failure[[]domain.Album](domain.CacheError().WithCause(err)), nil
	}

	r.logger.Info("refreshed albums", "count", info.Count, "snapshot", info.ID, "feedUpdated", page.Updated)
	return domain.Success(albums), nil
}
