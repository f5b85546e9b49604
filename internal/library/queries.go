package library

import (
	"context"

	"github.com/mmcdole/tunes/internal/domain"
)

// GetTopAlbums subscribes to the cached chart
type GetTopAlbums struct {
	repo *Repository
}

func NewGetTopAlbums(repo *Repository) *GetTopAlbums {
	return &GetTopAlbums{repo: repo}
}

func (q *GetTopAlbums) Execute(ctx context.Context) <-chan domain.Result[[]domain.Album] {
	return q.repo.TopAlbums(ctx)
}

// GetAlbumDetails subscribes to a single cached album
type GetAlbumDetails struct {
	repo *Repository
}

func NewGetAlbumDetails(repo *Repository) *GetAlbumDetails {
	return &GetAlbumDetails{repo: repo}
}

func (q *GetAlbumDetails) Execute(ctx context.Context, id string) <-chan domain.Result[domain.Album] {
	return q.repo.Album(ctx, id)
}

// GetSyncInfo reads the last refresh metadata
type GetSyncInfo struct {
	repo *Repository
}

func NewGetSyncInfo(repo *Repository) *GetSyncInfo {
	return &GetSyncInfo{repo: repo}
}

func (q *GetSyncInfo) Execute(ctx context.Context) (domain.SyncInfo, error) {
	return q.repo.LastSync(ctx)
}
