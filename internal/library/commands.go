package library

import (
	"context"

	"github.com/mmcdole/tunes/internal/domain"
)

// RefreshAlbums pulls the chart from the network.
type RefreshAlbums struct {
	repo *Repository
}

func NewRefreshAlbums(repo *Repository) *RefreshAlbums {
	return &RefreshAlbums{repo: repo}
}

// Execute emits Loading, then exactly one Success or Failure, then closes.
// If ctx is cancelled first, the channel closes after Loading.
func (c *RefreshAlbums) Execute(ctx context.Context) <-chan domain.Result[[]domain.Album] {
	// Room for both emissions so the sender never blocks on a gone reader
	out := make(chan domain.Result[[]domain.Album], 2)

	go func() {
		defer close(out)
		out <- domain.Loading[[]domain.Album]()

		res, err := c.repo.Refresh(ctx)
		if err != nil {
			return
		}
		out <- res
	}()

	return out
}
