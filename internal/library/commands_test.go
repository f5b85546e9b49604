package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/tunes/internal/domain"
)

func TestRefreshAlbums_EmitsLoadingThenTerminal(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		source := new(MockAlbumSource)
		source.On("FetchTopAlbums", mock.Anything, mock.Anything).
			Return(domain.FeedPage{Albums: []domain.Album{album(t, "1", "One", "A")}}, nil)

		cmd := NewRefreshAlbums(NewRepository(source, newMemoryStore(t), 0, nil))
		results := drain(t, cmd.Execute(context.Background()))

		require.Len(t, results, 2)
		assert.True(t, results[0].IsLoading())
		assert.Equal(t, domain.ResultSuccess, results[1].Kind())
	})

	t.Run("failure", func(t *testing.T) {
		source := new(MockAlbumSource)
		source.On("FetchTopAlbums", mock.Anything, mock.Anything).Return(domain.FeedPage{}, domain.NetworkError(""))

		cmd := NewRefreshAlbums(NewRepository(source, newMemoryStore(t), 0, nil))
		results := drain(t, cmd.Execute(context.Background()))

		require.Len(t, results, 2)
		assert.True(t, results[0].IsLoading())
		assert.Equal(t, domain.KindNetwork, results[1].Err().Kind)
	})
}

func TestRefreshAlbums_CancelledHasNoTerminal(t *testing.T) {
	source := newGatedSource(domain.FeedPage{})
	cmd := NewRefreshAlbums(NewRepository(source, newMemoryStore(t), 0, nil))

	ctx, cancel := context.WithCancel(context.Background())
	ch := cmd.Execute(ctx)

	assert.True(t, next(t, ch).IsLoading())
	<-source.started
	cancel()

	assert.Empty(t, drain(t, ch))
}
