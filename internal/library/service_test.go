package library

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/store"
)

// MockAlbumSource is a mock for the remote feed
type MockAlbumSource struct {
	mock.Mock
}

func (m *MockAlbumSource) FetchTopAlbums(ctx context.Context, limit int) (domain.FeedPage, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).(domain.FeedPage), args.Error(1)
}

// gatedSource blocks every fetch until release is closed
type gatedSource struct {
	calls   atomic.Int32
	started chan struct{}
	once    sync.Once
	release chan struct{}
	page    domain.FeedPage
}

func newGatedSource(page domain.FeedPage) *gatedSource {
	return &gatedSource{started: make(chan struct{}), release: make(chan struct{}), page: page}
}

func (g *gatedSource) FetchTopAlbums(ctx context.Context, limit int) (domain.FeedPage, error) {
	g.calls.Add(1)
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return g.page, nil
	case <-ctx.Done():
		return domain.FeedPage{}, ctx.Err()
	}
}

// failingStore wraps a store and fails selected operations
type failingStore struct {
	domain.AlbumStore
	replaceErr error
	watchErr   error
}

func (f *failingStore) ReplaceAll(ctx context.Context, albums []domain.Album) (domain.SyncInfo, error) {
	if f.replaceErr != nil {
		return domain.SyncInfo{}, f.replaceErr
	}
	return f.AlbumStore.ReplaceAll(ctx, albums)
}

func (f *failingStore) WatchAlbums(ctx context.Context) <-chan domain.Snapshot[[]domain.Album] {
	if f.watchErr == nil {
		return f.AlbumStore.WatchAlbums(ctx)
	}
	out := make(chan domain.Snapshot[[]domain.Album], 1)
	out <- domain.Snapshot[[]domain.Album]{Err: f.watchErr}
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}

func newMemoryStore(t *testing.T) domain.AlbumStore {
	t.Helper()
	s, err := store.NewBoltStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func album(t *testing.T, id, name, artist string) domain.Album {
	t.Helper()
	a, err := domain.NewAlbum(id, name, artist, "https://example.com/"+id+".png",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Pop", "")
	require.NoError(t, err)
	return a
}

func next[T any](t *testing.T, ch <-chan domain.Result[T]) domain.Result[T] {
	t.Helper()
	select {
	case res, ok := <-ch:
		require.True(t, ok, "channel closed")
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return domain.Result[T]{}
	}
}

func drain[T any](t *testing.T, ch <-chan domain.Result[T]) []domain.Result[T] {
	t.Helper()
	var out []domain.Result[T]
	timeout := time.After(2 * time.Second)
	for {
		select {
		case res, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, res)
		case <-timeout:
			t.Fatal("timed out waiting for channel to close")
			return out
		}
	}
}

func TestTopAlbums_FirstEmission(t *testing.T) {
	t.Run("empty store is loading", func(t *testing.T) {
		repo := NewRepository(new(MockAlbumSource), newMemoryStore(t), 0, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		res := next(t, repo.TopAlbums(ctx))
		assert.True(t, res.IsLoading())
	})

	t.Run("cached albums are success", func(t *testing.T) {
		s := newMemoryStore(t)
		cached := []domain.Album{album(t, "1", "One", "A"), album(t, "2", "Two", "B"), album(t, "3", "Three", "C")}
		_, err := s.ReplaceAll(context.Background(), cached)
		require.NoError(t, err)

		repo := NewRepository(new(MockAlbumSource), s, 0, nil)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		res := next(t, repo.TopAlbums(ctx))
		albums, ok := res.Value()
		require.True(t, ok)
		assert.Len(t, albums, 3)
	})
}

func TestTopAlbums_StoreFailureKeepsStreaming(t *testing.T) {
	s := &failingStore{AlbumStore: newMemoryStore(t), watchErr: errors.New("disk on fire")}
	repo := NewRepository(new(MockAlbumSource), s, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ch := repo.TopAlbums(ctx)

	res := next(t, ch)
	require.Equal(t, domain.ResultFailure, res.Kind())
	assert.Equal(t, domain.KindCache, res.Err().Kind)

	// Still open until the subscriber leaves
	select {
	case _, ok := <-ch:
		t.Fatalf("unexpected emission, open=%v", ok)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	assert.Empty(t, drain(t, ch))
}

func TestTopAlbums_CapsAtLimit(t *testing.T) {
	s := newMemoryStore(t)
	_, err := s.ReplaceAll(context.Background(), []domain.Album{album(t, "1", "One", "A"), album(t, "2", "Two", "B")})
	require.NoError(t, err)

	repo := NewRepository(new(MockAlbumSource), s, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	albums, ok := next(t, repo.TopAlbums(ctx)).Value()
	require.True(t, ok)
	assert.Len(t, albums, 1)
}

func TestRefresh_RoundTrip(t *testing.T) {
	s := newMemoryStore(t)
	fetched := []domain.Album{album(t, "1", "Love Story", "Artist A"), album(t, "2", "Nothing", "Lover Boy")}

	source := new(MockAlbumSource)
	source.On("FetchTopAlbums", mock.Anything, 100).Return(domain.FeedPage{Albums: fetched, Skipped: 1}, nil).Once()

	repo := NewRepository(source, s, 100, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := repo.TopAlbums(ctx)
	assert.True(t, next(t, stream).IsLoading())

	res, err := repo.Refresh(ctx)
	require.NoError(t, err)
	albums, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, fetched, albums)

	// The live read re-emits after the write commits
	albums, ok = next(t, stream).Value()
	require.True(t, ok)
	assert.Equal(t, fetched, albums)

	stored, err := s.GetAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, fetched, stored)

	info, err := NewGetSyncInfo(repo).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Count)

	source.AssertExpectations(t)
}

func TestRefresh_LogsFeedUpdated(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	source := new(MockAlbumSource)
	page := domain.FeedPage{Albums: []domain.Album{album(t, "1", "One", "A")}, Updated: "2024-05-01T10:00:00-07:00"}
	source.On("FetchTopAlbums", mock.Anything, 100).Return(page, nil).Once()

	repo := NewRepository(source, newMemoryStore(t), 100, logger)
	res, err := repo.Refresh(context.Background())
	require.NoError(t, err)
	_, ok := res.Value()
	assert.True(t, ok)
	assert.Contains(t, buf.String(), `"feedUpdated":"2024-05-01T10:00:00-07:00"`)
}

func TestRefresh_EmptyKeepsCache(t *testing.T) {
	s := newMemoryStore(t)
	cached := []domain.Album{album(t, "1", "One", "A")}
	before, err := s.ReplaceAll(context.Background(), cached)
	require.NoError(t, err)

	source := new(MockAlbumSource)
	source.On("FetchTopAlbums", mock.Anything, mock.Anything).Return(domain.FeedPage{Skipped: 3}, nil)

	repo := NewRepository(source, s, 0, nil)
	res, err := repo.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ResultFailure, res.Kind())
	assert.Equal(t, domain.KindEmptyResponse, res.Err().Kind)

	stored, err := s.GetAlbums(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cached, stored)

	after, err := s.LastSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
}

func TestRefresh_RemoteFailurePassesThrough(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
		code int
	}{
		{"timeout", domain.TimeoutError(), domain.KindTimeout, 0},
		{"api", domain.APIError(503, "Server error: 503"), domain.KindAPI, 503},
		{"parse", domain.ParseError("bad json"), domain.KindParse, 0},
		{"untyped", errors.New("boom"), domain.KindNetwork, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(MockAlbumSource)
			source.On("FetchTopAlbums", mock.Anything, mock.Anything).Return(domain.FeedPage{}, tt.err)

			repo := NewRepository(source, newMemoryStore(t), 0, nil)
			res, err := repo.Refresh(context.Background())
			require.NoError(t, err)
			require.Equal(t, domain.ResultFailure, res.Kind())
			assert.Equal(t, tt.want, res.Err().Kind)
			assert.Equal(t, tt.code, res.Err().Code)
		})
	}
}

func TestRefresh_StoreFailureIsCacheError(t *testing.T) {
	s := &failingStore{AlbumStore: newMemoryStore(t), replaceErr: errors.New("read-only filesystem")}

	source := new(MockAlbumSource)
	source.On("FetchTopAlbums", mock.Anything, mock.Anything).
		Return(domain.FeedPage{Albums: []domain.Album{album(t, "1", "One", "A")}}, nil)

	repo := NewRepository(source, s, 0, nil)
	res, err := repo.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.ResultFailure, res.Kind())
	assert.Equal(t, domain.KindCache, res.Err().Kind)
	assert.Equal(t, "Please try again", res.Err().UserMessage())
}

func TestRefresh_Cancelled(t *testing.T) {
	source := newGatedSource(domain.FeedPage{Albums: []domain.Album{album(t, "1", "One", "A")}})
	repo := NewRepository(source, newMemoryStore(t), 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-source.started
		cancel()
	}()

	_, err := repo.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefresh_ConcurrentCallersShareOneFetch(t *testing.T) {
	fetched := []domain.Album{album(t, "1", "One", "A")}
	source := newGatedSource(domain.FeedPage{Albums: fetched})
	repo := NewRepository(source, newMemoryStore(t), 0, nil)

	const callers = 5
	results := make(chan domain.Result[[]domain.Album], callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.Refresh(context.Background())
			assert.NoError(t, err)
			results <- res
		}()
	}

	<-source.started
	time.Sleep(50 * time.Millisecond)
	close(source.release)
	wg.Wait()
	close(results)

	assert.Equal(t, int32(1), source.calls.Load())
	for res := range results {
		albums, ok := res.Value()
		require.True(t, ok)
		assert.Equal(t, fetched, albums)
	}
}

func TestRefresh_FollowerTakesOverWhenLeaderCancelled(t *testing.T) {
	fetched := []domain.Album{album(t, "1", "One", "A")}
	source := newGatedSource(domain.FeedPage{Albums: fetched})
	repo := NewRepository(source, newMemoryStore(t), 0, nil)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := repo.Refresh(leaderCtx)
		leaderDone <- err
	}()
	<-source.started

	followerDone := make(chan domain.Result[[]domain.Album], 1)
	go func() {
		res, err := repo.Refresh(context.Background())
		assert.NoError(t, err)
		followerDone <- res
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	// Let the follower's own fetch complete
	assert.Eventually(t, func() bool { return source.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(source.release)

	select {
	case res := <-followerDone:
		albums, ok := res.Value()
		require.True(t, ok)
		assert.Equal(t, fetched, albums)
	case <-time.After(2 * time.Second):
		t.Fatal("follower never finished")
	}
}
