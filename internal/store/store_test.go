package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/tunes/internal/adapter"
	"github.com/mmcdole/tunes/internal/domain"
)

type storeFactory func(t *testing.T, dir string) domain.AlbumStore

var factories = map[string]storeFactory{
	"bolt": func(t *testing.T, dir string) domain.AlbumStore {
		s, err := NewBoltStore(dir, nil)
		require.NoError(t, err)
		return s
	},
	"memory": func(t *testing.T, _ string) domain.AlbumStore {
		s, err := NewBoltStore("", nil)
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T, dir string) domain.AlbumStore {
		s, err := NewSQLStore(dir, nil)
		require.NoError(t, err)
		return s
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, s domain.AlbumStore)) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s := factory(t, t.TempDir())
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func testAlbum(t *testing.T, id, name, artist string) domain.Album {
	t.Helper()
	album, err := domain.NewAlbum(id, name, artist, "https://example.com/"+id+".png",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "Pop", "https://music.example.com/"+id)
	require.NoError(t, err)
	return album
}

func recv[T any](t *testing.T, ch <-chan domain.Snapshot[T]) domain.Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return domain.Snapshot[T]{}
	}
}

func TestStore_EmptyByDefault(t *testing.T) {
	forEachStore(t, func(t *testing.T, s domain.AlbumStore) {
		ctx := context.Background()

		albums, err := s.GetAlbums(ctx)
		require.NoError(t, err)
		assert.Empty(t, albums)

		_, err = s.GetAlbum(ctx, "1")
		assert.ErrorIs(t, err, domain.ErrAlbumNotFound)

		info, err := s.LastSync(ctx)
		require.NoError(t, err)
		assert.True(t, info.IsZero())
	})
}

func TestStore_ReplaceAllKeepsOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s domain.AlbumStore) {
		ctx := context.Background()
		first := []domain.Album{
			testAlbum(t, "3", "Three", "C"),
			testAlbum(t, "1", "One", "A"),
			testAlbum(t, "2", "Two", "B"),
		}

		info, err := s.ReplaceAll(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, 3, info.Count)
		assert.NotEmpty(t, info.ID)

		albums, err := s.GetAlbums(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, albums)

		got, err := s.GetAlbum(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, first[1], got)

		last, err := s.LastSync(ctx)
		require.NoError(t, err)
		assert.Equal(t, info.ID, last.ID)
		assert.True(t, info.FetchedAt.Equal(last.FetchedAt))

		// A second replace drops albums no longer present
		second := []domain.Album{testAlbum(t, "4", "Four", "D")}
		info2, err := s.ReplaceAll(ctx, second)
		require.NoError(t, err)
		assert.NotEqual(t, info.ID, info2.ID)

		albums, err = s.GetAlbums(ctx)
		require.NoError(t, err)
		assert.Equal(t, second, albums)

		_, err = s.GetAlbum(ctx, "1")
		assert.ErrorIs(t, err, domain.ErrAlbumNotFound)
	})
}

func TestStore_Clear(t *testing.T) {
	forEachStore(t, func(t *testing.T, s domain.AlbumStore) {
		ctx := context.Background()
		_, err := s.ReplaceAll(ctx, []domain.Album{testAlbum(t, "1", "One", "A")})
		require.NoError(t, err)

		require.NoError(t, s.Clear(ctx))

		albums, err := s.GetAlbums(ctx)
		require.NoError(t, err)
		assert.Empty(t, albums)

		info, err := s.LastSync(ctx)
		require.NoError(t, err)
		assert.True(t, info.IsZero())
	})
}

func TestStore_WatchAlbumsReemitsAfterCommit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s domain.AlbumStore) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch := s.WatchAlbums(ctx)

		snap := recv(t, ch)
		require.NoError(t, snap.Err)
		assert.Empty(t, snap.Value)

		albums := []domain.Album{testAlbum(t, "1", "One", "A"), testAlbum(t, "2", "Two", "B")}
		_, err := s.ReplaceAll(context.Background(), albums)
		require.NoError(t, err)

		snap = recv(t, ch)
		require.NoError(t, snap.Err)
		assert.Equal(t, albums, snap.Value)

		cancel()
		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 5*time.Millisecond)
	})
}

func TestStore_WatchAlbum(t *testing.T) {
	forEachStore(t, func(t *testing.T, s domain.AlbumStore) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch := s.WatchAlbum(ctx, "2")

		snap := recv(t, ch)
		assert.ErrorIs(t, snap.Err, domain.ErrAlbumNotFound)

		want := testAlbum(t, "2", "Two", "B")
		_, err := s.ReplaceAll(context.Background(), []domain.Album{testAlbum(t, "1", "One", "A"), want})
		require.NoError(t, err)

		snap = recv(t, ch)
		require.NoError(t, snap.Err)
		assert.Equal(t, want, snap.Value)
	})
}

func TestStore_Closed(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s := factory(t, t.TempDir())
			ctx := context.Background()
			ch := s.WatchAlbums(ctx)
			recv(t, ch)

			require.NoError(t, s.Close())
			require.NoError(t, s.Close())

			_, err := s.GetAlbums(ctx)
			assert.ErrorIs(t, err, domain.ErrStoreClosed)
			_, err = s.ReplaceAll(ctx, nil)
			assert.ErrorIs(t, err, domain.ErrStoreClosed)

			// Watchers stop when the store closes
			assert.Eventually(t, func() bool {
				select {
				case _, ok := <-ch:
					return !ok
				default:
					return false
				}
			}, 2*time.Second, 5*time.Millisecond)
		})
	}
}

func TestBoltStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	albums := []domain.Album{testAlbum(t, "1", "One", "A"), testAlbum(t, "2", "Two", "B")}

	s, err := NewBoltStore(dir, nil)
	require.NoError(t, err)
	info, err := s.ReplaceAll(ctx, albums)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetAlbum(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, albums[1], got)

	all, err := reopened.GetAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, albums, all)

	last, err := reopened.LastSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, info.ID, last.ID)
	assert.Equal(t, 2, last.Count)
}

func TestSQLStore_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	albums := []domain.Album{testAlbum(t, "1", "One", "A")}

	s, err := NewSQLStore(dir, nil)
	require.NoError(t, err)
	_, err = s.ReplaceAll(ctx, albums)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewSQLStore(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.GetAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, albums, all)
}

func TestOpen(t *testing.T) {
	cfg := adapter.DefaultConfig()
	cfg.Store.Path = t.TempDir()

	for _, driver := range []adapter.StoreDriver{adapter.StoreDriverBolt, adapter.StoreDriverSQLite, adapter.StoreDriverMemory} {
		t.Run(string(driver), func(t *testing.T) {
			c := *cfg
			c.Store.Driver = driver
			s, err := Open(&c, nil)
			require.NoError(t, err)
			require.NoError(t, s.Close())
		})
	}

	cfg.Store.Driver = "redis"
	_, err := Open(cfg, nil)
	assert.Error(t, err)
}

func TestCacheDir(t *testing.T) {
	assert.Equal(t, "", CacheDir("", "https://itunes.apple.com", "us"))

	us := CacheDir("/tmp/cache", "https://itunes.apple.com", "us")
	gb := CacheDir("/tmp/cache", "https://itunes.apple.com/", "GB")
	assert.NotEqual(t, us, gb)
	assert.Equal(t, us, CacheDir("/tmp/cache", "HTTPS://itunes.apple.com/", "US"))
}
