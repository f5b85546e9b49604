package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/mmcdole/tunes/internal/domain"
)

// Bucket names
var (
	bucketAlbums = []byte("albums")    // rank (uint64, big endian) -> albumRecord
	bucketIndex  = []byte("album_ids") // album id -> rank key
	bucketMeta   = []byte("meta")

	keySync = []byte("sync")
)

// albumRecord is the persisted form of domain.Album
type albumRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Artist      string    `json:"artist"`
	ArtworkURL  string    `json:"artwork_url"`
	ReleaseDate time.Time `json:"release_date"`
	Category    string    `json:"category"`
	URL         string    `json:"url"`
}

func toRecord(a domain.Album) albumRecord {
	return albumRecord{
		ID:          a.ID,
		Name:        a.Name,
		Artist:      a.Artist,
		ArtworkURL:  a.ArtworkURL,
		ReleaseDate: a.ReleaseDate.UTC(),
		Category:    a.Category,
		URL:         a.URL,
	}
}

// toAlbum revalidates a stored row
func (r albumRecord) toAlbum() (domain.Album, error) {
	return domain.NewAlbum(r.ID, r.Name, r.Artist, r.ArtworkURL, r.ReleaseDate.UTC(), r.Category, r.URL)
}

type syncRecord struct {
	ID        string    `json:"id"`
	FetchedAt time.Time `json:"fetched_at"`
	Count     int       `json:"count"`
}

// BoltStore implements domain.AlbumStore using BoltDB.
// With an empty directory it runs memory-only.
type BoltStore struct {
	db       *bolt.DB
	logger   *slog.Logger
	notifier *notifier

	mu     sync.RWMutex // Protects everything below
	closed bool
	gen    uint64 // Bumped on every write, guards cache promotion

	// In-memory copy of the chart (promoted on first read)
	albums    []domain.Album
	hasAlbums bool
	lastSync  domain.SyncInfo
	hasSync   bool
}

// NewBoltStore opens (or creates) dir/tunes.db
func NewBoltStore(dir string, logger *slog.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &BoltStore{logger: logger, notifier: newNotifier()}

	if dir == "" {
		// Memory-only mode (no persistence)
		s.hasAlbums = true
		s.hasSync = true
		return s, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "tunes.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAlbums, bucketIndex, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.notifier.close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func rankKey(rank int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(rank))
	return key
}

// === Reads ===

func (s *BoltStore) GetAlbums(ctx context.Context) ([]domain.Album, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Check memory cache first
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, domain.ErrStoreClosed
	}
	if s.hasAlbums {
		albums := slices.Clone(s.albums)
		s.mu.RUnlock()
		return albums, nil
	}
	gen := s.gen
	s.mu.RUnlock()

	// Read from BoltDB
	var albums []domain.Album
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAlbums).ForEach(func(_, v []byte) error {
			album, err := decodeAlbum(v)
			if err != nil {
				return err
			}
			albums = append(albums, album)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read albums: %w", err)
	}

	// Promote to memory cache unless a write landed in between
	s.mu.Lock()
	if s.gen == gen && !s.closed {
		s.albums = slices.Clone(albums)
		s.hasAlbums = true
	}
	s.mu.Unlock()

	return albums, nil
}

func (s *BoltStore) GetAlbum(ctx context.Context, id string) (domain.Album, error) {
	if err := ctx.Err(); err != nil {
		return domain.Album{}, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.Album{}, domain.ErrStoreClosed
	}
	if s.hasAlbums {
		defer s.mu.RUnlock()
		for _, a := range s.albums {
			if a.ID == id {
				return a, nil
			}
		}
		return domain.Album{}, domain.ErrAlbumNotFound
	}
	s.mu.RUnlock()

	var album domain.Album
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIndex).Get([]byte(id))
		if key == nil {
			return domain.ErrAlbumNotFound
		}
		data := tx.Bucket(bucketAlbums).Get(key)
		if data == nil {
			return domain.ErrAlbumNotFound
		}
		var err error
		album, err = decodeAlbum(data)
		return err
	})
	if err != nil {
		return domain.Album{}, err
	}
	return album, nil
}

func (s *BoltStore) LastSync(ctx context.Context) (domain.SyncInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.SyncInfo{}, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.SyncInfo{}, domain.ErrStoreClosed
	}
	if s.hasSync {
		info := s.lastSync
		s.mu.RUnlock()
		return info, nil
	}
	s.mu.RUnlock()

	var info domain.SyncInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySync)
		if data == nil {
			return nil
		}
		var rec syncRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		info = domain.SyncInfo{ID: rec.ID, FetchedAt: rec.FetchedAt, Count: rec.Count}
		return nil
	})
	if err != nil {
		return domain.SyncInfo{}, fmt.Errorf("failed to read sync info: %w", err)
	}
	return info, nil
}

func decodeAlbum(data []byte) (domain.Album, error) {
	var rec albumRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Album{}, err
	}
	return rec.toAlbum()
}

// === Writes ===

// ReplaceAll swaps the chart and the sync metadata in one transaction
func (s *BoltStore) ReplaceAll(ctx context.Context, albums []domain.Album) (domain.SyncInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.SyncInfo{}, err
	}

	info := domain.SyncInfo{
		ID:        uuid.NewString(),
		FetchedAt: time.Now().UTC().Truncate(time.Millisecond),
		Count:     len(albums),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.SyncInfo{}, domain.ErrStoreClosed
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			if err := resetBuckets(tx, bucketAlbums, bucketIndex); err != nil {
				return err
			}
			chart := tx.Bucket(bucketAlbums)
			index := tx.Bucket(bucketIndex)
			for i, a := range albums {
				data, err := json.Marshal(toRecord(a))
				if err != nil {
					return err
				}
				key := rankKey(i)
				if err := chart.Put(key, data); err != nil {
					return err
				}
				if err := index.Put([]byte(a.ID), key); err != nil {
					return err
				}
			}
			data, err := json.Marshal(syncRecord{ID: info.ID, FetchedAt: info.FetchedAt, Count: info.Count})
			if err != nil {
				return err
			}
			return tx.Bucket(bucketMeta).Put(keySync, data)
		})
		if err != nil {
			s.mu.Unlock()
			return domain.SyncInfo{}, fmt.Errorf("failed to replace albums: %w", err)
		}
	}

	s.albums = slices.Clone(albums)
	s.hasAlbums = true
	s.lastSync = info
	s.hasSync = true
	s.gen++
	s.mu.Unlock()

	s.logger.Debug("album cache replaced", "count", info.Count, "snapshot", info.ID)
	s.notifier.broadcast()
	return info, nil
}

// Clear removes every cached album and the sync metadata
func (s *BoltStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}

	if s.db != nil {
		err := s.db.Update(func(tx *bolt.Tx) error {
			return resetBuckets(tx, bucketAlbums, bucketIndex, bucketMeta)
		})
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to clear albums: %w", err)
		}
	}

	s.albums = nil
	s.hasAlbums = true
	s.lastSync = domain.SyncInfo{}
	s.hasSync = true
	s.gen++
	s.mu.Unlock()

	s.notifier.broadcast()
	return nil
}

// resetBuckets drops and recreates the named buckets
func resetBuckets(tx *bolt.Tx, names ...[]byte) error {
	for _, name := range names {
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// === Live queries ===

func (s *BoltStore) WatchAlbums(ctx context.Context) <-chan domain.Snapshot[[]domain.Album] {
	return watch(ctx, s.notifier, s.GetAlbums)
}

func (s *BoltStore) WatchAlbum(ctx context.Context, id string) <-chan domain.Snapshot[domain.Album] {
	return watch(ctx, s.notifier, func(ctx context.Context) (domain.Album, error) {
		return s.GetAlbum(ctx, id)
	})
}

var _ domain.AlbumStore = (*BoltStore)(nil)
