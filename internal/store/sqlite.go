package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mmcdole/tunes/internal/domain"
)

// AlbumModel is one chart row
type AlbumModel struct {
	Position    int    `gorm:"primaryKey;autoIncrement:false"`
	AlbumID     string `gorm:"index;not null"`
	Name        string
	Artist      string `gorm:"not null"`
	ArtworkURL  string
	ReleaseDate time.Time
	Category    string
	URL         string
}

func (AlbumModel) TableName() string { return "albums" }

// SyncModel holds the single sync metadata row
type SyncModel struct {
	ID         uint `gorm:"primaryKey;autoIncrement:false"`
	SnapshotID string
	FetchedAt  time.Time
	Count      int
}

func (SyncModel) TableName() string { return "sync_info" }

const syncRowID = 1

func fromAlbum(position int, a domain.Album) AlbumModel {
	return AlbumModel{
		Position:    position,
		AlbumID:     a.ID,
		Name:        a.Name,
		Artist:      a.Artist,
		ArtworkURL:  a.ArtworkURL,
		ReleaseDate: a.ReleaseDate.UTC(),
		Category:    a.Category,
		URL:         a.URL,
	}
}

func (m AlbumModel) toAlbum() (domain.Album, error) {
	return domain.NewAlbum(m.AlbumID, m.Name, m.Artist, m.ArtworkURL, m.ReleaseDate.UTC(), m.Category, m.URL)
}

// SQLStore implements domain.AlbumStore on SQLite through GORM
type SQLStore struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier *notifier

	mu     sync.RWMutex // Serializes writes against Close
	closed bool
}

// NewSQLStore opens (or creates) dir/tunes.sqlite.
// An empty dir gives a private in-memory database.
func NewSQLStore(dir string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		dsn = filepath.Join(dir, "tunes.sqlite")
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(logger),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite has a single writer, and ":memory:" is per connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&AlbumModel{}, &SyncModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate sqlite db: %w", err)
	}

	return &SQLStore{db: db, logger: logger, notifier: newNotifier()}, nil
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.notifier.close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *SQLStore) GetAlbums(ctx context.Context) ([]domain.Album, error) {
	if s.isClosed() {
		return nil, domain.ErrStoreClosed
	}

	var models []AlbumModel
	if err := s.db.WithContext(ctx).Order("position").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to read albums: %w", err)
	}

	albums := make([]domain.Album, 0, len(models))
	for _, m := range models {
		album, err := m.toAlbum()
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}
	return albums, nil
}

func (s *SQLStore) GetAlbum(ctx context.Context, id string) (domain.Album, error) {
	if s.isClosed() {
		return domain.Album{}, domain.ErrStoreClosed
	}

	var m AlbumModel
	err := s.db.WithContext(ctx).Where("album_id = ?", id).Order("position").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Album{}, domain.ErrAlbumNotFound
	}
	if err != nil {
		return domain.Album{}, fmt.Errorf("failed to read album: %w", err)
	}
	return m.toAlbum()
}

func (s *SQLStore) LastSync(ctx context.Context) (domain.SyncInfo, error) {
	if s.isClosed() {
		return domain.SyncInfo{}, domain.ErrStoreClosed
	}

	var m SyncModel
	err := s.db.WithContext(ctx).First(&m, syncRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SyncInfo{}, nil
	}
	if err != nil {
		return domain.SyncInfo{}, fmt.Errorf("failed to read sync info: %w", err)
	}
	return domain.SyncInfo{ID: m.SnapshotID, FetchedAt: m.FetchedAt.UTC(), Count: m.Count}, nil
}

// ReplaceAll deletes every row and bulk-inserts albums in one transaction
func (s *SQLStore) ReplaceAll(ctx context.Context, albums []domain.Album) (domain.SyncInfo, error) {
	info := domain.SyncInfo{
		ID:        uuid.NewString(),
		FetchedAt: time.Now().UTC().Truncate(time.Millisecond),
		Count:     len(albums),
	}

	models := make([]AlbumModel, len(albums))
	for i, a := range albums {
		models[i] = fromAlbum(i, a)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.SyncInfo{}, domain.ErrStoreClosed
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&AlbumModel{}).Error; err != nil {
			return err
		}
		if len(models) > 0 {
			if err := tx.CreateInBatches(models, 100).Error; err != nil {
				return err
			}
		}
		return tx.Save(&SyncModel{
			ID:         syncRowID,
			SnapshotID: info.ID,
			FetchedAt:  info.FetchedAt,
			Count:      info.Count,
		}).Error
	})
	s.mu.Unlock()
	if err != nil {
		return domain.SyncInfo{}, fmt.Errorf("failed to replace albums: %w", err)
	}

	s.logger.Debug("album cache replaced", "count", info.Count, "snapshot", info.ID)
	s.notifier.broadcast()
	return info, nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrStoreClosed
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := global.Delete(&AlbumModel{}).Error; err != nil {
			return err
		}
		return global.Delete(&SyncModel{}).Error
	})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to clear albums: %w", err)
	}

	s.notifier.broadcast()
	return nil
}

func (s *SQLStore) WatchAlbums(ctx context.Context) <-chan domain.Snapshot[[]domain.Album] {
	return watch(ctx, s.notifier, s.GetAlbums)
}

func (s *SQLStore) WatchAlbum(ctx context.Context, id string) <-chan domain.Snapshot[domain.Album] {
	return watch(ctx, s.notifier, func(ctx context.Context) (domain.Album, error) {
		return s.GetAlbum(ctx, id)
	})
}

var _ domain.AlbumStore = (*SQLStore)(nil)

// gormLogger routes GORM logs to slog
type gormLogger struct {
	logger *slog.Logger
	level  gormlogger.LogLevel
}

func newGormLogger(logger *slog.Logger) gormlogger.Interface {
	return &gormLogger{logger: logger.With("component", "gorm"), level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, context.Canceled):
		sql, rows := fc()
		l.logger.ErrorContext(ctx, "sql error", "error", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.DebugContext(ctx, "sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
