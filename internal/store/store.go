package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mmcdole/tunes/internal/adapter"
	"github.com/mmcdole/tunes/internal/domain"
)

// Open creates the album store selected by cfg.Store.Driver.
// Each feed (base URL + country) gets its own cache directory.
func Open(cfg *adapter.Config, logger *slog.Logger) (domain.AlbumStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	dir := CacheDir(cfg.Store.Path, cfg.Feed.BaseURL, cfg.Feed.Country)

	switch cfg.Store.Driver {
	case adapter.StoreDriverBolt, "":
		return NewBoltStore(dir, logger)
	case adapter.StoreDriverSQLite:
		return NewSQLStore(dir, logger)
	case adapter.StoreDriverMemory:
		return NewBoltStore("", logger)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// CacheDir returns the per-feed directory under baseCacheDir, or "" when
// baseCacheDir is empty.
func CacheDir(baseCacheDir, baseURL, country string) string {
	if baseCacheDir == "" {
		return ""
	}
	if baseURL == "" {
		return baseCacheDir
	}
	return filepath.Join(baseCacheDir, hashFeed(baseURL, country))
}

func hashFeed(baseURL, country string) string {
	normalized := strings.TrimRight(strings.ToLower(baseURL), "/") + "|" + strings.ToLower(country)
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}
