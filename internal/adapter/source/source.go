package source

import (
	"fmt"
	"log/slog"

	"github.com/mmcdole/tunes/internal/adapter"
	"github.com/mmcdole/tunes/internal/adapter/source/itunes"
	"github.com/mmcdole/tunes/internal/domain"
)

// NewClient creates the AlbumSource for the configured feed.
// Only the iTunes RSS feed is supported.
func NewClient(cfg *adapter.FeedConfig, logger *slog.Logger) (domain.AlbumSource, error) {
	if cfg == nil {
		return nil, fmt.Errorf("feed config is nil")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("feed base URL is required")
	}

	return itunes.NewClient(cfg.BaseURL, cfg.Country, logger,
		itunes.WithTimeout(cfg.Timeout),
		itunes.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
	), nil
}

// NewClientFromConfig creates an AlbumSource from the application config
func NewClientFromConfig(cfg *adapter.Config, logger *slog.Logger) (domain.AlbumSource, error) {
	return NewClient(&cfg.Feed, logger)
}
