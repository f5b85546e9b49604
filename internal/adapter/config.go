package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreDriver selects the album cache backend
type StoreDriver string

const (
	StoreDriverBolt   StoreDriver = "bolt"
	StoreDriverSQLite StoreDriver = "sqlite"
	StoreDriverMemory StoreDriver = "memory"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds all application configuration
type Config struct {
	Feed    FeedConfig    `mapstructure:"feed"`
	Store   StoreConfig   `mapstructure:"store"`
	UI      UIConfig      `mapstructure:"ui"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FeedConfig holds the top albums feed endpoint settings
type FeedConfig struct {
	BaseURL      string        `mapstructure:"base_url"`      // e.g. https://itunes.apple.com
	Country      string        `mapstructure:"country"`       // Storefront code, e.g. "us"
	Limit        int           `mapstructure:"limit"`         // Chart size requested
	Timeout      time.Duration `mapstructure:"timeout"`       // Per-request timeout
	MaxRetries   int           `mapstructure:"max_retries"`   // Retries on 5xx
	RetryBackoff time.Duration `mapstructure:"retry_backoff"` // First backoff, doubled per retry
}

// StoreConfig holds album cache settings
type StoreConfig struct {
	Driver StoreDriver `mapstructure:"driver"` // "bolt", "sqlite" or "memory"
	Path   string      `mapstructure:"path"`   // Cache directory
}

// UIConfig holds UI configuration
type UIConfig struct {
	MaxSearchLength int      `mapstructure:"max_search_length"`
	OpenCommand     string   `mapstructure:"open_command"` // Empty for the platform default
	OpenArgs        []string `mapstructure:"open_args"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			BaseURL:      "https://itunes.apple.com",
			Country:      "us",
			Limit:        100,
			Timeout:      30 * time.Second,
			MaxRetries:   3,
			RetryBackoff: 500 * time.Millisecond,
		},
		Store: StoreConfig{
			Driver: StoreDriverBolt,
			Path:   defaultCachePath(),
		},
		UI: UIConfig{
			MaxSearchLength: 100,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "tunes", "tunes.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "tunes", "tunes.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "tunes")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "tunes")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "tunes", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "tunes", "cache")
	}
}

// LoadConfig loads configuration from the default locations and environment.
// Extra search directories are tried before the defaults.
func LoadConfig(searchPaths ...string) (*Config, error) {
	v := newViper(searchPaths...)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper(searchPaths ...string) *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(defaultConfigPath())
	v.AddConfigPath(".")

	// Environment variable overrides (TUNES_FEED_COUNTRY, ...).
	// Defaults are registered so AutomaticEnv can see every key.
	v.SetEnvPrefix("TUNES")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("feed.base_url", cfg.Feed.BaseURL)
	v.SetDefault("feed.country", cfg.Feed.Country)
	v.SetDefault("feed.limit", cfg.Feed.Limit)
	v.SetDefault("feed.timeout", cfg.Feed.Timeout)
	v.SetDefault("feed.max_retries", cfg.Feed.MaxRetries)
	v.SetDefault("feed.retry_backoff", cfg.Feed.RetryBackoff)
	v.SetDefault("store.driver", string(cfg.Store.Driver))
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("ui.max_search_length", cfg.UI.MaxSearchLength)
	v.SetDefault("ui.open_command", cfg.UI.OpenCommand)
	v.SetDefault("ui.open_args", cfg.UI.OpenArgs)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// Validate checks values that would otherwise fail much later
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.Limit <= 0 {
		return fmt.Errorf("feed.limit must be positive, got %d", c.Feed.Limit)
	}
	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("feed.max_retries cannot be negative")
	}
	switch c.Store.Driver {
	case StoreDriverBolt, StoreDriverSQLite, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.UI.MaxSearchLength <= 0 {
		c.UI.MaxSearchLength = DefaultConfig().UI.MaxSearchLength
	}
	return nil
}

// SaveConfig writes the configuration to dir/config.yaml.
// An empty dir means the default config directory.
func SaveConfig(cfg *Config, dir string) (string, error) {
	if dir == "" {
		dir = defaultConfigPath()
	}

	// Ensure config directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	v := viper.New()
	v.Set("feed.base_url", cfg.Feed.BaseURL)
	v.Set("feed.country", cfg.Feed.Country)
	v.Set("feed.limit", cfg.Feed.Limit)
	v.Set("feed.timeout", cfg.Feed.Timeout.String())
	v.Set("feed.max_retries", cfg.Feed.MaxRetries)
	v.Set("feed.retry_backoff", cfg.Feed.RetryBackoff.String())

	v.Set("store.driver", string(cfg.Store.Driver))
	v.Set("store.path", cfg.Store.Path)

	v.Set("ui.max_search_length", cfg.UI.MaxSearchLength)
	v.Set("ui.open_command", cfg.UI.OpenCommand)
	v.Set("ui.open_args", cfg.UI.OpenArgs)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configFile, nil
}

// ClearCache removes all cached data under path, or under the default
// cache directory when path is empty. It returns the path it removed.
func ClearCache(path string) (string, error) {
	if path == "" {
		path = defaultCachePath()
	}
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return path, fmt.Errorf("failed to clear cache: %w", err)
	}
	return path, nil
}
