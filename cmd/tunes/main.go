package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/tunes/internal/adapter"
	"github.com/mmcdole/tunes/internal/adapter/source"
	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/library"
	"github.com/mmcdole/tunes/internal/search"
	"github.com/mmcdole/tunes/internal/store"
	"github.com/mmcdole/tunes/internal/tui"
	"github.com/mmcdole/tunes/internal/viewmodel"
)

// Version is set at build time via -ldflags
var Version = "dev"

// How long plain mode waits for a cached chart after a failed refresh
const cacheReadTimeout = 2 * time.Second

type options struct {
	plain       bool
	query       string
	clearCache  bool
	writeConfig bool
}

func main() {
	var showVersion bool
	var opts options
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&opts.plain, "plain", false, "refresh once and print the chart instead of starting the UI")
	flag.StringVar(&opts.query, "search", "", "filter the printed chart (plain mode)")
	flag.BoolVar(&opts.clearCache, "clear-cache", false, "delete the album cache and exit")
	flag.BoolVar(&opts.writeConfig, "write-config", false, "write the effective config file and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("tunes %s\n", Version)
		return
	}

	// Piped output gets the plain chart
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		opts.plain = true
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	} else {
		defer closer.Close()
	}
	slog.SetDefault(logger)

	logger.Info("starting tunes", "version", Version, "country", cfg.Feed.Country, "store", cfg.Store.Driver)

	if opts.writeConfig {
		path, err := adapter.SaveConfig(cfg, "")
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	}

	if opts.clearCache {
		path, err := adapter.ClearCache(cfg.Store.Path)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %s\n", path)
		return nil
	}

	client, err := source.NewClientFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create feed client: %w", err)
	}

	albumStore, err := store.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open album cache: %w", err)
	}
	defer albumStore.Close()

	repo := library.NewRepository(client, albumStore, cfg.Feed.Limit, logger)

	if opts.plain {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runPlain(ctx, repo, opts.query, os.Stdout, logger)
	}

	vm := viewmodel.New(
		library.NewGetTopAlbums(repo),
		library.NewRefreshAlbums(repo),
		viewmodel.WithSyncInfo(library.NewGetSyncInfo(repo)),
		viewmodel.WithMaxSearchLength(cfg.UI.MaxSearchLength),
		viewmodel.WithLogger(logger),
	)
	defer vm.Close()

	opener := adapter.NewOpener(cfg.UI.OpenCommand, cfg.UI.OpenArgs, logger)
	model := tui.NewModel(vm, library.NewGetAlbumDetails(repo), opener, logger)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	logger.Info("starting TUI")

	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("shutting down")
	return nil
}

// runPlain refreshes once and prints the chart. A failed refresh still
// prints the cached chart, if any, after reporting the error.
func runPlain(ctx context.Context, repo *library.Repository, query string, w io.Writer, logger *slog.Logger) error {
	var final domain.Result[[]domain.Album]
	for res := range library.NewRefreshAlbums(repo).Execute(ctx) {
		final = res
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	albums, ok := final.Value()
	if !ok {
		albumErr := final.Err()
		logger.Warn("refresh failed", "error", albumErr)
		fmt.Fprintf(os.Stderr, "Refresh failed: %s\n", albumErr.UserMessage())

		albums = cachedAlbums(ctx, repo)
		if len(albums) == 0 {
			return errors.New(albumErr.UserMessage())
		}
	}

	printAlbums(w, search.Filter(albums, query))
	return nil
}

// cachedAlbums returns the first settled read of the cache
func cachedAlbums(ctx context.Context, repo *library.Repository) []domain.Album {
	ctx, cancel := context.WithTimeout(ctx, cacheReadTimeout)
	defer cancel()

	for res := range library.NewGetTopAlbums(repo).Execute(ctx) {
		if res.IsLoading() {
			continue
		}
		albums, _ := res.Value()
		return albums
	}
	return nil
}

func printAlbums(w io.Writer, albums []domain.Album) {
	for i, a := range albums {
		year := ""
		if y := a.ReleaseYear(); y > 0 {
			year = fmt.Sprintf(" (%d)", y)
		}
		fmt.Fprintf(w, "%3d. %s - %s%s\n", i+1, a.Name, a.Artist, year)
	}
}
