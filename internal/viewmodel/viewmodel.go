package viewmodel

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/tunes/internal/domain"
)

const DefaultMaxSearchLength = 100

// TopAlbumsQuery streams the cached chart
type TopAlbumsQuery interface {
	Execute(ctx context.Context) <-chan domain.Result[[]domain.Album]
}

// RefreshCommand fetches the chart: Loading, then one terminal result
type RefreshCommand interface {
	Execute(ctx context.Context) <-chan domain.Result[[]domain.Album]
}

// SyncInfoQuery reads the last refresh metadata
type SyncInfoQuery interface {
	Execute(ctx context.Context) (domain.SyncInfo, error)
}

// Option configures a ViewModel
type Option func(*ViewModel)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(vm *ViewModel) {
		if logger != nil {
			vm.logger = logger
		}
	}
}

// WithMaxSearchLength bounds the search query, in runes
func WithMaxSearchLength(n int) Option {
	return func(vm *ViewModel) {
		if n > 0 {
			vm.maxSearchLength = n
		}
	}
}

// WithSyncInfo enables UIState.LastUpdated
func WithSyncInfo(q SyncInfoQuery) Option {
	return func(vm *ViewModel) { vm.syncInfo = q }
}

// errOrigin records which path set UIState.Error
type errOrigin int

const (
	originNone errOrigin = iota
	originRead
	originRefresh
)

// ViewModel owns the albums screen state.
//
// Every transition swaps the whole UIState under mu. Observers learn about
// changes through Changes, which coalesces bursts into one signal.
type ViewModel struct {
	topAlbums       TopAlbumsQuery
	refresh         RefreshCommand
	syncInfo        SyncInfoQuery
	logger          *slog.Logger
	maxSearchLength int

	ctx    context.Context // Parent of every subscription, cancelled by Close
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      UIState
	closed     bool
	readCancel context.CancelFunc
	refreshJob *Job
	changes    chan struct{}

	// Guarded by mu alongside state. The read stream only clears errors it
	// raised itself, so a late read emission cannot hide a refresh failure.
	errFrom errOrigin
}

// New creates the view-model and subscribes to the cached chart
func New(topAlbums TopAlbumsQuery, refresh RefreshCommand, opts ...Option) *ViewModel {
	ctx, cancel := context.WithCancel(context.Background())
	vm := &ViewModel{
		topAlbums:       topAlbums,
		refresh:         refresh,
		logger:          slog.Default(),
		maxSearchLength: DefaultMaxSearchLength,
		ctx:             ctx,
		cancel:          cancel,
		state:           UIState{IsLoading: true},
		changes:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(vm)
	}

	vm.mu.Lock()
	vm.subscribeLocked()
	vm.mu.Unlock()
	return vm
}

// State returns the current snapshot
func (vm *ViewModel) State() UIState {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// Changes signals after state transitions. It is closed by Close.
func (vm *ViewModel) Changes() <-chan struct{} {
	return vm.changes
}

// update applies fn to the state. fn reports whether anything changed.
func (vm *ViewModel) update(fn func(UIState) (UIState, bool)) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.applyLocked(fn)
}

// updateIf is update, skipped once ctx is done. Subscriptions use it so a
// cancelled stream cannot publish after its replacement has started.
// It reports whether fn was applied.
func (vm *ViewModel) updateIf(ctx context.Context, fn func(UIState) (UIState, bool)) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	vm.applyLocked(fn)
	return true
}

// setError and clearError are called from update functions, with mu held
func (vm *ViewModel) setError(s *UIState, err *domain.AlbumError, from errOrigin) {
	s.Error = newUIError(err)
	vm.errFrom = from
}

func (vm *ViewModel) clearError(s *UIState, from errOrigin) {
	if s.Error == nil {
		return
	}
	if from == originRead && vm.errFrom == originRefresh {
		return
	}
	s.Error = nil
	vm.errFrom = originNone
}

func (vm *ViewModel) applyLocked(fn func(UIState) (UIState, bool)) {
	next, changed := fn(vm.state)
	if !changed {
		return
	}
	vm.state = next
	if vm.closed {
		return
	}
	select {
	case vm.changes <- struct{}{}:
	default:
	}
}

// === Read subscription ===

func (vm *ViewModel) subscribeLocked() {
	ctx, cancel := context.WithCancel(vm.ctx)
	vm.readCancel = cancel
	vm.wg.Add(1)
	go func() {
		defer vm.wg.Done()
		vm.consumeReads(ctx)
	}()
}

func (vm *ViewModel) consumeReads(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			vm.logger.Error("album stream panicked", "panic", r)
			err := domain.NetworkError(fmt.Sprint(r))
			vm.updateIf(ctx, func(s UIState) (UIState, bool) {
				s.IsLoading = false
				vm.setError(&s, err, originRead)
				return s, true
			})
		}
	}()

	vm.updateIf(ctx, func(s UIState) (UIState, bool) {
		s.IsLoading = true
		vm.clearError(&s, originRead)
		return s, true
	})

	var last domain.Result[[]domain.Album]
	first := true
	for res := range vm.topAlbums.Execute(ctx) {
		if !first && sameResult(last, res) {
			continue
		}
		first = false
		last = res
		vm.applyRead(ctx, res)
	}
}

func (vm *ViewModel) applyRead(ctx context.Context, res domain.Result[[]domain.Album]) {
	res.Match(
		func() {
			vm.updateIf(ctx, func(s UIState) (UIState, bool) {
				s.IsLoading = true
				vm.clearError(&s, originRead)
				return s, true
			})
		},
		func(albums []domain.Album) {
			lastUpdated := vm.lastUpdated(ctx)
			vm.updateIf(ctx, func(s UIState) (UIState, bool) {
				s.IsLoading = false
				s.Albums = albums
				vm.clearError(&s, originRead)
				if !lastUpdated.IsZero() {
					s.LastUpdated = lastUpdated
				}
				return s, true
			})
		},
		func(err *domain.AlbumError) {
			vm.logger.Warn("album stream failure", "error", err)
			vm.updateIf(ctx, func(s UIState) (UIState, bool) {
				s.IsLoading = false
				vm.setError(&s, err, originRead)
				return s, true
			})
		},
	)
}

func (vm *ViewModel) lastUpdated(ctx context.Context) time.Time {
	if vm.syncInfo == nil {
		return time.Time{}
	}
	info, err := vm.syncInfo.Execute(ctx)
	if err != nil {
		vm.logger.Debug("failed to read sync info", "error", err)
		return time.Time{}
	}
	return info.FetchedAt
}

// sameResult reports whether two read results would produce the same state
func sameResult(a, b domain.Result[[]domain.Album]) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case domain.ResultSuccess:
		av, _ := a.Value()
		bv, _ := b.Value()
		return slices.EqualFunc(av, bv, domain.Album.Equal)
	case domain.ResultFailure:
		ae, be := a.Err(), b.Err()
		return ae.Kind == be.Kind && ae.Code == be.Code && ae.Message == be.Message
	default:
		return true
	}
}

// Retry clears the error and restarts the read subscription
func (vm *ViewModel) Retry() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed {
		return
	}
	if vm.readCancel != nil {
		vm.readCancel()
	}
	vm.applyLocked(func(s UIState) (UIState, bool) {
		if s.Error == nil {
			return s, false
		}
		vm.clearError(&s, originNone)
		return s, true
	})
	vm.subscribeLocked()
}

// === Refresh ===

// Refresh starts a network refresh. It returns nil, doing nothing, if a
// refresh is already running or the view-model is closed.
func (vm *ViewModel) Refresh() *Job {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.closed || vm.refreshJob != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(vm.ctx)
	job := newJob(cancel)
	vm.refreshJob = job
	vm.applyLocked(func(s UIState) (UIState, bool) {
		s.IsRefreshing = true
		return s, true
	})

	vm.wg.Add(1)
	go func() {
		defer vm.wg.Done()
		vm.runRefresh(ctx, job)
	}()
	return job
}

// IsRefreshInFlight reports whether a refresh job is running
func (vm *ViewModel) IsRefreshInFlight() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.refreshJob != nil
}

func (vm *ViewModel) runRefresh(ctx context.Context, job *Job) {
	terminal := false

	defer func() {
		if r := recover(); r != nil {
			vm.logger.Error("refresh panicked", "panic", r)
			err := domain.NetworkError(fmt.Sprint(r))
			terminal = vm.updateIf(ctx, func(s UIState) (UIState, bool) {
				s.IsRefreshing = false
				vm.setError(&s, err, originRefresh)
				return s, true
			})
		}

		if !terminal {
			// Cancelled: no result, no error
			job.err = ctx.Err()
			if job.err == nil {
				job.err = context.Canceled
			}
			vm.update(func(s UIState) (UIState, bool) {
				s.IsRefreshing = false
				return s, true
			})
		}

		vm.mu.Lock()
		if vm.refreshJob == job {
			vm.refreshJob = nil
		}
		vm.mu.Unlock()
		job.cancel()
		close(job.done)
	}()

	for res := range vm.refresh.Execute(ctx) {
		res.Match(
			func() {
				vm.updateIf(ctx, func(s UIState) (UIState, bool) {
					if s.IsRefreshing && s.Error == nil {
						return s, false
					}
					s.IsRefreshing = true
					vm.clearError(&s, originRefresh)
					return s, true
				})
			},
			func(albums []domain.Album) {
				lastUpdated := vm.lastUpdated(ctx)
				terminal = vm.updateIf(ctx, func(s UIState) (UIState, bool) {
					s.IsRefreshing = false
					s.Albums = albums
					vm.clearError(&s, originRefresh)
					if !lastUpdated.IsZero() {
						s.LastUpdated = lastUpdated
					}
					return s, true
				})
			},
			func(err *domain.AlbumError) {
				vm.logger.Warn("refresh failed", "error", err)
				terminal = vm.updateIf(ctx, func(s UIState) (UIState, bool) {
					s.IsRefreshing = false
					vm.setError(&s, err, originRefresh)
					return s, true
				})
			},
		)
	}
}

// === Search ===

// SetSearchQuery truncates q to the maximum length, trims it and stores
// it if it differs from the current query.
func (vm *ViewModel) SetSearchQuery(q string) {
	if runes := []rune(q); len(runes) > vm.maxSearchLength {
		q = string(runes[:vm.maxSearchLength])
	}
	q = strings.TrimSpace(q)

	vm.update(func(s UIState) (UIState, bool) {
		if s.SearchQuery == q {
			return s, false
		}
		s.SearchQuery = q
		return s, true
	})
}

// Close cancels the read subscription and any refresh, and waits for
// them to stop. Changes is closed afterwards.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	if vm.closed {
		vm.mu.Unlock()
		return
	}
	vm.closed = true
	vm.mu.Unlock()

	vm.cancel()
	vm.wg.Wait()

	vm.mu.Lock()
	close(vm.changes)
	vm.mu.Unlock()
}
