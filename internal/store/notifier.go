package store

import (
	"context"
	"sync"

	"github.com/mmcdole/tunes/internal/domain"
)

// notifier fans out "something committed" signals to live queries.
// Each subscriber channel holds at most one pending signal, so bursts of
// writes collapse into a single re-query.
type notifier struct {
	mu     sync.Mutex
	subs   map[chan struct{}]struct{}
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[chan struct{}]struct{})}
}

// subscribe registers a signal channel. The channel is closed when the
// notifier is closed.
func (n *notifier) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	n.subs[ch] = struct{}{}

	return ch, func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
	}
}

// broadcast signals every subscriber without blocking
func (n *notifier) broadcast() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for ch := range n.subs {
		delete(n.subs, ch)
		close(ch)
	}
}

// watch runs query once immediately and again after every broadcast,
// emitting each result. The returned channel is closed when ctx is done
// or the notifier is closed.
func watch[T any](ctx context.Context, n *notifier, query func(context.Context) (T, error)) <-chan domain.Snapshot[T] {
	out := make(chan domain.Snapshot[T])

	// Subscribe before the first query so a commit racing with it is not lost
	signal, unsubscribe := n.subscribe()

	go func() {
		defer close(out)
		defer unsubscribe()

		for {
			value, err := query(ctx)
			if ctx.Err() != nil {
				return
			}

			select {
			case out <- domain.Snapshot[T]{Value: value, Err: err}:
			case <-ctx.Done():
				return
			}

			select {
			case _, ok := <-signal:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
