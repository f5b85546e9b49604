package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/viewmodel"
)

// Command factories for async operations

// AlbumDetailsQuery is the live by-id album query used by the detail screen
type AlbumDetailsQuery interface {
	Execute(ctx context.Context, id string) <-chan domain.Result[domain.Album]
}

// WaitForStateCmd blocks until the view-model publishes a change and returns
// the snapshot. Update re-issues it after every StateChangedMsg.
func WaitForStateCmd(vm *viewmodel.ViewModel) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-vm.Changes(); !ok {
			return StateChangedMsg{State: vm.State(), Closed: true}
		}
		return StateChangedMsg{State: vm.State()}
	}
}

// RefreshCmd starts a refresh on the view-model
func RefreshCmd(vm *viewmodel.ViewModel) tea.Cmd {
	return func() tea.Msg {
		job := vm.Refresh()
		return RefreshStartedMsg{Job: job, Dropped: job == nil}
	}
}

// WaitForRefreshCmd waits for job to finish
func WaitForRefreshCmd(job *viewmodel.Job) tea.Cmd {
	return func() tea.Msg {
		return RefreshDoneMsg{Err: job.Wait()}
	}
}

// WatchAlbumCmd subscribes to the album with the given id.
// Results are pumped to the UI with a continuation command on each message.
func WatchAlbumCmd(ctx context.Context, details AlbumDetailsQuery, id string) tea.Cmd {
	return func() tea.Msg {
		return readAlbumDetail(id, details.Execute(ctx, id))
	}
}

// readAlbumDetail reads one result and embeds the command reading the next
func readAlbumDetail(id string, ch <-chan domain.Result[domain.Album]) tea.Msg {
	res, ok := <-ch
	if !ok {
		// Stream ended: cancelled or the screen was left
		return nil
	}
	return AlbumDetailMsg{
		AlbumID: id,
		Result:  res,
		NextCmd: func() tea.Msg { return readAlbumDetail(id, ch) },
	}
}

// URLOpener opens a link outside the terminal
type URLOpener interface {
	Open(url string) error
}

// OpenURLCmd opens url with opener
func OpenURLCmd(opener URLOpener, url string) tea.Cmd {
	return func() tea.Msg {
		return OpenedMsg{URL: url, Err: opener.Open(url)}
	}
}

// TickCmd returns a command that sends a tick after a delay
func TickCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
