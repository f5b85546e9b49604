package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/viewmodel"
)

// Message types for the TUI

// StateChangedMsg carries the latest view-model snapshot.
// Closed is set once the view-model stops publishing.
type StateChangedMsg struct {
	State  viewmodel.UIState
	Closed bool
}

// RefreshStartedMsg signals a refresh request was handed to the view-model.
// Dropped is set when one was already running.
type RefreshStartedMsg struct {
	Job     *viewmodel.Job
	Dropped bool
}

// RefreshDoneMsg signals the refresh job finished
type RefreshDoneMsg struct {
	Err error // Non-nil only when the job was cancelled
}

// AlbumDetailMsg carries one result of the live detail query
type AlbumDetailMsg struct {
	AlbumID string
	Result  domain.Result[domain.Album]
	NextCmd tea.Cmd // Reads the next result
}

// OpenedMsg signals an album link was handed to the opener
type OpenedMsg struct {
	URL string
	Err error
}

// TickMsg is sent periodically so relative times stay current
type TickMsg struct{}

// ClearStatusMsg clears the status message
type ClearStatusMsg struct{}
