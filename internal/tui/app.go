package tui

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/tui/styles"
	"github.com/mmcdole/tunes/internal/viewmodel"
)

// Screen is the page currently shown
type Screen int

const (
	ScreenList Screen = iota
	ScreenDetail
)

// Vertical chrome: header, search line, blank, footer
const ChromeHeight = 4

// How often the footer's relative time is redrawn
const tickInterval = 30 * time.Second

// Model is the main Bubble Tea model for the application
type Model struct {
	VM      *viewmodel.ViewModel
	Details AlbumDetailsQuery
	Opener  URLOpener // May be nil
	Logger  *slog.Logger

	// Latest published view-model snapshot
	State  viewmodel.UIState
	Screen Screen
	Ready  bool

	// Dimensions
	Width  int
	Height int

	// List position within the filtered albums
	Cursor int
	Offset int

	// Widgets
	Search    textinput.Model
	Searching bool
	Spinner   spinner.Model
	Help      help.Model
	ShowHelp  bool

	// Detail screen
	detailID     string
	detail       domain.Result[domain.Album]
	detailCancel context.CancelFunc

	StatusMsg string

	now func() time.Time
}

// NewModel creates a new application model
func NewModel(vm *viewmodel.ViewModel, details AlbumDetailsQuery, opener URLOpener, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle
	ti.Placeholder = "search albums or artists"
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpDescStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpDescStyle

	return Model{
		VM:      vm,
		Details: details,
		Opener:  opener,
		Logger:  logger,
		State:   vm.State(),
		Search:  ti,
		Spinner: sp,
		Help:    h,
		now:     time.Now,
	}
}

// Init starts the change listener and the startup refresh
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		WaitForStateCmd(m.VM),
		RefreshCmd(m.VM),
		m.Spinner.Tick,
		TickCmd(tickInterval),
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width
		m.Search.Width = max(msg.Width-4, 10)
		m.Ready = true
		m.clampCursor()
		return m, nil

	case StateChangedMsg:
		m.State = msg.State
		m.clampCursor()
		if msg.Closed {
			return m, nil
		}
		return m, WaitForStateCmd(m.VM)

	case RefreshStartedMsg:
		if msg.Dropped {
			m.StatusMsg = "Refresh already in progress"
			return m, ClearStatusCmd(2 * time.Second)
		}
		return m, WaitForRefreshCmd(msg.Job)

	case RefreshDoneMsg:
		if msg.Err != nil {
			m.Logger.Debug("refresh job ended early", "error", msg.Err)
		}
		return m, nil

	case AlbumDetailMsg:
		// Drop results from a detail stream that was already left
		if msg.AlbumID != m.detailID {
			return m, nil
		}
		m.detail = msg.Result
		return m, msg.NextCmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case OpenedMsg:
		if msg.Err != nil {
			m.Logger.Warn("failed to open link", "url", msg.URL, "error", msg.Err)
			m.StatusMsg = "Could not open link"
		} else {
			m.StatusMsg = "Opened in browser"
		}
		return m, ClearStatusCmd(2 * time.Second)

	case TickMsg:
		return m, TickCmd(tickInterval)

	case ClearStatusMsg:
		m.StatusMsg = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	if m.Searching {
		return m.updateSearch(msg)
	}
	return m, nil
}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.closeDetail()
		return m, tea.Quit
	}

	if m.Searching {
		switch msg.Type {
		case tea.KeyEsc:
			// Cancel the search entirely
			m.Searching = false
			m.Search.Blur()
			m.Search.SetValue("")
			m.VM.SetSearchQuery("")
			m.Cursor, m.Offset = 0, 0
			return m, nil
		case tea.KeyEnter:
			// Keep the query, return to the list
			m.Searching = false
			m.Search.Blur()
			return m, nil
		case tea.KeyUp, tea.KeyDown:
			m.Searching = false
			m.Search.Blur()
		default:
			return m.updateSearch(msg)
		}
	}

	if m.ShowHelp {
		if key.Matches(msg, Keys.Help, Keys.Back, Keys.Quit) {
			m.ShowHelp = false
		}
		return m, nil
	}

	// Global keys
	switch {
	case key.Matches(msg, Keys.Quit):
		m.closeDetail()
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.ShowHelp = true
		return m, nil

	case key.Matches(msg, Keys.Refresh):
		return m, RefreshCmd(m.VM)

	case key.Matches(msg, Keys.Retry):
		if !m.State.HasError() {
			return m, nil
		}
		m.VM.Retry()
		m.StatusMsg = "Retrying..."
		return m, tea.Batch(RefreshCmd(m.VM), ClearStatusCmd(2*time.Second))
	}

	if m.Screen == ScreenDetail {
		switch {
		case key.Matches(msg, Keys.Back):
			m.closeDetail()
			m.Screen = ScreenList
		case key.Matches(msg, Keys.Open):
			if a, ok := m.detail.Value(); ok {
				return m.openLink(a)
			}
		}
		return m, nil
	}

	albums := m.State.FilteredAlbums()
	page := m.listHeight()

	switch {
	case key.Matches(msg, Keys.Filter):
		m.Searching = true
		return m, m.Search.Focus()

	case key.Matches(msg, Keys.Up):
		m.Cursor--
	case key.Matches(msg, Keys.Down):
		m.Cursor++
	case key.Matches(msg, Keys.PageUp):
		m.Cursor -= page
	case key.Matches(msg, Keys.PageDown):
		m.Cursor += page
	case key.Matches(msg, Keys.Home):
		m.Cursor = 0
	case key.Matches(msg, Keys.End):
		m.Cursor = len(albums) - 1

	case key.Matches(msg, Keys.Enter):
		if len(albums) == 0 {
			return m, nil
		}
		return m.openDetail(albums[m.Cursor].ID)

	case key.Matches(msg, Keys.Open):
		if len(albums) == 0 {
			return m, nil
		}
		return m.openLink(albums[m.Cursor])

	case key.Matches(msg, Keys.Back):
		if m.State.SearchQuery != "" {
			m.Search.SetValue("")
			m.VM.SetSearchQuery("")
			m.Cursor, m.Offset = 0, 0
		}
		return m, nil
	}

	m.clampCursor()
	return m, nil
}

// updateSearch feeds input to the search box and pushes the query down
func (m Model) updateSearch(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	before := m.Search.Value()
	m.Search, cmd = m.Search.Update(msg)
	if v := m.Search.Value(); v != before {
		m.VM.SetSearchQuery(v)
		// SetSearchQuery publishes synchronously, so read it back for this frame
		m.State = m.VM.State()
		m.Cursor, m.Offset = 0, 0
	}
	return m, cmd
}

func (m Model) openDetail(id string) (tea.Model, tea.Cmd) {
	m.closeDetail()
	ctx, cancel := context.WithCancel(context.Background())
	m.detailCancel = cancel
	m.detailID = id
	m.detail = domain.Loading[domain.Album]()
	m.Screen = ScreenDetail
	return m, WatchAlbumCmd(ctx, m.Details, id)
}

// openLink opens the album's store page, or its artwork when there is none
func (m Model) openLink(a domain.Album) (tea.Model, tea.Cmd) {
	url := a.URL
	if url == "" {
		url = a.ArtworkURL
	}
	if m.Opener == nil || url == "" {
		m.StatusMsg = "Nothing to open"
		return m, ClearStatusCmd(2 * time.Second)
	}
	return m, OpenURLCmd(m.Opener, url)
}

func (m *Model) closeDetail() {
	if m.detailCancel != nil {
		m.detailCancel()
		m.detailCancel = nil
	}
	m.detailID = ""
}

// listHeight is the number of album rows that fit on screen
func (m Model) listHeight() int {
	h := m.Height - ChromeHeight
	if m.State.HasError() && m.State.HasContent() {
		h--
	}
	if h < 1 {
		h = 1
	}
	return h
}

// clampCursor keeps the cursor on a visible row of the filtered list
func (m *Model) clampCursor() {
	n := len(m.State.FilteredAlbums())
	if m.Cursor >= n {
		m.Cursor = n - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}

	page := m.listHeight()
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+page {
		m.Offset = m.Cursor - page + 1
	}
	if m.Offset > max(n-page, 0) {
		m.Offset = max(n-page, 0)
	}
}

// View renders the UI
func (m Model) View() string {
	if !m.Ready {
		return m.Spinner.View() + " Loading..."
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	sections := []string{m.renderHeader(), m.renderSearch()}
	switch m.Screen {
	case ScreenDetail:
		sections = append(sections, RenderAlbumDetail(m.detail, m.Spinner.View(), m.Width))
	default:
		sections = append(sections, m.renderList())
	}

	body := lipgloss.JoinVertical(lipgloss.Left, sections...)
	gap := m.Height - lipgloss.Height(body) - 1
	if gap > 0 {
		body += strings.Repeat("\n", gap)
	}
	return body + "\n" + m.renderFooter()
}

func (m Model) renderHeader() string {
	title := styles.TitleStyle.Render("Top Albums")
	if m.State.HasContent() {
		title += " " + styles.DimBadgeStyle.Render(countLabel(len(m.State.FilteredAlbums()), len(m.State.Albums)))
	}

	var status string
	switch {
	case m.State.IsRefreshing:
		status = m.Spinner.View() + styles.DimStyle.Render(" Refreshing")
	case m.State.IsLoading:
		status = m.Spinner.View() + styles.DimStyle.Render(" Loading")
	}

	gap := m.Width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + title + strings.Repeat(" ", gap) + status
}

func countLabel(shown, total int) string {
	if shown == total {
		return strconv.Itoa(total)
	}
	return strconv.Itoa(shown) + "/" + strconv.Itoa(total)
}

func (m Model) renderSearch() string {
	if m.Searching || m.State.SearchQuery != "" {
		return " " + m.Search.View()
	}
	return ""
}

func (m Model) renderList() string {
	state := m.State

	if state.HasError() && !state.HasContent() {
		return "\n " + RenderError(state.Error, m.Width)
	}
	if state.IsLoading && !state.HasContent() {
		return "\n " + m.Spinner.View() + styles.DimStyle.Render(" Loading top albums...")
	}

	var lines []string
	if state.HasError() {
		lines = append(lines, RenderErrorBanner(state.Error, m.Width))
	}

	albums := state.FilteredAlbums()
	if len(albums) == 0 {
		lines = append(lines, "", " "+strings.ReplaceAll(RenderEmpty(state, m.Width), "\n", "\n "))
		return strings.Join(lines, "\n")
	}

	end := min(m.Offset+m.listHeight(), len(albums))
	for i := m.Offset; i < end; i++ {
		lines = append(lines, RenderAlbumRow(rankOf(state.Albums, albums[i]), albums[i], state.SearchQuery, i == m.Cursor, m.Width))
	}
	return strings.Join(lines, "\n")
}

// rankOf returns the chart position of a among all albums
func rankOf(all []domain.Album, a domain.Album) int {
	for i := range all {
		if all[i].ID == a.ID {
			return i + 1
		}
	}
	return 0
}

func (m Model) renderFooter() string {
	left := m.Help.View(Keys)
	if m.StatusMsg != "" {
		left = styles.AccentStyle.Render(m.StatusMsg)
	}
	right := styles.DimStyle.Render(formatUpdated(m.now(), m.State.LastUpdated))

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return " " + left + strings.Repeat(" ", gap) + right
}

func (m Model) renderHelp() string {
	h := m.Help
	h.ShowAll = true
	return lipgloss.JoinVertical(lipgloss.Left,
		" "+styles.TitleStyle.Render("Keys"),
		"",
		" "+h.View(Keys),
		"",
		" "+styles.DimStyle.Render("Press ? or esc to close"),
	)
}
