package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/tunes/internal/domain"
	"github.com/mmcdole/tunes/internal/search"
	"github.com/mmcdole/tunes/internal/tui/styles"
	"github.com/mmcdole/tunes/internal/viewmodel"
)

// Column widths for album rows
const (
	rankWidth = 5
	yearWidth = 6
)

// RenderAlbumRow renders one chart row, highlighting query matches
func RenderAlbumRow(rank int, album domain.Album, query string, selected bool, width int) string {
	rest := width - rankWidth - yearWidth - 2
	if rest < 10 {
		rest = 10
	}
	nameWidth := rest * 55 / 100
	artistWidth := rest - nameWidth - 3

	dim := styles.DimGray
	parts := []styles.RowPart{{Text: fmt.Sprintf("%*d  ", rankWidth-2, rank), Foreground: &dim}}
	parts = append(parts, highlightField(album.Name, query, nameWidth)...)
	parts = append(parts, styles.RowPart{Text: " · ", Foreground: &dim})
	parts = append(parts, highlightField(album.Artist, query, artistWidth)...)

	year := ""
	if y := album.ReleaseYear(); y > 0 {
		year = fmt.Sprintf("%d", y)
	}
	used := rankWidth + lipgloss.Width(styles.Truncate(album.Name, nameWidth)) + 3 +
		lipgloss.Width(styles.Truncate(album.Artist, artistWidth))
	if gap := width - 2 - used - len(year); gap > 0 && year != "" {
		parts = append(parts,
			styles.RowPart{Text: strings.Repeat(" ", gap)},
			styles.RowPart{Text: year, Foreground: &dim})
	}

	return styles.RenderListRow(parts, selected, width)
}

// highlightField truncates text and marks the query match that survived the cut
func highlightField(text, query string, width int) []styles.RowPart {
	shown := styles.Truncate(text, width)
	visible := len(shown)
	if shown != text {
		visible = len(strings.TrimSuffix(shown, "..."))
	}
	var kept []int
	for _, i := range search.Highlight(query, text) {
		if i < visible {
			kept = append(kept, i)
		}
	}
	return styles.HighlightParts(shown, kept)
}

// RenderAlbumDetail renders the detail panel for a live album result
func RenderAlbumDetail(res domain.Result[domain.Album], spinner string, width int) string {
	inner := width - 6
	if inner < 20 {
		inner = 20
	}
	body := domain.Fold(res,
		func() string {
			return spinner + " Loading album..."
		},
		func(a domain.Album) string {
			return renderAlbumFields(a, inner)
		},
		func(err *domain.AlbumError) string {
			if err.Kind == domain.KindEmptyResponse {
				return styles.DimStyle.Render("This album is no longer in the chart.")
			}
			return styles.ErrorStyle.Render(wordWrap(err.UserMessage(), inner))
		},
	)
	return styles.DetailStyle.Width(inner + 4).Render(body)
}

func renderAlbumFields(a domain.Album, width int) string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(wordWrap(a.Name, width)))
	b.WriteString("\n")
	b.WriteString(styles.AccentStyle.Render(a.Artist))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("%-10s", label)))
		b.WriteString(styles.Truncate(value, width-10))
		b.WriteString("\n")
	}
	if a.Category != "" {
		b.WriteString(styles.BadgeStyle.Render(a.Category))
		b.WriteString("\n\n")
	}
	field("Released", a.FormattedReleaseDate())
	field("Store", a.URL)
	field("Artwork", a.ArtworkURL)
	field("ID", a.ID)
	return strings.TrimRight(b.String(), "\n")
}

// RenderEmpty renders the empty state. With an active query it offers
// "did you mean" suggestions drawn from the full album list.
func RenderEmpty(state viewmodel.UIState, width int) string {
	if state.SearchQuery == "" {
		return styles.DimStyle.Render("No albums yet. Press r to refresh.")
	}

	msg := fmt.Sprintf("No albums match %q.", state.SearchQuery)
	suggestions := search.Suggest(state.SearchQuery, state.Albums, 3)
	if len(suggestions) == 0 {
		return styles.DimStyle.Render(msg)
	}
	quoted := make([]string, len(suggestions))
	for i, s := range suggestions {
		quoted[i] = styles.AccentStyle.Render(s)
	}
	return styles.DimStyle.Render(msg) + "\n" +
		styles.DimStyle.Render("Did you mean: ") + strings.Join(quoted, styles.DimStyle.Render(", ")) +
		styles.DimStyle.Render("?")
}

// RenderError renders a full-screen error with the retry hint
func RenderError(err *viewmodel.UIError, width int) string {
	msg := wordWrap(err.Message, width-4)
	return styles.ErrorStyle.Render(msg) + "\n\n" +
		styles.DimStyle.Render("Press R to try again.")
}

// RenderErrorBanner renders a one-line error shown above stale content
func RenderErrorBanner(err *viewmodel.UIError, width int) string {
	return styles.ErrorBannerStyle.Render(styles.Truncate(err.Message+"  (R to retry)", width-2))
}

// formatUpdated describes how long ago t was, e.g. "updated 5m ago"
func formatUpdated(now, t time.Time) string {
	if t.IsZero() {
		return "never updated"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "updated just now"
	case d < time.Hour:
		return fmt.Sprintf("updated %dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("updated %dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("updated %dd ago", int(d.Hours()/24))
	}
}

// wordWrap wraps text to the specified width
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wordLen := lipgloss.Width(word)

		if lineLen+wordLen+1 > width && lineLen > 0 {
			result.WriteString("\n")
			lineLen = 0
		}

		if i > 0 && lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}
