package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/tunes/internal/domain"
)

func albums(t *testing.T, pairs ...string) []domain.Album {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	var out []domain.Album
	for i := 0; i < len(pairs); i += 2 {
		a, err := domain.NewAlbum(pairs[i], pairs[i], pairs[i+1], "", domain.UnknownReleaseDate, "", "")
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func names(albums []domain.Album) []string {
	out := make([]string, len(albums))
	for i, a := range albums {
		out[i] = a.Name
	}
	return out
}

func TestFilter(t *testing.T) {
	chart := albums(t, "Love Story", "Artist A", "Nothing", "Lover Boy", "Midnights", "Taylor Swift")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"matches name or artist", "Love", []string{"Love Story", "Nothing"}},
		{"case insensitive", "lOVE", []string{"Love Story", "Nothing"}},
		{"artist only", "swift", []string{"Midnights"}},
		{"trimmed", "  night ", []string{"Midnights"}},
		{"no match", "zzz", []string{}},
		{"blank keeps all", "   ", []string{"Love Story", "Nothing", "Midnights"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(Filter(chart, tt.query)))
		})
	}
}

func TestFilter_Unicode(t *testing.T) {
	chart := albums(t, "Éclair", "Beyoncé", "Straße", "Band")

	assert.Equal(t, []string{"Éclair"}, names(Filter(chart, "BEYONCÉ")))
	assert.Equal(t, []string{"Éclair"}, names(Filter(chart, "éclair")))
	assert.Equal(t, []string{"Straße"}, names(Filter(chart, "STRAßE")))
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, []int{5, 6, 7, 8}, Highlight("STOR", "Love Story"))
	assert.Nil(t, Highlight("", "Love Story"))
	assert.Nil(t, Highlight("xyz", "Love Story"))

	// Falls back to a subsequence match
	assert.Equal(t, []int{0, 5}, Highlight("ls", "Love Story"))

	// Offsets are bytes
	assert.Equal(t, []int{4, 5, 6, 7}, Highlight("ncé", "Beyoncé"))
}

func TestSuggest(t *testing.T) {
	chart := albums(t,
		"Love Story", "Artist A",
		"Nothing", "Lover Boy",
		"Midnights", "Taylor Swift",
	)

	t.Run("subsequence", func(t *testing.T) {
		got := Suggest("lvstry", chart, 3)
		require.NotEmpty(t, got)
		assert.Equal(t, "Love Story", got[0])
	})

	t.Run("typo", func(t *testing.T) {
		got := Suggest("Midnihgts", chart, 3)
		assert.Contains(t, got, "Midnights")
	})

	t.Run("limit", func(t *testing.T) {
		assert.Len(t, Suggest("o", chart, 2), 2)
	})

	t.Run("nothing close", func(t *testing.T) {
		assert.Empty(t, Suggest("qqqqqqqq", chart, 3))
	})

	t.Run("blank", func(t *testing.T) {
		assert.Nil(t, Suggest(" ", chart, 3))
		assert.Nil(t, Suggest("love", nil, 3))
	})
}

func TestAllowedTypos(t *testing.T) {
	assert.Equal(t, 0, allowedTypos(3))
	assert.Equal(t, 1, allowedTypos(4))
	assert.Equal(t, 1, allowedTypos(6))
	assert.Equal(t, 2, allowedTypos(7))
}
