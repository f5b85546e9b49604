package search

import (
	"strings"
	"unicode/utf8"

	"github.com/mmcdole/tunes/internal/domain"
)

// Filter returns the albums whose name or artist contains query,
// ignoring case. A blank query returns albums unchanged.
func Filter(albums []domain.Album, query string) []domain.Album {
	query = strings.TrimSpace(query)
	if query == "" {
		return albums
	}

	results := make([]domain.Album, 0, len(albums))
	for _, a := range albums {
		if Matches(a, query) {
			results = append(results, a)
		}
	}
	return results
}

// Matches reports whether the album name or artist contains query, ignoring case
func Matches(a domain.Album, query string) bool {
	start, _ := indexFold(a.Name, query)
	if start >= 0 {
		return true
	}
	start, _ = indexFold(a.Artist, query)
	return start >= 0
}

// indexFold finds substr in s ignoring case. It returns the byte offset
// and byte length of the match in s, or -1.
func indexFold(s, substr string) (int, int) {
	if substr == "" {
		return 0, 0
	}
	for i := range s {
		if n, ok := prefixFold(s[i:], substr); ok {
			return i, n
		}
	}
	return -1, 0
}

// prefixFold reports whether s starts with prefix ignoring case, and how
// many bytes of s the prefix covers.
func prefixFold(s, prefix string) (int, bool) {
	n := 0
	for _, pr := range prefix {
		if n >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[n:])
		if sr != pr && !strings.EqualFold(string(sr), string(pr)) {
			return 0, false
		}
		n += size
	}
	return n, true
}
