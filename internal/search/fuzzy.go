package search

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/tunes/internal/domain"
)

// Highlight returns the byte offsets of text matched by query, for
// rendering. A contiguous case-insensitive match is preferred over a
// fuzzy subsequence match.
func Highlight(query, text string) []int {
	query = strings.TrimSpace(query)
	if query == "" || text == "" {
		return nil
	}

	if start, n := indexFold(text, query); start >= 0 {
		return makeIndexRange(start, start+n)
	}

	matches := fuzzy.Find(query, []string{text})
	if len(matches) == 0 {
		return nil
	}
	return matches[0].MatchedIndexes
}

// Suggest returns up to limit album names or artists that look like what
// query was meant to find. Subsequence matches ("lvstry" for "Love Story")
// rank first, then single-word typos within a length-based budget.
func Suggest(query string, albums []domain.Album, limit int) []string {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil
	}

	candidates := candidateTitles(albums)
	if len(candidates) == 0 {
		return nil
	}

	var suggestions []string
	add := func(s string) bool {
		if !slices.Contains(suggestions, s) {
			suggestions = append(suggestions, s)
		}
		return len(suggestions) >= limit
	}

	ranks := fuzzysearch.RankFindNormalizedFold(query, candidates)
	sort.Stable(ranks)
	for _, r := range ranks {
		if add(r.Target) {
			return suggestions
		}
	}

	for _, c := range typoMatches(query, candidates) {
		if add(c) {
			break
		}
	}
	return suggestions
}

// candidateTitles collects distinct non-blank names and artists in chart order
func candidateTitles(albums []domain.Album) []string {
	seen := make(map[string]struct{}, len(albums)*2)
	var out []string
	for _, a := range albums {
		for _, s := range []string{a.Name, a.Artist} {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

type typoMatch struct {
	title    string
	distance int
}

// typoMatches returns candidates containing a word within the typo
// budget of query, closest first.
func typoMatches(query string, candidates []string) []string {
	q := strings.ToLower(query)
	budget := allowedTypos(len([]rune(q)))
	if budget == 0 {
		return nil
	}

	var matches []typoMatch
	for _, c := range candidates {
		best := -1
		for _, word := range words(c) {
			d := fuzzysearch.LevenshteinDistance(q, word)
			if d <= budget && (best < 0 || d < best) {
				best = d
			}
		}
		if best >= 0 {
			matches = append(matches, typoMatch{title: c, distance: best})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.title
	}
	return out
}

// words splits text into lowercase letter/digit runs
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// allowedTypos returns the number of typos allowed based on word length
// Industry standard: 1-3 chars = 0, 4-6 chars = 1, 7+ chars = 2
func allowedTypos(length int) int {
	switch {
	case length <= 3:
		return 0
	case length <= 6:
		return 1
	default:
		return 2
	}
}

// makeIndexRange creates a slice of consecutive integers [start, end)
func makeIndexRange(start, end int) []int {
	indexes := make([]int, end-start)
	for i := range indexes {
		indexes[i] = start + i
	}
	return indexes
}
