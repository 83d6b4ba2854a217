package command

import (
	"sort"
	"strings"
	"unicode"
)

// Searchable is an entry the fuzzy filter can score.
type Searchable interface {
	// SearchTerms returns the fields to match, most important first.
	SearchTerms() []string

	// Label is the display text used to break score ties.
	Label() string
}

// SearchResult is a matched item with scoring information.
type SearchResult[T Searchable] struct {
	Item T

	// Score is the match score (higher is better).
	Score int

	// Matches contains the indices of matched characters in the matched term.
	Matches []int
}

// termBoosts weights matches by the position of the term that matched.
var termBoosts = []int{50, 25}

// Filter handles fuzzy search scoring.
type Filter struct {
	// MinScore is the minimum score for a match to be included.
	MinScore int
}

// NewFilter creates a new filter with default settings.
func NewFilter() *Filter {
	return &Filter{}
}

// Search scores items against query and returns matches by descending score.
func Search[T Searchable](f *Filter, items []T, query string, limit int) []SearchResult[T] {
	results := make([]SearchResult[T], 0, len(items))
	if query == "" {
		for _, item := range items {
			results = append(results, SearchResult[T]{Item: item})
		}
		return truncate(results, limit)
	}

	query = strings.ToLower(query)
	for _, item := range items {
		score, matches := f.match(query, item.SearchTerms())
		if score > f.MinScore {
			results = append(results, SearchResult[T]{
				Item:    item,
				Score:   score,
				Matches: matches,
			})
		}
	}

	sortResults(results)
	return truncate(results, limit)
}

// match scores the first term that matches.
func (f *Filter) match(query string, terms []string) (int, []int) {
	for i, term := range terms {
		score, matches := f.fuzzyMatch(query, term)
		if score > 0 {
			if i < len(termBoosts) {
				score += termBoosts[i]
			}
			return score, matches
		}
	}
	return 0, nil
}

// fuzzyMatch performs subsequence matching and returns score and match indices.
func (f *Filter) fuzzyMatch(query, text string) (int, []int) {
	if text == "" {
		return 0, nil
	}

	textLower := strings.ToLower(text)
	matches := make([]int, 0, len(query))
	queryIdx := 0

	for i := 0; i < len(textLower) && queryIdx < len(query); i++ {
		if textLower[i] == query[queryIdx] {
			matches = append(matches, i)
			queryIdx++
		}
	}

	if queryIdx != len(query) {
		return 0, nil
	}
	return f.calculateScore(query, text, textLower, matches), matches
}

// calculateScore computes a match score based on match shape.
func (f *Filter) calculateScore(query, text, textLower string, matches []int) int {
	if len(matches) == 0 {
		return 0
	}

	score := 100

	// Consecutive matches
	for i := 1; i < len(matches); i++ {
		if matches[i] == matches[i-1]+1 {
			score += 20
		}
	}

	for _, idx := range matches {
		if isWordBoundary(text, idx) {
			score += 15
		}
	}

	if matches[0] == 0 {
		score += 25
	}

	// Gaps between matches
	if len(matches) > 1 {
		if gap := matches[len(matches)-1] - matches[0] - len(matches) + 1; gap > 0 {
			score -= gap * 2
		}
	}

	score -= matches[0]

	// Shorter text is a more specific match
	if len(text) < 20 {
		score += 20 - len(text)
	}

	if strings.HasPrefix(textLower, query) {
		score += 50
	}

	if score < 1 {
		score = 1
	}
	return score
}

// isWordBoundary checks if the character at idx starts a word.
func isWordBoundary(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	if idx >= len(text) {
		return false
	}

	prev := rune(text[idx-1])
	curr := rune(text[idx])

	switch prev {
	case '/', '_', '-', '.', ' ', ':':
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(curr)
}

func sortResults[T Searchable](results []SearchResult[T]) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Item.Label() < results[j].Item.Label()
	})
}

func truncate[T Searchable](results []SearchResult[T], limit int) []SearchResult[T] {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
