package booksearch

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
)

// Weights of the relevance sum. All weights are non-negative, which keeps the
// score monotonic in every component.
type Weights struct {
	Exact        float64 // folded title equals folded query
	Contains     float64 // folded title contains the folded query phrase
	Fuzzy        float64 // edit-distance similarity at or above FuzzyCutoff
	TokenOverlap float64 // scaled by the share of query tokens present in the title
	Author       float64 // a query author appears among the candidate authors
	Completeness float64 // scaled by MetadataCompleteness
	FuzzyCutoff  float64 // similarity threshold in [0,1]
}

// DefaultWeights rank an exact title match above any partial match with
// complete metadata.
func DefaultWeights() Weights {
	return Weights{
		Exact:        10,
		Contains:     6,
		Fuzzy:        3,
		TokenOverlap: 2,
		Author:       4,
		Completeness: 2,
		FuzzyCutoff:  0.6,
	}
}

// Scorer assigns relevance scores. It is pure and safe for concurrent use.
type Scorer struct {
	w Weights
}

// NewScorer creates a scorer; negative weights are clamped to zero.
func NewScorer(w Weights) Scorer {
	for _, p := range []*float64{&w.Exact, &w.Contains, &w.Fuzzy, &w.TokenOverlap, &w.Author, &w.Completeness} {
		*p = max(*p, 0)
	}
	return Scorer{w: w}
}

// Breakdown lists the components of one score.
type Breakdown struct {
	Exact        bool
	Contains     bool
	Similarity   float64
	TokenOverlap float64
	AuthorMatch  bool
	Completeness float64
	Total        float64
}

// Score returns the relevance of c for q.
func (s Scorer) Score(c Candidate, q SearchQuery) float64 {
	return s.Explain(c, q).Total
}

// Explain returns the score together with its components.
func (s Scorer) Explain(c Candidate, q SearchQuery) Breakdown {
	query := normalize.Phrase(q.RawText())
	title := normalize.Phrase(c.Title)

	b := Breakdown{Completeness: c.MetadataCompleteness}
	if query != "" && title != "" {
		b.Exact = query == title
		b.Contains = containsPhrase(title, query)
		b.Similarity = similarity(query, title)
		b.TokenOverlap = tokenOverlap(query, title)
	}
	b.AuthorMatch = authorMatches(q, c)

	if b.Exact {
		b.Total += s.w.Exact
	}
	if b.Contains {
		b.Total += s.w.Contains
	}
	if b.Similarity >= s.w.FuzzyCutoff {
		b.Total += s.w.Fuzzy
	}
	b.Total += s.w.TokenOverlap * b.TokenOverlap
	if b.AuthorMatch {
		b.Total += s.w.Author
	}
	b.Total += s.w.Completeness * b.Completeness
	return b
}

// containsPhrase matches whole tokens, so "dune" is found in "children of dune"
// but not in "dunes".
func containsPhrase(title, query string) bool {
	return strings.Contains(" "+title+" ", " "+query+" ")
}

// similarity is 1 - levenshtein/len over folded phrases.
func similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}

// tokenOverlap is the share of query tokens that occur in the title.
func tokenOverlap(query, title string) float64 {
	qTokens := strings.Fields(query)
	if len(qTokens) == 0 {
		return 0
	}
	tTokens := strings.Fields(title)
	hit := 0
	for _, t := range qTokens {
		if slices.Contains(tTokens, t) {
			hit++
		}
	}
	return float64(hit) / float64(len(qTokens))
}

// authorMatches checks the explicit author against candidate authors. Without
// an explicit author, a candidate author's surname in the free text counts,
// unless that word is also part of the title.
func authorMatches(q SearchQuery, c Candidate) bool {
	if len(c.Authors) == 0 {
		return false
	}

	if q.Author() != "" {
		want := normalize.Tokens(q.Author())
		for _, a := range c.Authors {
			if containsAll(normalize.Tokens(a), want) {
				return true
			}
		}
		return false
	}

	queryTokens := normalize.Tokens(q.RawText())
	titleTokens := normalize.Tokens(c.Title)
	for _, a := range c.Authors {
		tokens := normalize.Tokens(a)
		if len(tokens) == 0 {
			continue
		}
		surname := tokens[len(tokens)-1]
		if utf8.RuneCountInString(surname) >= 3 &&
			slices.Contains(queryTokens, surname) &&
			!slices.Contains(titleTokens, surname) {
			return true
		}
	}
	return false
}

func containsAll(have, want []string) bool {
	if len(want) == 0 {
		return false
	}
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
