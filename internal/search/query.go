package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
)

// Library index errors.
var (
	ErrMissingOwner = errors.New("search: owner is required")
	ErrClosed       = errors.New("search: index is closed")
)

// Query configures a library search.
type Query struct {
	OwnerID string
	Text    string
	Status  domain.ReadStatus // empty = any
	Limit   int
	Offset  int
}

// Hit is one matching book.
type Hit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Result holds matching book IDs, best first.
type Result struct {
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// IDs returns the hit IDs in rank order.
func (r *Result) IDs() []string {
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}

const defaultLimit = 20

// Search runs q against the owner's documents. Empty text matches every
// book of the owner, most recently updated first.
func (s *LibraryIndex) Search(ctx context.Context, q Query) (*Result, error) {
	if strings.TrimSpace(q.OwnerID) == "" {
		return nil, ErrMissingOwner
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildLibraryQuery(q), q.Limit, q.Offset, false)
	if strings.TrimSpace(q.Text) == "" {
		req.SortBy([]string{"-updated_at", "_id"})
	} else {
		req.SortBy([]string{"-_score", "_id"})
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		result.Hits = append(result.Hits, Hit{ID: hit.ID, Score: hit.Score})
	}
	return result, nil
}

// buildLibraryQuery conjoins the owner filter, an optional status filter and
// the text disjunction.
func buildLibraryQuery(q Query) query.Query {
	owner := bleve.NewTermQuery(q.OwnerID)
	owner.SetField("owner_id")
	queries := []query.Query{owner}

	if q.Status != "" {
		status := bleve.NewTermQuery(string(q.Status))
		status.SetField("status")
		queries = append(queries, status)
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		queries = append(queries, textQuery(text))
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

func textQuery(text string) query.Query {
	titleMatch := bleve.NewMatchQuery(text)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)

	subtitleMatch := bleve.NewMatchQuery(text)
	subtitleMatch.SetField("subtitle")
	subtitleMatch.SetBoost(1.5)

	authorsMatch := bleve.NewMatchQuery(text)
	authorsMatch.SetField("authors")
	authorsMatch.SetBoost(2.0)

	descMatch := bleve.NewMatchQuery(text)
	descMatch.SetField("description")

	genresMatch := bleve.NewMatchQuery(text)
	genresMatch.SetField("genres")
	genresMatch.SetBoost(0.5)

	textQueries := []query.Query{titleMatch, subtitleMatch, authorsMatch, descMatch, genresMatch}

	// Fuzzy and prefix queries are not analyzed, so they see lowercased
	// words. Fuzziness 1 tolerates one typo per title word.
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		if len([]rune(w)) < 4 {
			continue
		}
		fuzzy := bleve.NewFuzzyQuery(w)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)
		textQueries = append(textQueries, fuzzy)
	}

	// prefix on the last word for search-as-you-type
	if last := words[len(words)-1]; len([]rune(last)) >= 2 {
		prefix := bleve.NewPrefixQuery(last)
		prefix.SetField("title")
		prefix.SetBoost(0.5)
		textQueries = append(textQueries, prefix)
	}

	return bleve.NewDisjunctionQuery(textQueries...)
}
