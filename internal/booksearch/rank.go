package booksearch

import (
	"cmp"
	"slices"
	"strings"

	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
)

// SortMode selects the primary ordering key.
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortYear      SortMode = "year"
	SortAuthor    SortMode = "author"
)

// ParseSortMode accepts the mode names case-insensitively; empty means relevance.
func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortYear, SortAuthor:
		return m, nil
	default:
		return "", domainerrors.Validationf("unsupported sort %q (use relevance, year or author)", s)
	}
}

// Scored pairs a candidate with its relevance.
type Scored struct {
	Candidate
	Score float64
}

// Rank scores candidates and orders them by mode. Every mode falls back to
// the fetch index, so identical inputs always produce the same order.
func Rank(cands []Candidate, q SearchQuery, scorer Scorer, mode SortMode) []Scored {
	out := make([]Scored, len(cands))
	for i, c := range cands {
		out[i] = Scored{Candidate: c, Score: scorer.Score(c, q)}
	}
	slices.SortStableFunc(out, compareBy(mode))
	return out
}

func compareBy(mode SortMode) func(a, b Scored) int {
	byIndex := func(a, b Scored) int { return cmp.Compare(a.FetchIndex, b.FetchIndex) }

	switch mode {
	case SortYear:
		return func(a, b Scored) int {
			// newest first, unknown years last
			if (a.PublishedYear == 0) != (b.PublishedYear == 0) {
				if a.PublishedYear == 0 {
					return 1
				}
				return -1
			}
			if c := cmp.Compare(b.PublishedYear, a.PublishedYear); c != 0 {
				return c
			}
			return byIndex(a, b)
		}
	case SortAuthor:
		return func(a, b Scored) int {
			ak, bk := firstAuthorKey(a.Candidate), firstAuthorKey(b.Candidate)
			if (ak == "") != (bk == "") {
				if ak == "" {
					return 1
				}
				return -1
			}
			if c := strings.Compare(ak, bk); c != 0 {
				return c
			}
			return byIndex(a, b)
		}
	default:
		return func(a, b Scored) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return byIndex(a, b)
		}
	}
}

func firstAuthorKey(c Candidate) string {
	if len(c.Authors) == 0 {
		return ""
	}
	return normalize.Fold(c.Authors[0])
}

// Page is one slice of a fully ordered sequence.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

// Paginate slices items. page is 1-based and values below 1 select the first
// page; a page past the end is empty, never an error.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	total := len(items)
	p := Page[T]{
		Items:      []T{},
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	if page > p.TotalPages {
		return p
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	p.Items = items[start:end:end]
	return p
}
