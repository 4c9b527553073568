package booksearch

import (
	"strconv"
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
)

// completenessFields is the number of optional fields counted by MetadataCompleteness.
const completenessFields = 4

// Candidate is a validated search result. ExternalID and Title are always
// set; the remaining fields are optional and zero when absent.
// Near-identical Candidates with different ExternalIDs are never merged.
type Candidate struct {
	ExternalID    string
	Title         string
	Subtitle      string
	Authors       []string
	Language      string
	Description   string
	CoverImageURL string
	PublishedYear int
	PageCount     int
	ISBN          string
	Categories    []string

	// MetadataCompleteness is the share of description, cover, page count
	// and published year that are present, in steps of 0.25.
	MetadataCompleteness float64

	// FetchIndex is the record's position in the merged fetch order.
	FetchIndex int
}

// Usable reports whether a raw record would survive the filter's essential
// checks for lang. The fetcher uses it to decide whether to fall back.
func Usable(v googlebooks.Volume, lang Language) bool {
	return strings.TrimSpace(v.ID) != "" &&
		normalize.CleanText(v.Title) != "" &&
		lang.Matches(v.Language)
}

// Filter turns raw records into Candidates. A record is dropped when it has
// no identifier, a blank title, a language tag that contradicts lang, or a
// completeness below minCompleteness. Editions of the same work are kept.
func Filter(records []Record, lang Language, minCompleteness float64) []Candidate {
	out := make([]Candidate, 0, len(records))
	for _, r := range records {
		if !Usable(r.Volume, lang) {
			continue
		}
		c := toCandidate(r)
		if c.MetadataCompleteness < minCompleteness {
			continue
		}
		out = append(out, c)
	}
	return out
}

func toCandidate(r Record) Candidate {
	c := Candidate{
		ExternalID:    strings.TrimSpace(r.ID),
		Title:         normalize.CleanText(r.Title),
		Subtitle:      normalize.CleanText(r.Subtitle),
		Language:      normalize.LanguageCode(r.Language),
		Description:   strings.TrimSpace(r.Description),
		CoverImageURL: secureURL(r.Thumbnail),
		PublishedYear: parseYear(r.PublishedDate),
		PageCount:     r.PageCount,
		ISBN:          r.ISBN(),
		FetchIndex:    r.FetchIndex,
	}
	for _, a := range r.Authors {
		if a = normalize.CleanText(a); a != "" {
			c.Authors = append(c.Authors, a)
		}
	}
	for _, cat := range r.Categories {
		if cat = normalize.CleanText(cat); cat != "" {
			c.Categories = append(c.Categories, cat)
		}
	}
	c.MetadataCompleteness = completeness(c)
	return c
}

func completeness(c Candidate) float64 {
	present := 0
	if c.Description != "" {
		present++
	}
	if c.CoverImageURL != "" {
		present++
	}
	if c.PageCount > 0 {
		present++
	}
	if c.PublishedYear > 0 {
		present++
	}
	return float64(present) / completenessFields
}

// parseYear reads the leading four digits of dates like "1965", "1965-08" or "1965-08-01".
func parseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0
	}
	return year
}

// secureURL upgrades the plain-http thumbnails the source tends to return.
func secureURL(u string) string {
	u = strings.TrimSpace(u)
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}
	return u
}
