package booksearch

import (
	"regexp"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/genre"
	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
)

// PresentationRecord is the flat, render-ready form of a scored candidate.
// Optional fields are zero or empty when the source did not provide them.
type PresentationRecord struct {
	ExternalID    string   `json:"external_id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       string   `json:"authors"`
	AuthorList    []string `json:"author_list"`
	CoverURL      string   `json:"cover_url,omitempty"`
	Description   string   `json:"description,omitempty"`
	Year          string   `json:"year,omitempty"`
	PublishedYear int      `json:"published_year,omitempty"`
	PageCount     int      `json:"page_count,omitempty"`
	Language      string   `json:"language,omitempty"`
	LanguageName  string   `json:"language_name,omitempty"`
	ISBN          string   `json:"isbn,omitempty"`
	Genres        string   `json:"genres"`
	Completeness  float64  `json:"completeness"`
	Score         float64  `json:"score"`
}

// UnknownAuthor is shown when a record lists no authors.
const UnknownAuthor = "Unknown author"

// Present maps a scored candidate to a record. It copies every slice so the
// record shares no memory with the candidate.
func Present(s Scored) PresentationRecord {
	r := PresentationRecord{
		ExternalID:    s.ExternalID,
		Title:         s.Title,
		Subtitle:      s.Subtitle,
		AuthorList:    append([]string{}, s.Authors...),
		CoverURL:      s.CoverImageURL,
		Description:   htmlToMarkdown(s.Description),
		PublishedYear: s.PublishedYear,
		PageCount:     s.PageCount,
		Language:      s.Language,
		LanguageName:  normalize.LanguageName(s.Language),
		ISBN:          s.ISBN,
		Genres:        genre.Join(genre.Infer(s.Categories, s.Title, s.Description)),
		Completeness:  s.MetadataCompleteness,
		Score:         s.Score,
	}
	r.Authors = UnknownAuthor
	if len(r.AuthorList) > 0 {
		r.Authors = strings.Join(r.AuthorList, ", ")
	}
	if s.PublishedYear > 0 {
		r.Year = strconv.Itoa(s.PublishedYear)
	}
	return r
}

// PresentAll maps a page of scored candidates in order.
func PresentAll(items []Scored) []PresentationRecord {
	out := make([]PresentationRecord, len(items))
	for i, s := range items {
		out[i] = Present(s)
	}
	return out
}

// htmlTagPattern detects descriptions that carry markup.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// htmlToMarkdown converts marked-up descriptions; plain text passes through.
func htmlToMarkdown(s string) string {
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}
