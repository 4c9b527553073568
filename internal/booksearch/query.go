package booksearch

import (
	"strings"

	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
)

// maxQueryRunes bounds free text sent upstream.
const maxQueryRunes = 256

// Language is the language selector of a search.
type Language string

// Supported selectors. LanguageAny disables language filtering.
const (
	LanguageEN  Language = "en"
	LanguageUA  Language = "uk"
	LanguageAny Language = "any"
)

// ParseLanguage accepts codes, locales and names ("en", "EN", "ua", "ukr",
// "Ukrainian"). Empty input and "any" select LanguageAny.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "all", "*":
		return LanguageAny, nil
	case "ua":
		return LanguageUA, nil
	}
	switch normalize.LanguageCode(s) {
	case "en":
		return LanguageEN, nil
	case "uk":
		return LanguageUA, nil
	}
	return "", domainerrors.Validationf("unsupported language %q (use en, uk or any)", s)
}

// Tag is the ISO 639-1 code sent upstream, empty for LanguageAny.
func (l Language) Tag() string {
	if l == LanguageAny || l == "" {
		return ""
	}
	return string(l)
}

// Matches reports whether a record language tag passes this selector.
// Records without a tag always pass.
func (l Language) Matches(tag string) bool {
	if l.Tag() == "" || strings.TrimSpace(tag) == "" {
		return true
	}
	return normalize.LanguageCode(tag) == l.Tag()
}

// FieldHint tells the source which fields the text should match.
type FieldHint int

const (
	TitleOnly FieldHint = iota
	TitleAndAuthor
)

func (h FieldHint) String() string {
	if h == TitleAndAuthor {
		return "title_and_author"
	}
	return "title_only"
}

// SearchQuery is one structured query. Construct it through Normalize; the
// value is immutable afterwards.
type SearchQuery struct {
	rawText   string
	author    string
	language  Language
	fieldHint FieldHint
}

func (q SearchQuery) RawText() string      { return q.rawText }
func (q SearchQuery) Author() string       { return q.author }
func (q SearchQuery) Language() Language   { return q.language }
func (q SearchQuery) FieldHint() FieldHint { return q.fieldHint }

// Expression renders the query in the source's compound syntax.
//
//	TitleOnly:                    intitle:"dune messiah"
//	TitleAndAuthor, no author:    dune messiah
//	TitleAndAuthor, with author:  dune messiah inauthor:"frank herbert"
func (q SearchQuery) Expression() string {
	text := stripQuotes(q.rawText)
	if q.fieldHint == TitleOnly {
		return `intitle:"` + text + `"`
	}
	if q.author == "" {
		return text
	}
	return text + ` inauthor:"` + stripQuotes(q.author) + `"`
}

// Input is raw user input for a search.
type Input struct {
	Text     string
	Author   string
	Language Language
}

// Plan holds the primary query and lazily builds the fallback.
type Plan struct {
	primary SearchQuery
}

// Primary is the title-only query.
func (p Plan) Primary() SearchQuery { return p.primary }

// Fallback derives the title+author query from the primary one. The second
// return value is false when the fallback would repeat the primary request.
func (p Plan) Fallback() (SearchQuery, bool) {
	fb := p.primary
	fb.fieldHint = TitleAndAuthor
	return fb, fb.Expression() != p.primary.Expression()
}

// Normalize assembles the query plan. It never rewrites spelling; it only
// trims, collapses whitespace and rejects input with nothing to search for.
func Normalize(in Input) (Plan, error) {
	text := normalize.CleanText(in.Text)
	if stripQuotes(text) == "" {
		return Plan{}, domainerrors.Validation("search text is required")
	}
	if len([]rune(text)) > maxQueryRunes {
		return Plan{}, domainerrors.Validationf("search text must not exceed %d characters", maxQueryRunes)
	}
	author := normalize.CleanText(in.Author)
	if len([]rune(author)) > maxQueryRunes {
		return Plan{}, domainerrors.Validationf("author must not exceed %d characters", maxQueryRunes)
	}
	lang := in.Language
	if lang == "" {
		lang = LanguageAny
	}

	return Plan{primary: SearchQuery{
		rawText:   text,
		author:    author,
		language:  lang,
		fieldHint: TitleOnly,
	}}, nil
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, `"`, ""))
}
