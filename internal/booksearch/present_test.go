package booksearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresent(t *testing.T) {
	s := Scored{Score: 17.5, Candidate: Candidate{
		ExternalID:           "dune-1965",
		Title:                "Dune",
		Authors:              []string{"Frank Herbert", "Brian Herbert"},
		Language:             "en",
		Description:          "<p>Set on the desert planet <b>Arrakis</b>, an epic adventure.</p>",
		CoverImageURL:        "https://books.example/t.jpg",
		PublishedYear:        1965,
		PageCount:            412,
		ISBN:                 "9780441013593",
		Categories:           []string{"Fiction"},
		MetadataCompleteness: 1,
	}}

	r := Present(s)

	assert.Equal(t, "dune-1965", r.ExternalID)
	assert.Equal(t, "Frank Herbert, Brian Herbert", r.Authors)
	assert.Equal(t, "1965", r.Year)
	assert.Equal(t, "English", r.LanguageName)
	assert.Equal(t, "Set on the desert planet **Arrakis**, an epic adventure.", r.Description)
	assert.Equal(t, "Adventure, Epic, Fiction", r.Genres)
	assert.Equal(t, 17.5, r.Score)

	s.Authors[0] = "changed"
	assert.Equal(t, "Frank Herbert", r.AuthorList[0], "record owns its slices")
}

func TestPresent_MissingOptionalFields(t *testing.T) {
	r := Present(Scored{Candidate: Candidate{ExternalID: "x", Title: "Untitled Draft"}})

	assert.Equal(t, UnknownAuthor, r.Authors)
	assert.NotNil(t, r.AuthorList)
	assert.Empty(t, r.Year)
	assert.Empty(t, r.Description)
	assert.Equal(t, "Unknown", r.Genres)
	assert.Empty(t, r.LanguageName)
}

func TestHTMLToMarkdown_PlainTextUnchanged(t *testing.T) {
	in := "A plain description with 3 < 4 and no markup."
	assert.Equal(t, in, htmlToMarkdown(in))
}
