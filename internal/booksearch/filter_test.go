package booksearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
)

func records(vols ...googlebooks.Volume) []Record {
	out := make([]Record, len(vols))
	for i, v := range vols {
		out[i] = Record{Volume: v, FetchIndex: i}
	}
	return out
}

func TestFilter_DropsUnusableRecords(t *testing.T) {
	in := records(
		googlebooks.Volume{ID: "ok", Title: "Dune", Language: "en"},
		googlebooks.Volume{ID: "", Title: "No identifier"},
		googlebooks.Volume{ID: "blank", Title: " \t "},
		googlebooks.Volume{ID: "uk", Title: "Дюна", Language: "uk"},
		googlebooks.Volume{ID: "untagged", Title: "Dune"},
	)

	got := Filter(in, LanguageEN, 0)

	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ExternalID
	}
	assert.Equal(t, []string{"ok", "untagged"}, ids)
	assert.Equal(t, 4, got[1].FetchIndex, "fetch position survives filtering")
}

func TestFilter_AnyLanguageBypassesLanguageCheck(t *testing.T) {
	in := records(
		googlebooks.Volume{ID: "en", Title: "Dune", Language: "en"},
		googlebooks.Volume{ID: "uk", Title: "Дюна", Language: "uk"},
	)
	assert.Len(t, Filter(in, LanguageAny, 0), 2)
}

func TestFilter_KeepsNearDuplicateEditions(t *testing.T) {
	in := records(
		googlebooks.Volume{ID: "dune-hc", Title: "Dune", Authors: []string{"Frank Herbert"}, Language: "en"},
		googlebooks.Volume{ID: "dune-pb", Title: "Dune", Authors: []string{"Frank Herbert"}, Language: "en"},
		googlebooks.Volume{ID: "dune-40th", Title: "Dune ", Authors: []string{"Frank Herbert"}, Language: "en"},
	)

	got := Filter(in, LanguageEN, 0)
	require.Len(t, got, 3)
	assert.Equal(t, "dune-hc", got[0].ExternalID)
	assert.Equal(t, "dune-pb", got[1].ExternalID)
	assert.Equal(t, "dune-40th", got[2].ExternalID)
}

func TestFilter_MinCompleteness(t *testing.T) {
	in := records(
		googlebooks.Volume{ID: "bare", Title: "Dune"},
		googlebooks.Volume{ID: "rich", Title: "Dune", Description: "Arrakis", PageCount: 412, PublishedDate: "1965", Thumbnail: "http://x/t.jpg"},
	)

	got := Filter(in, LanguageAny, 0.5)
	require.Len(t, got, 1)
	assert.Equal(t, "rich", got[0].ExternalID)
}

func TestToCandidate(t *testing.T) {
	c := toCandidate(Record{FetchIndex: 7, Volume: googlebooks.Volume{
		ID:            " dune ",
		Title:         "Dune\x00",
		Authors:       []string{"Frank Herbert", "  "},
		Language:      "EN",
		PublishedDate: "1965-08-01",
		PageCount:     412,
		Thumbnail:     "http://books.example/t.jpg",
		Categories:    []string{"Fiction", ""},
		IndustryIdentifiers: []googlebooks.IndustryIdentifier{
			{Type: "ISBN_10", Identifier: "0441013597"},
		},
	}})

	assert.Equal(t, "dune", c.ExternalID)
	assert.Equal(t, "Dune", c.Title)
	assert.Equal(t, []string{"Frank Herbert"}, c.Authors)
	assert.Equal(t, "en", c.Language)
	assert.Equal(t, 1965, c.PublishedYear)
	assert.Equal(t, "https://books.example/t.jpg", c.CoverImageURL)
	assert.Equal(t, "0441013597", c.ISBN)
	assert.Equal(t, []string{"Fiction"}, c.Categories)
	assert.Equal(t, 0.75, c.MetadataCompleteness, "no description")
	assert.Equal(t, 7, c.FetchIndex)
}

func TestParseYear(t *testing.T) {
	assert.Equal(t, 1965, parseYear("1965"))
	assert.Equal(t, 2003, parseYear("2003-05"))
	assert.Zero(t, parseYear("196"))
	assert.Zero(t, parseYear("circa 1900"))
	assert.Zero(t, parseYear(""))
}
