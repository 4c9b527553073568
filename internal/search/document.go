// Package search provides full-text search over a reader's own library using
// Bleve. Every document carries its owner, and every query is restricted to
// one owner.
package search

import (
	"strings"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
)

// LibraryDocument is the indexed form of a domain.LibraryBook.
type LibraryDocument struct {
	ID            string
	OwnerID       string
	Title         string
	Subtitle      string
	Authors       string // joined for matching
	Description   string
	Genres        string
	Status        string
	PublishedYear int
	UpdatedAt     int64 // unix millis
}

// NewLibraryDocument builds the document for a book.
func NewLibraryDocument(b *domain.LibraryBook) *LibraryDocument {
	return &LibraryDocument{
		ID:            b.ID,
		OwnerID:       b.OwnerID,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Authors:       strings.Join(b.Authors, ", "),
		Description:   b.Description,
		Genres:        b.Genres,
		Status:        string(b.Status),
		PublishedYear: b.PublishedYear,
		UpdatedAt:     b.UpdatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map keyed by the mapping's field names.
// Bleve would otherwise index the capitalized Go field names.
func (d *LibraryDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"owner_id":   d.OwnerID,
		"title":      d.Title,
		"status":     d.Status,
		"updated_at": d.UpdatedAt,
	}
	if d.Subtitle != "" {
		m["subtitle"] = d.Subtitle
	}
	if d.Authors != "" {
		m["authors"] = d.Authors
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Genres != "" {
		m["genres"] = d.Genres
	}
	if d.PublishedYear > 0 {
		m["published_year"] = d.PublishedYear
	}
	return m
}
