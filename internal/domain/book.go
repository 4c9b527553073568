// Package domain contains the core entities of a Bookshelf library: books a
// reader has committed from search, their collections, and the ordered
// scopes that hold both.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReadStatus tracks a reader's progress with a book.
type ReadStatus string

// Read statuses.
const (
	StatusToRead  ReadStatus = "to-read"
	StatusReading ReadStatus = "reading"
	StatusRead    ReadStatus = "read"
)

// ParseReadStatus accepts the status names and a few common spellings.
func ParseReadStatus(s string) (ReadStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "to-read", "to_read", "toread", "want":
		return StatusToRead, nil
	case "reading", "in-progress":
		return StatusReading, nil
	case "read", "done", "finished":
		return StatusRead, nil
	}
	return "", fmt.Errorf("unknown read status %q", s)
}

// Valid reports whether s is one of the defined statuses.
func (s ReadStatus) Valid() bool {
	switch s {
	case StatusToRead, StatusReading, StatusRead:
		return true
	}
	return false
}

// LibraryBook is a reader's own copy of a book. It is created from a search
// record and keeps no link to the catalog it came from, so later catalog
// changes never reach it.
type LibraryBook struct {
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Title         string     `json:"title"`
	Subtitle      string     `json:"subtitle,omitempty"`
	Authors       []string   `json:"authors"`
	CoverURL      string     `json:"cover_url,omitempty"`
	Description   string     `json:"description,omitempty"`
	Language      string     `json:"language,omitempty"`
	ISBN          string     `json:"isbn,omitempty"`
	Genres        string     `json:"genres,omitempty"`
	Status        ReadStatus `json:"status"`
	PublishedYear int        `json:"published_year,omitempty"`
	PageCount     int        `json:"page_count,omitempty"`
}

// AuthorLine joins authors for display.
func (b *LibraryBook) AuthorLine() string {
	return strings.Join(b.Authors, ", ")
}

// Clone returns a deep copy.
func (b *LibraryBook) Clone() *LibraryBook {
	c := *b
	c.Authors = append([]string(nil), b.Authors...)
	return &c
}
