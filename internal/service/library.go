package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/genre"
	"github.com/bookshelfapp/bookshelf-server/internal/id"
	"github.com/bookshelfapp/bookshelf-server/internal/normalize"
	"github.com/bookshelfapp/bookshelf-server/internal/search"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

// CommitRequest is a search record submitted for the library. Its shape
// matches booksearch.PresentationRecord so a client can post a record back
// unchanged. external_id is accepted and discarded.
type CommitRequest struct {
	ExternalID    string   `json:"external_id,omitempty"`
	Title         string   `json:"title" validate:"notblank,max=500"`
	Subtitle      string   `json:"subtitle,omitempty" validate:"max=500"`
	Authors       string   `json:"authors,omitempty" validate:"max=2000"`
	AuthorList    []string `json:"author_list,omitempty" validate:"max=50,dive,max=200"`
	CoverURL      string   `json:"cover_url,omitempty" validate:"omitempty,url,max=2000"`
	Description   string   `json:"description,omitempty" validate:"max=50000"`
	PublishedYear int      `json:"published_year,omitempty" validate:"gte=0,lte=9999"`
	PageCount     int      `json:"page_count,omitempty" validate:"gte=0"`
	Language      string   `json:"language,omitempty" validate:"max=32"`
	ISBN          string   `json:"isbn,omitempty" validate:"max=32"`
	Genres        string   `json:"genres,omitempty" validate:"max=1000"`
	Status        string   `json:"status,omitempty" validate:"max=32"`
}

// CommitRequestFromRecord builds a request from a presented search record.
func CommitRequestFromRecord(r booksearch.PresentationRecord) CommitRequest {
	return CommitRequest{
		ExternalID:    r.ExternalID,
		Title:         r.Title,
		Subtitle:      r.Subtitle,
		Authors:       r.Authors,
		AuthorList:    slices.Clone(r.AuthorList),
		CoverURL:      r.CoverURL,
		Description:   r.Description,
		PublishedYear: r.PublishedYear,
		PageCount:     r.PageCount,
		Language:      r.Language,
		ISBN:          r.ISBN,
		Genres:        r.Genres,
	}
}

// authors prefers the list and falls back to splitting the display line.
// The unknown-author placeholder is never stored.
func (r CommitRequest) authors() []string {
	src := r.AuthorList
	if len(src) == 0 && r.Authors != "" && r.Authors != booksearch.UnknownAuthor {
		src = strings.Split(r.Authors, ",")
	}
	out := make([]string, 0, len(src))
	for _, a := range src {
		if a = normalize.CleanText(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// LibrarySearchRequest is a full-text search within one library.
type LibrarySearchRequest struct {
	Query  string `json:"q" validate:"max=256"`
	Status string `json:"status" validate:"omitempty,oneof=to-read reading read"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
	Offset int    `json:"offset" validate:"gte=0"`
}

// LibrarySearchResult holds matching books, best match first.
type LibrarySearchResult struct {
	Books []*domain.LibraryBook `json:"books"`
	Total int                   `json:"total"`
}

// LibraryService manages a reader's committed books.
type LibraryService struct {
	store     store.Store
	index     *search.LibraryIndex
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewLibraryService creates a new library service.
func NewLibraryService(store store.Store, index *search.LibraryIndex, validator *validation.Validator, logger *slog.Logger) *LibraryService {
	return &LibraryService{
		store:     store,
		index:     index,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Commit copies a search record into the owner's library and appends it to
// the end of the library order. The stored book keeps no reference to the
// catalog record it came from.
func (s *LibraryService) Commit(ctx context.Context, ownerID string, req CommitRequest) (*domain.LibraryBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	status, err := domain.ParseReadStatus(req.Status)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	bookID, err := id.Generate(id.PrefixLibraryBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	genres := req.Genres
	if genres == genre.Unknown {
		genres = ""
	}

	now := s.now().UTC()
	book := &domain.LibraryBook{
		CreatedAt:     now,
		UpdatedAt:     now,
		ID:            bookID,
		OwnerID:       ownerID,
		Title:         normalize.CleanText(req.Title),
		Subtitle:      normalize.CleanText(req.Subtitle),
		Authors:       req.authors(),
		CoverURL:      strings.TrimSpace(req.CoverURL),
		Description:   strings.TrimSpace(req.Description),
		Language:      normalize.LanguageCode(req.Language),
		ISBN:          strings.TrimSpace(req.ISBN),
		Genres:        genres,
		Status:        status,
		PublishedYear: req.PublishedYear,
		PageCount:     req.PageCount,
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("create library book: %w", err)
	}

	s.logger.Info("book committed to library",
		"book_id", book.ID,
		"owner_id", ownerID,
		"title", book.Title,
	)
	return book, nil
}

// Get returns one of the owner's books.
func (s *LibraryService) Get(ctx context.Context, ownerID, bookID string) (*domain.LibraryBook, error) {
	return s.store.GetBook(ctx, ownerID, bookID)
}

// List returns the owner's library in manual order.
func (s *LibraryService) List(ctx context.Context, ownerID string) ([]*domain.LibraryBook, error) {
	return s.store.ListBooks(ctx, ownerID)
}

// UpdateStatus changes a book's read status.
func (s *LibraryService) UpdateStatus(ctx context.Context, ownerID, bookID, status string) (*domain.LibraryBook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseReadStatus(status)
	if err != nil || strings.TrimSpace(status) == "" {
		return nil, domainerrors.Validationf("unknown read status %q (use to-read, reading or read)", status)
	}

	book, err := s.store.UpdateBookStatus(ctx, ownerID, bookID, parsed, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info("read status updated",
		"book_id", bookID,
		"owner_id", ownerID,
		"status", parsed,
	)
	return book, nil
}

// Delete removes a book from the library and from every collection.
func (s *LibraryService) Delete(ctx context.Context, ownerID, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.DeleteBook(ctx, ownerID, bookID); err != nil {
		return err
	}

	s.logger.Info("book removed from library", "book_id", bookID, "owner_id", ownerID)
	return nil
}

// Search finds books in the owner's library. Hits whose book no longer
// exists are dropped from the index.
func (s *LibraryService) Search(ctx context.Context, ownerID string, req LibrarySearchRequest) (*LibrarySearchResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	res, err := s.index.Search(ctx, search.Query{
		OwnerID: ownerID,
		Text:    req.Query,
		Status:  domain.ReadStatus(req.Status),
		Limit:   req.Limit,
		Offset:  req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("search library: %w", err)
	}

	ids := res.IDs()
	books, err := s.store.GetBooksByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("load search hits: %w", err)
	}

	total := int(res.Total)
	if len(books) < len(ids) {
		found := make(map[string]bool, len(books))
		for _, b := range books {
			found[b.ID] = true
		}
		var stale []string
		for _, hitID := range ids {
			if !found[hitID] {
				stale = append(stale, hitID)
			}
		}
		total -= len(stale)
		if err := s.index.DeleteLibraryBooks(ctx, stale); err != nil {
			s.logger.Warn("failed to drop stale index entries", "count", len(stale), "error", err)
		} else {
			s.logger.Info("dropped stale index entries", "count", len(stale), "owner_id", ownerID)
		}
	}

	return &LibrarySearchResult{Books: books, Total: max(total, len(books))}, nil
}

// Reindex rebuilds the library index from the database.
func (s *LibraryService) Reindex(ctx context.Context) error {
	books, err := s.store.ListAllBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	if err := s.index.IndexLibraryBooks(ctx, books); err != nil {
		return fmt.Errorf("index books: %w", err)
	}

	s.logger.Info("library index rebuilt", "books", len(books))
	return nil
}
