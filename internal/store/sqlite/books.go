package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `b.id, b.owner_id, b.created_at, b.updated_at, b.title, b.subtitle,
	b.authors, b.cover_url, b.description, b.language, b.isbn, b.genres,
	b.status, b.published_year, b.page_count`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.LibraryBook.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.LibraryBook, error) {
	var b domain.LibraryBook

	var (
		createdAt   string
		updatedAt   string
		subtitle    sql.NullString
		authors     string
		coverURL    sql.NullString
		description sql.NullString
		language    sql.NullString
		isbn        sql.NullString
		genres      sql.NullString
		status      string
		year        sql.NullInt64
		pageCount   sql.NullInt64
	)

	err := scanner.Scan(
		&b.ID,
		&b.OwnerID,
		&createdAt,
		&updatedAt,
		&b.Title,
		&subtitle,
		&authors,
		&coverURL,
		&description,
		&language,
		&isbn,
		&genres,
		&status,
		&year,
		&pageCount,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &b.Authors); err != nil {
		return nil, fmt.Errorf("decode authors of %s: %w", b.ID, err)
	}

	b.Subtitle = subtitle.String
	b.CoverURL = coverURL.String
	b.Description = description.String
	b.Language = language.String
	b.ISBN = isbn.String
	b.Genres = genres.String
	b.Status = domain.ReadStatus(status)
	b.PublishedYear = int(year.Int64)
	b.PageCount = int(pageCount.Int64)

	return &b, nil
}

func collectBooks(rows *sql.Rows) ([]*domain.LibraryBook, error) {
	defer rows.Close()
	books := []*domain.LibraryBook{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CreateBook inserts a library book and appends it to the owner's library.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateBook(ctx context.Context, book *domain.LibraryBook) error {
	authors, err := json.Marshal(nonNil(book.Authors))
	if err != nil {
		return fmt.Errorf("encode authors: %w", err)
	}
	if book.Status == "" {
		book.Status = domain.StatusToRead
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO library_books (
				id, owner_id, created_at, updated_at, title, subtitle, authors, cover_url,
				description, language, isbn, genres, status, published_year, page_count
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			book.ID,
			book.OwnerID,
			formatTime(book.CreatedAt),
			formatTime(book.UpdatedAt),
			book.Title,
			nullString(book.Subtitle),
			string(authors),
			nullString(book.CoverURL),
			nullString(book.Description),
			nullString(book.Language),
			nullString(book.ISBN),
			nullString(book.Genres),
			string(book.Status),
			nullInt64(int64(book.PublishedYear)),
			nullInt64(int64(book.PageCount)),
		)
		if err != nil {
			return err
		}
		_, err = s.appendItem(ctx, tx, domain.LibraryScope(book.OwnerID), book.OwnerID, book.ID)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.searchIndexer.IndexLibraryBook(ctx, book); err != nil {
		s.logger.Warn("failed to index library book", "book_id", book.ID, "error", err)
	}
	return nil
}

// GetBook retrieves one of the owner's books.
// Returns store.ErrNotFound if it does not exist or belongs to someone else.
func (s *Store) GetBook(ctx context.Context, ownerID, id string) (*domain.LibraryBook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM library_books b WHERE b.id = ? AND b.owner_id = ?`, id, ownerID)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return b, err
}

// GetBooksByIDs returns the owner's books among ids, in the order of ids.
// Unknown IDs are skipped.
func (s *Store) GetBooksByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.LibraryBook, error) {
	if len(ids) == 0 {
		return []*domain.LibraryBook{}, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM library_books b WHERE b.owner_id = ? AND b.id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	found, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.LibraryBook, len(found))
	for _, b := range found {
		byID[b.ID] = b
	}
	out := make([]*domain.LibraryBook, 0, len(found))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
			delete(byID, id)
		}
	}
	return out, nil
}

// UpdateBookStatus sets the read status and returns the updated book.
func (s *Store) UpdateBookStatus(ctx context.Context, ownerID, id string, status domain.ReadStatus, at time.Time) (*domain.LibraryBook, error) {
	if !status.Valid() {
		return nil, store.ErrInvalidInput.WithMessage(fmt.Sprintf("invalid read status %q", status))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE library_books SET status = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		string(status), formatTime(at), id, ownerID)
	if err != nil {
		return nil, mapWriteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}

	book, err := s.GetBook(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.searchIndexer.IndexLibraryBook(ctx, book); err != nil {
		s.logger.Warn("failed to reindex library book", "book_id", id, "error", err)
	}
	return book, nil
}

// DeleteBook removes a book together with its rows in the library scope and
// in every collection scope.
func (s *Store) DeleteBook(ctx context.Context, ownerID, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM library_books WHERE id = ? AND owner_id = ?`, id, ownerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM ordered_items
			WHERE item_id = ? AND (scope_key = ? OR scope_key LIKE 'collection:%')`,
			id, domain.LibraryScope(ownerID).Key())
		return err
	})
	if err != nil {
		return err
	}

	if err := s.searchIndexer.DeleteLibraryBook(ctx, id); err != nil {
		s.logger.Warn("failed to remove library book from index", "book_id", id, "error", err)
	}
	return nil
}

// ListBooks returns the owner's library in manual order.
func (s *Store) ListBooks(ctx context.Context, ownerID string) ([]*domain.LibraryBook, error) {
	return s.listScopeBooks(ctx, ownerID, domain.LibraryScope(ownerID))
}

// ListAllBooks returns every book of every owner, oldest first. It feeds
// full index rebuilds.
func (s *Store) ListAllBooks(ctx context.Context) ([]*domain.LibraryBook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM library_books b ORDER BY b.created_at, b.id`)
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

func (s *Store) listScopeBooks(ctx context.Context, ownerID string, scope domain.Scope) ([]*domain.LibraryBook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM ordered_items o
		JOIN library_books b ON b.id = o.item_id
		WHERE o.scope_key = ? AND b.owner_id = ?
		ORDER BY o.position`,
		scope.Key(), ownerID)
	if err != nil {
		return nil, err
	}
	return collectBooks(rows)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
