package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// collectionColumns is the ordered list of columns selected in collection queries.
// Must match the scan order in scanCollection.
const collectionColumns = `c.id, c.owner_id, c.created_at, c.updated_at, c.name, c.description`

// scanCollection scans a sql.Row (or sql.Rows via its Scan method) into a domain.Collection.
func scanCollection(scanner interface{ Scan(dest ...any) error }) (*domain.Collection, error) {
	var c domain.Collection

	var (
		createdAt   string
		updatedAt   string
		description sql.NullString
	)

	err := scanner.Scan(&c.ID, &c.OwnerID, &createdAt, &updatedAt, &c.Name, &description)
	if err != nil {
		return nil, err
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	c.Description = description.String

	return &c, nil
}

// CreateCollection inserts a collection and appends it to the owner's
// collection list. Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateCollection(ctx context.Context, coll *domain.Collection) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO collections (id, owner_id, created_at, updated_at, name, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			coll.ID,
			coll.OwnerID,
			formatTime(coll.CreatedAt),
			formatTime(coll.UpdatedAt),
			coll.Name,
			nullString(coll.Description),
		)
		if err != nil {
			return err
		}
		_, err = s.appendItem(ctx, tx, domain.CollectionsScope(coll.OwnerID), coll.OwnerID, coll.ID)
		return err
	})
}

// GetCollection retrieves one of the owner's collections.
// Returns store.ErrNotFound if the collection does not exist or belongs to someone else.
func (s *Store) GetCollection(ctx context.Context, ownerID, id string) (*domain.Collection, error) {
	return getCollection(ctx, s.db, ownerID, id)
}

func getCollection(ctx context.Context, q queryer, ownerID, id string) (*domain.Collection, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections c WHERE c.id = ? AND c.owner_id = ?`, id, ownerID)

	coll, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return coll, err
}

// DeleteCollection removes a collection, every row of its scope and its row
// in the owner's collection list. The books themselves stay in the library.
func (s *Store) DeleteCollection(ctx context.Context, ownerID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM collections WHERE id = ? AND owner_id = ?`, id, ownerID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM ordered_items WHERE scope_key = ?`, domain.CollectionScope(id).Key()); err != nil {
			return err
		}
		_, err = removeItem(ctx, tx, domain.CollectionsScope(ownerID), id)
		return err
	})
}

// ListCollections returns the owner's collections in manual order.
func (s *Store) ListCollections(ctx context.Context, ownerID string) ([]*domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collectionColumns+`
		FROM ordered_items o
		JOIN collections c ON c.id = o.item_id
		WHERE o.scope_key = ? AND c.owner_id = ?
		ORDER BY o.position`,
		domain.CollectionsScope(ownerID).Key(), ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	colls := []*domain.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		colls = append(colls, c)
	}
	return colls, rows.Err()
}

// AddBookToCollection appends a library book to the collection.
// Returns store.ErrNotFound when either side is not the owner's and
// store.ErrAlreadyExists when the book is already a member.
func (s *Store) AddBookToCollection(ctx context.Context, ownerID, collectionID, bookID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCollection(ctx, tx, ownerID, collectionID); err != nil {
			return err
		}
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM library_books WHERE id = ? AND owner_id = ?`, bookID, ownerID).Scan(&exists)
		if err == sql.ErrNoRows {
			return store.ErrNotFound.WithMessage("book not found")
		}
		if err != nil {
			return err
		}

		if _, err := s.appendItem(ctx, tx, domain.CollectionScope(collectionID), ownerID, bookID); err != nil {
			return err
		}
		return touchCollection(ctx, tx, collectionID, s.now())
	})
}

// RemoveBookFromCollection deletes the book's row from the collection scope.
// Neighbouring positions are left untouched.
func (s *Store) RemoveBookFromCollection(ctx context.Context, ownerID, collectionID, bookID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getCollection(ctx, tx, ownerID, collectionID); err != nil {
			return err
		}
		removed, err := removeItem(ctx, tx, domain.CollectionScope(collectionID), bookID)
		if err != nil {
			return err
		}
		if !removed {
			return store.ErrNotFound.WithMessage("book is not in this collection")
		}
		return touchCollection(ctx, tx, collectionID, s.now())
	})
}

// ListCollectionBooks returns the collection's books in manual order.
func (s *Store) ListCollectionBooks(ctx context.Context, ownerID, collectionID string) ([]*domain.LibraryBook, error) {
	if _, err := s.GetCollection(ctx, ownerID, collectionID); err != nil {
		return nil, err
	}
	return s.listScopeBooks(ctx, ownerID, domain.CollectionScope(collectionID))
}

func touchCollection(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE collections SET updated_at = ? WHERE id = ?`, formatTime(at), id)
	return err
}
