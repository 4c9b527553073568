// Package store defines the persistence interface for Bookshelf and the
// badger-backed response cache for the external catalog.
package store

import (
	"context"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/ordering"
)

// Store defines every persistence operation. Mutations of ordered scopes run
// in one transaction each; a failed write leaves the scope untouched.
type Store interface {
	// Lifecycle
	Close() error
	SetSearchIndexer(indexer SearchIndexer)

	// Library books. CreateBook appends the book to its owner's library scope.
	CreateBook(ctx context.Context, book *domain.LibraryBook) error
	GetBook(ctx context.Context, ownerID, id string) (*domain.LibraryBook, error)
	UpdateBookStatus(ctx context.Context, ownerID, id string, status domain.ReadStatus, at time.Time) (*domain.LibraryBook, error)
	DeleteBook(ctx context.Context, ownerID, id string) error
	ListBooks(ctx context.Context, ownerID string) ([]*domain.LibraryBook, error)
	GetBooksByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.LibraryBook, error)
	ListAllBooks(ctx context.Context) ([]*domain.LibraryBook, error)

	// Collections. CreateCollection appends to the owner's collection list.
	CreateCollection(ctx context.Context, coll *domain.Collection) error
	GetCollection(ctx context.Context, ownerID, id string) (*domain.Collection, error)
	DeleteCollection(ctx context.Context, ownerID, id string) error
	ListCollections(ctx context.Context, ownerID string) ([]*domain.Collection, error)
	AddBookToCollection(ctx context.Context, ownerID, collectionID, bookID string) error
	RemoveBookFromCollection(ctx context.Context, ownerID, collectionID, bookID string) error
	ListCollectionBooks(ctx context.Context, ownerID, collectionID string) ([]*domain.LibraryBook, error)

	// Ordering
	ListOrder(ctx context.Context, scope domain.Scope) ([]ordering.Item, error)
	MoveItem(ctx context.Context, scope domain.Scope, itemID string, targetIndex int) (*ordering.Move, error)
}

// SearchIndexer keeps the library search index in sync with the store.
// Index failures are logged by the store and never fail the write.
type SearchIndexer interface {
	IndexLibraryBook(ctx context.Context, book *domain.LibraryBook) error
	DeleteLibraryBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexLibraryBook is a no-op.
func (NoopSearchIndexer) IndexLibraryBook(context.Context, *domain.LibraryBook) error { return nil }

// DeleteLibraryBook is a no-op.
func (NoopSearchIndexer) DeleteLibraryBook(context.Context, string) error { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer.
func NewNoopSearchIndexer() SearchIndexer {
	return NoopSearchIndexer{}
}
