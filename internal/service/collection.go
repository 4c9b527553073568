package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/id"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

// CreateCollectionRequest names a new collection.
type CreateCollectionRequest struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

// CollectionService manages a reader's collections and their membership.
type CollectionService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewCollectionService creates a new collection service.
func NewCollectionService(store store.Store, validator *validation.Validator, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		store:     store,
		validator: validator,
		logger:    logger,
	}
}

// Create adds a collection at the end of the owner's collection list.
func (s *CollectionService) Create(ctx context.Context, ownerID string, req CreateCollectionRequest) (*domain.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	collID, err := id.Generate(id.PrefixCollection)
	if err != nil {
		return nil, fmt.Errorf("generate collection ID: %w", err)
	}

	now := time.Now().UTC()
	coll := &domain.Collection{
		CreatedAt:   now,
		UpdatedAt:   now,
		ID:          collID,
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}

	if err := s.store.CreateCollection(ctx, coll); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	s.logger.Info("collection created",
		"collection_id", collID,
		"owner_id", ownerID,
		"name", coll.Name,
	)
	return coll, nil
}

// Get returns one of the owner's collections.
func (s *CollectionService) Get(ctx context.Context, ownerID, collectionID string) (*domain.Collection, error) {
	return s.store.GetCollection(ctx, ownerID, collectionID)
}

// List returns the owner's collections in manual order.
func (s *CollectionService) List(ctx context.Context, ownerID string) ([]*domain.Collection, error) {
	return s.store.ListCollections(ctx, ownerID)
}

// Delete removes a collection and its ordering. The books stay in the library.
func (s *CollectionService) Delete(ctx context.Context, ownerID, collectionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.DeleteCollection(ctx, ownerID, collectionID); err != nil {
		return err
	}

	s.logger.Info("collection deleted", "collection_id", collectionID, "owner_id", ownerID)
	return nil
}

// AddBook appends a library book to the collection. Adding a book twice
// fails with store.ErrAlreadyExists.
func (s *CollectionService) AddBook(ctx context.Context, ownerID, collectionID, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.AddBookToCollection(ctx, ownerID, collectionID, bookID); err != nil {
		return err
	}

	s.logger.Info("book added to collection",
		"collection_id", collectionID,
		"book_id", bookID,
		"owner_id", ownerID,
	)
	return nil
}

// RemoveBook drops a book from the collection. Other books keep their positions.
func (s *CollectionService) RemoveBook(ctx context.Context, ownerID, collectionID, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.RemoveBookFromCollection(ctx, ownerID, collectionID, bookID); err != nil {
		return err
	}

	s.logger.Info("book removed from collection",
		"collection_id", collectionID,
		"book_id", bookID,
		"owner_id", ownerID,
	)
	return nil
}

// Books returns the collection's books in manual order.
func (s *CollectionService) Books(ctx context.Context, ownerID, collectionID string) ([]*domain.LibraryBook, error) {
	return s.store.ListCollectionBooks(ctx, ownerID, collectionID)
}
