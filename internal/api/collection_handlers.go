package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/service"
)

func (s *Server) registerCollectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections",
		Summary:     "List collections",
		Description: "Returns the caller's collections in manual order",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCollection",
		Method:        http.MethodPost,
		Path:          "/api/v1/collections",
		Summary:       "Create collection",
		Description:   "Creates a collection at the end of the caller's collection list",
		Tags:          []string{"Collections"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"user": {}}},
	}, s.handleCreateCollection)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteCollection",
		Method:        http.MethodDelete,
		Path:          "/api/v1/collections/{id}",
		Summary:       "Delete collection",
		Description:   "Deletes a collection; its books stay in the library",
		Tags:          []string{"Collections"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"user": {}}},
	}, s.handleDeleteCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "listCollectionBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/collections/{id}/books",
		Summary:     "List collection books",
		Description: "Returns the books in a collection in manual order",
		Tags:        []string{"Collections"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleListCollectionBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addBookToCollection",
		Method:        http.MethodPost,
		Path:          "/api/v1/collections/{id}/books",
		Summary:       "Add book to collection",
		Description:   "Appends a library book to the end of the collection",
		Tags:          []string{"Collections"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"user": {}}},
	}, s.handleAddBookToCollection)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeBookFromCollection",
		Method:        http.MethodDelete,
		Path:          "/api/v1/collections/{id}/books/{bookId}",
		Summary:       "Remove book from collection",
		Tags:          []string{"Collections"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"user": {}}},
	}, s.handleRemoveBookFromCollection)
}

// === DTOs ===

// CollectionListResponse contains an ordered list of collections.
type CollectionListResponse struct {
	Collections []*domain.Collection `json:"collections" doc:"Collections in manual order"`
}

// CollectionListOutput wraps the collection list for Huma.
type CollectionListOutput struct {
	Body CollectionListResponse
}

// CreateCollectionInput wraps the create request for Huma.
type CreateCollectionInput struct {
	Body service.CreateCollectionRequest
}

// CollectionOutput wraps a single collection for Huma.
type CollectionOutput struct {
	Body *domain.Collection
}

// CollectionIDInput identifies a collection.
type CollectionIDInput struct {
	ID string `path:"id" doc:"Collection ID"`
}

// AddBookRequest is the request body for adding a book to a collection.
type AddBookRequest struct {
	BookID string `json:"book_id" doc:"Library book ID"`
}

// AddBookInput wraps the add-book request for Huma.
type AddBookInput struct {
	ID   string `path:"id" doc:"Collection ID"`
	Body AddBookRequest
}

// CollectionBookInput identifies a book within a collection.
type CollectionBookInput struct {
	ID     string `path:"id" doc:"Collection ID"`
	BookID string `path:"bookId" doc:"Library book ID"`
}

// === Handlers ===

func (s *Server) handleListCollections(ctx context.Context, _ *struct{}) (*CollectionListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	colls, err := s.services.Collection.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if colls == nil {
		colls = []*domain.Collection{}
	}
	return &CollectionListOutput{Body: CollectionListResponse{Collections: colls}}, nil
}

func (s *Server) handleCreateCollection(ctx context.Context, input *CreateCollectionInput) (*CollectionOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	coll, err := s.services.Collection.Create(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &CollectionOutput{Body: coll}, nil
}

func (s *Server) handleDeleteCollection(ctx context.Context, input *CollectionIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Collection.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleListCollectionBooks(ctx context.Context, input *CollectionIDInput) (*BookListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	books, err := s.services.Collection.Books(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: BookListResponse{Books: nonNilBooks(books)}}, nil
}

func (s *Server) handleAddBookToCollection(ctx context.Context, input *AddBookInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Collection.AddBook(ctx, userID, input.ID, input.Body.BookID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleRemoveBookFromCollection(ctx context.Context, input *CollectionBookInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Collection.RemoveBook(ctx, userID, input.ID, input.BookID); err != nil {
		return nil, err
	}
	return nil, nil
}
