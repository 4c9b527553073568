package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/service"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/library",
		Summary:     "List library",
		Description: "Returns the caller's library books in manual order",
		Tags:        []string{"Library"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleListLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID:   "commitBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/library",
		Summary:       "Add book to library",
		Description:   "Copies a search result into the caller's library and appends it to the library order",
		Tags:          []string{"Library"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"user": {}}},
	}, s.handleCommitBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchLibrary",
		Method:      http.MethodGet,
		Path:        "/api/v1/library/search",
		Summary:     "Search library",
		Description: "Full-text search over the caller's own books",
		Tags:        []string{"Library"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleSearchLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateReadStatus",
		Method:      http.MethodPatch,
		Path:        "/api/v1/library/{id}",
		Summary:     "Update read status",
		Tags:        []string{"Library"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleUpdateReadStatus)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBook",
		Method:        http.MethodDelete,
		Path:          "/api/v1/library/{id}",
		Summary:       "Remove book",
		Description:   "Removes a book from the library and from every collection holding it",
		Tags:          []string{"Library"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"user": {}}},
	}, s.handleDeleteBook)
}

// === DTOs ===

// BookListResponse contains an ordered list of books.
type BookListResponse struct {
	Books []*domain.LibraryBook `json:"books" doc:"Books in manual order"`
}

// BookListOutput wraps a book list for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// CommitBookInput wraps the commit request for Huma.
type CommitBookInput struct {
	Body service.CommitRequest
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body *domain.LibraryBook
}

// SearchLibraryInput contains parameters for searching the library.
type SearchLibraryInput struct {
	Query  string `query:"q" doc:"Search text; empty lists recently updated books"`
	Status string `query:"status" doc:"Restrict to a read status"`
	Limit  int    `query:"limit" doc:"Maximum hits (default 20, max 100)"`
	Offset int    `query:"offset" doc:"Hits to skip"`
}

// SearchLibraryOutput wraps library search results for Huma.
type SearchLibraryOutput struct {
	Body *service.LibrarySearchResult
}

// UpdateReadStatusRequest is the request body for changing read status.
type UpdateReadStatusRequest struct {
	Status string `json:"status" doc:"to-read, reading or read"`
}

// UpdateReadStatusInput wraps the status update for Huma.
type UpdateReadStatusInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateReadStatusRequest
}

// DeleteBookInput contains parameters for removing a book.
type DeleteBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// === Handlers ===

func (s *Server) handleListLibrary(ctx context.Context, _ *struct{}) (*BookListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	books, err := s.services.Library.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: BookListResponse{Books: nonNilBooks(books)}}, nil
}

func (s *Server) handleCommitBook(ctx context.Context, input *CommitBookInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.Commit(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleSearchLibrary(ctx context.Context, input *SearchLibraryInput) (*SearchLibraryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Library.Search(ctx, userID, service.LibrarySearchRequest{
		Query:  input.Query,
		Status: input.Status,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}
	result.Books = nonNilBooks(result.Books)
	return &SearchLibraryOutput{Body: result}, nil
}

func (s *Server) handleUpdateReadStatus(ctx context.Context, input *UpdateReadStatusInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.UpdateStatus(ctx, userID, input.ID, input.Body.Status)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *DeleteBookInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

// nonNilBooks keeps empty lists encoding as [] rather than null.
func nonNilBooks(books []*domain.LibraryBook) []*domain.LibraryBook {
	if books == nil {
		return []*domain.LibraryBook{}
	}
	return books
}
