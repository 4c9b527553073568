package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/service"
)

func (s *Server) registerOrderingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reorderLibrary",
		Method:      http.MethodPut,
		Path:        "/api/v1/library/order",
		Summary:     "Reorder library",
		Description: "Moves one book to a new index in the caller's library",
		Tags:        []string{"Ordering"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleReorderLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "reorderCollections",
		Method:      http.MethodPut,
		Path:        "/api/v1/collections/order",
		Summary:     "Reorder collections",
		Description: "Moves one collection to a new index in the caller's collection list",
		Tags:        []string{"Ordering"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleReorderCollections)

	huma.Register(s.api, huma.Operation{
		OperationID: "reorderCollectionBooks",
		Method:      http.MethodPut,
		Path:        "/api/v1/collections/{id}/order",
		Summary:     "Reorder collection books",
		Description: "Moves one book to a new index within a collection",
		Tags:        []string{"Ordering"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleReorderCollectionBooks)
}

// === DTOs ===

// ReorderRequest moves one item. Indexes past either end are clamped.
type ReorderRequest struct {
	ItemID      string `json:"item_id" doc:"ID of the book or collection to move"`
	TargetIndex int    `json:"target_index" doc:"Zero-based destination index"`
}

// ReorderInput wraps a reorder of a caller-owned scope.
type ReorderInput struct {
	Body ReorderRequest
}

// ReorderCollectionInput wraps a reorder within one collection.
type ReorderCollectionInput struct {
	ID   string `path:"id" doc:"Collection ID"`
	Body ReorderRequest
}

// ReorderOutput wraps the resulting order for Huma.
type ReorderOutput struct {
	Body *service.ReorderResult
}

// === Handlers ===

func (s *Server) handleReorderLibrary(ctx context.Context, input *ReorderInput) (*ReorderOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.reorder(ctx, userID, domain.LibraryScope(userID), input.Body)
}

func (s *Server) handleReorderCollections(ctx context.Context, input *ReorderInput) (*ReorderOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.reorder(ctx, userID, domain.CollectionsScope(userID), input.Body)
}

func (s *Server) handleReorderCollectionBooks(ctx context.Context, input *ReorderCollectionInput) (*ReorderOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.reorder(ctx, userID, domain.CollectionScope(input.ID), input.Body)
}

func (s *Server) reorder(ctx context.Context, userID string, scope domain.Scope, req ReorderRequest) (*ReorderOutput, error) {
	result, err := s.services.Ordering.Reorder(ctx, userID, scope, req.ItemID, req.TargetIndex)
	if err != nil {
		return nil, err
	}
	return &ReorderOutput{Body: result}, nil
}
