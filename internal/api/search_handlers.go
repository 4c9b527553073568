package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/service"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search books",
		Description: "Searches the external catalog by title and optional author. Failures are reported in the body, never as an error status.",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"user": {}}},
	}, s.handleSearchBooks)
}

// SearchBooksInput contains parameters for a catalog search.
type SearchBooksInput struct {
	Query    string `query:"q" doc:"Title or free text"`
	Author   string `query:"author" doc:"Author name"`
	Language string `query:"language" doc:"Language restriction, e.g. en or uk"`
	Page     int    `query:"page" doc:"Page number, 1-based"`
	PageSize int    `query:"page_size" doc:"Results per page"`
	Sort     string `query:"sort" doc:"relevance, year or author"`
}

// SearchBooksOutput wraps the search result for Huma.
type SearchBooksOutput struct {
	Body *service.SearchResult
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	result := s.services.Search.Search(ctx, service.SearchRequest{
		Query:    input.Query,
		Author:   input.Author,
		Language: input.Language,
		Page:     input.Page,
		PageSize: input.PageSize,
		Sort:     input.Sort,
	})
	return &SearchBooksOutput{Body: result}, nil
}
