package api

import (
	"github.com/bookshelfapp/bookshelf-server/internal/service"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Search     *service.SearchService
	Library    *service.LibraryService
	Collection *service.CollectionService
	Ordering   *service.OrderingService
}
