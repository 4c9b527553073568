// Package di provides dependency injection configuration for the Bookshelf server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/di/providers"
	"github.com/bookshelfapp/bookshelf-server/internal/logger"
	"github.com/bookshelfapp/bookshelf-server/internal/ratelimit"
	"github.com/bookshelfapp/bookshelf-server/internal/service"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	Register(injector)
	return injector
}

// Register adds every provider except configuration to injector. Tests
// provide their own *config.Config and call Register directly.
func Register(injector do.Injector) {
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideResponseCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Catalog and search pipeline
	do.Provide(injector, providers.ProvideQuota)
	do.Provide(injector, providers.ProvideCatalogClient)
	do.Provide(injector, providers.ProvidePipeline)

	// Business services
	do.Provide(injector, providers.ProvideSearchService)
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideCollectionService)
	do.Provide(injector, providers.ProvideOrderingService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
}

// Bootstrap initializes all services and returns once the HTTP server is
// listening in the background.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)

	// Storage opens can fail on a bad data dir; report those instead of panicking
	if err := invokeErr[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if err := invokeErr[*providers.ResponseCacheHandle](injector); err != nil {
		return err
	}
	if err := invokeErr[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*ratelimit.Quota](injector)
	_ = do.MustInvoke[*googlebooks.Client](injector)
	_ = do.MustInvoke[*booksearch.Pipeline](injector)

	// Business services
	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.LibraryService](injector)
	_ = do.MustInvoke[*service.CollectionService](injector)
	_ = do.MustInvoke[*service.OrderingService](injector)

	// Rebuild the library index if it was created on this start
	providers.TriggerSearchReindexIfNeeded(injector)

	// Server
	return invokeErr[*providers.HTTPServerHandle](injector)
}

func invokeErr[T any](injector do.Injector) error {
	_, err := do.Invoke[T](injector)
	return err
}
