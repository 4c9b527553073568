package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/logger"
	"github.com/bookshelfapp/bookshelf-server/internal/search"
	"github.com/bookshelfapp/bookshelf-server/internal/service"
)

// SearchIndexHandle wraps the library index with shutdown capability.
type SearchIndexHandle struct {
	*search.LibraryIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve library index and wires it to the
// store so book writes keep it current.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.Open(search.Options{
		DataPath: cfg.Storage.IndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Library index initialized", "documents", docCount, "fresh", index.Fresh())

	return &SearchIndexHandle{LibraryIndex: index}, nil
}

// TriggerSearchReindexIfNeeded repopulates an index that was created on this
// start. Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	libraryService := do.MustInvoke[*service.LibraryService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !indexHandle.Fresh() {
		return
	}

	log.Info("Library index is new, rebuilding from the database")

	go func() {
		if err := libraryService.Reindex(context.Background()); err != nil {
			log.Error("Initial library reindex failed", "error", err)
			return
		}
		count, _ := indexHandle.DocumentCount()
		log.Info("Initial library reindex completed", "documents", count)
	}()
}
