package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/logger"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
	"github.com/bookshelfapp/bookshelf-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the sqlite store holding books, collections and ordering.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := cfg.Storage.DatabasePath()
	db, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// ResponseCacheHandle wraps the upstream response cache and its GC loop.
type ResponseCacheHandle struct {
	*store.ResponseCache
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ResponseCacheHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	if h.ResponseCache == nil {
		return nil
	}
	return h.Close()
}

// ProvideResponseCache provides the badger cache for catalog responses.
// A zero TTL disables caching and yields an empty handle.
func ProvideResponseCache(i do.Injector) (*ResponseCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Catalog.CacheTTL == 0 {
		log.Info("Catalog response cache disabled")
		return &ResponseCacheHandle{}, nil
	}

	cache, err := store.OpenResponseCache(store.CacheOptions{
		Path:   cfg.Storage.CachePath(),
		TTL:    cfg.Catalog.CacheTTL,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go cache.RunGC(ctx, cacheGCInterval)

	return &ResponseCacheHandle{ResponseCache: cache, cancel: cancel}, nil
}
