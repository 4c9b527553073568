package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
)

// LibraryIndex wraps a Bleve index of library books.
//
// All public methods are safe for concurrent use. The mutex guards the
// index handle while Rebuild swaps it.
type LibraryIndex struct {
	index  bleve.Index
	path   string
	fresh  bool
	closed bool
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the library index.
type Options struct {
	DataPath string       // directory for index storage
	Logger   *slog.Logger // discards when nil
}

// mappingVersion is bumped whenever buildIndexMapping changes; a mismatch
// on open recreates the index.
const mappingVersion = "1"

// batchSize bounds memory while bulk indexing.
const batchSize = 500

// Open opens the index under opts.DataPath, creating it when missing. An
// index that fails to open or was built with another mapping version is
// removed and recreated empty; Fresh reports that case so the caller can
// reindex from the database.
func Open(opts Options) (*LibraryIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	indexPath := filepath.Join(opts.DataPath, "library.bleve")
	versionPath := filepath.Join(opts.DataPath, "library.version")

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("library index has no version file, rebuilding", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("library index mapping version changed, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		default:
			var err error
			index, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open library index, recreating", "path", indexPath, "error", err)
				needsRebuild = true
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	fresh := false
	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write library index version file", "error", err)
		}
		fresh = true
		logger.Info("created library index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened library index", "path", indexPath)
	}

	return &LibraryIndex{
		index:  index,
		path:   indexPath,
		fresh:  fresh,
		logger: logger,
	}, nil
}

// Fresh reports whether Open created the index from scratch.
func (s *LibraryIndex) Fresh() bool {
	return s.fresh
}

// Close closes the index.
func (s *LibraryIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}

// IndexLibraryBook adds or replaces one book.
func (s *LibraryIndex) IndexLibraryBook(ctx context.Context, book *domain.LibraryBook) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(book.ID, NewLibraryDocument(book).ToMap())
}

// IndexLibraryBooks indexes books in batches.
func (s *LibraryIndex) IndexLibraryBooks(ctx context.Context, books []*domain.LibraryBook) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := 0; i < len(books); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(books))

		batch := s.index.NewBatch()
		for _, b := range books[i:end] {
			if err := batch.Index(b.ID, NewLibraryDocument(b).ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", b.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteLibraryBook removes one book. Deleting an unknown ID is not an error.
func (s *LibraryIndex) DeleteLibraryBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(bookID)
}

// DeleteLibraryBooks removes several books in one batch.
func (s *LibraryIndex) DeleteLibraryBooks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return s.index.Batch(batch)
}

// DocumentCount returns the number of indexed books across all owners.
func (s *LibraryIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document and recreates the index empty. It holds the
// write lock, so concurrent searches wait until it returns.
func (s *LibraryIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt library index", "path", s.path)
	return nil
}
