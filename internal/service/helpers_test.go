package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/search"
	"github.com/bookshelfapp/bookshelf-server/internal/store/sqlite"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// testEnv is a real store and index in a temp dir.
type testEnv struct {
	store *sqlite.Store
	index *search.LibraryIndex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	s, err := sqlite.Open(filepath.Join(dir, "bookshelf.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx, err := search.Open(search.Options{DataPath: filepath.Join(dir, "index")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	s.SetSearchIndexer(idx)
	return &testEnv{store: s, index: idx}
}

func (e *testEnv) library() *LibraryService {
	return NewLibraryService(e.store, e.index, validation.New(), discardLogger())
}

func (e *testEnv) collections() *CollectionService {
	return NewCollectionService(e.store, validation.New(), discardLogger())
}

func (e *testEnv) ordering() *OrderingService {
	return NewOrderingService(e.store, discardLogger())
}

// fakeCatalog is an in-memory external source whose records can change
// between searches.
type fakeCatalog struct {
	mu      sync.Mutex
	volumes []googlebooks.Volume
	err     error
}

func (c *fakeCatalog) Search(_ context.Context, _ googlebooks.SearchParams) (*googlebooks.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	vols := make([]googlebooks.Volume, len(c.volumes))
	copy(vols, c.volumes)
	return &googlebooks.SearchResult{TotalItems: len(vols), Volumes: vols}, nil
}

func (c *fakeCatalog) retitle(id, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.volumes {
		if c.volumes[i].ID == id {
			c.volumes[i].Title = title
		}
	}
}

func newPipeline(src booksearch.Source) *booksearch.Pipeline {
	fetcher := booksearch.NewFetcher(src, nil, booksearch.FetchConfig{MaxResults: 40, MinUsable: 1}, nil)
	return booksearch.NewPipeline(fetcher, booksearch.NewScorer(booksearch.DefaultWeights()),
		booksearch.PipelineConfig{DefaultPageSize: 12, MaxPageSize: 40}, nil)
}

func duneVolumes() []googlebooks.Volume {
	return []googlebooks.Volume{
		{ID: "messiah", Title: "Dune Messiah", Authors: []string{"Frank Herbert"}, Language: "en", PublishedDate: "1969"},
		{ID: "dune", Title: "Dune", Authors: []string{"Frank Herbert"}, Language: "en", PublishedDate: "1965-08-01",
			Description: "<p>Set on the desert planet <b>Arrakis</b>.</p>", PageCount: 412},
	}
}
