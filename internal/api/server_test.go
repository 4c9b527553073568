package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/config"
	"github.com/bookshelfapp/bookshelf-server/internal/search"
	"github.com/bookshelfapp/bookshelf-server/internal/service"
	"github.com/bookshelfapp/bookshelf-server/internal/store/sqlite"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

const (
	alice = "X-User-ID: usr_alice"
	bob   = "X-User-ID: usr_bob"
)

// stubCatalog answers every query with the same volumes, or fails.
type stubCatalog struct {
	mu      sync.Mutex
	volumes []googlebooks.Volume
	err     error
}

func (c *stubCatalog) Search(_ context.Context, _ googlebooks.SearchParams) (*googlebooks.SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	vols := append([]googlebooks.Volume(nil), c.volumes...)
	return &googlebooks.SearchResult{TotalItems: len(vols), Volumes: vols}, nil
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	catalog *stubCatalog
}

// setupTestServer creates a test server backed by a real store and index.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(filepath.Join(dir, "bookshelf.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	idx, err := search.Open(search.Options{DataPath: filepath.Join(dir, "index"), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	st.SetSearchIndexer(idx)

	catalog := &stubCatalog{volumes: []googlebooks.Volume{
		{ID: "dune", Title: "Dune", Authors: []string{"Frank Herbert"}, Language: "en", PublishedDate: "1965"},
		{ID: "messiah", Title: "Dune Messiah", Authors: []string{"Frank Herbert"}, Language: "en", PublishedDate: "1969"},
	}}
	fetcher := booksearch.NewFetcher(catalog, nil, booksearch.FetchConfig{MaxResults: 40, MinUsable: 1}, logger)
	pipeline := booksearch.NewPipeline(fetcher, booksearch.NewScorer(booksearch.DefaultWeights()),
		booksearch.PipelineConfig{DefaultPageSize: 12, MaxPageSize: 40}, logger)

	v := validation.New()
	services := &Services{
		Search:     service.NewSearchService(pipeline, v, logger),
		Library:    service.NewLibraryService(st, idx, v, logger),
		Collection: service.NewCollectionService(st, v, logger),
		Ordering:   service.NewOrderingService(st, logger),
	}

	srv := NewServer(services, config.ServerConfig{CORSOrigins: []string{"*"}}, st, logger)
	return &testServer{
		Server:  srv,
		api:     humatest.Wrap(t, srv.API()),
		catalog: catalog,
	}
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

type bookBody struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Status  string   `json:"status"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ts *testServer) commit(t *testing.T, user, title string) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/library", user, map[string]any{
		"title":   title,
		"authors": "Frank Herbert",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeBody[bookBody](t, resp).ID
}

func (ts *testServer) createCollection(t *testing.T, user, name string) string {
	t.Helper()
	resp := ts.api.Post("/api/v1/collections", user, map[string]any{"name": name})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decodeBody[struct {
		ID string `json:"id"`
	}](t, resp).ID
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Success bool           `json:"success"`
		Data    HealthResponse `json:"data"`
	}](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "healthy", body.Data.Status)
	assert.Equal(t, "healthy", body.Data.Components["database"].Status)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("closed") }

func TestHealth_DatabaseDown(t *testing.T) {
	srv := NewServer(&Services{}, config.ServerConfig{}, failingPinger{}, slog.New(slog.DiscardHandler))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoutesRequireUser(t *testing.T) {
	ts := setupTestServer(t)

	for _, path := range []string{"/api/v1/search?q=dune", "/api/v1/library", "/api/v1/collections"} {
		t.Run(path, func(t *testing.T) {
			resp := ts.api.Get(path)
			assert.Equal(t, http.StatusUnauthorized, resp.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeBody[errorBody](t, resp).Code)
		})
	}
}

func TestSearchBooks(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/search?q=Dune&language=en", alice)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := decodeBody[service.SearchResult](t, resp)
	assert.False(t, body.Failed)
	require.Len(t, body.Items, 2)
	assert.Equal(t, "Dune", body.Items[0].Title)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, "relevance", body.Sort)
}

func TestSearchBooks_FailuresStayInBody(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("invalid input", func(t *testing.T) {
		resp := ts.api.Get("/api/v1/search?q=Dune&sort=price", alice)
		require.Equal(t, http.StatusOK, resp.Code)

		body := decodeBody[service.SearchResult](t, resp)
		assert.False(t, body.Failed)
		assert.Empty(t, body.Items)
		assert.NotEmpty(t, body.Message)
	})

	t.Run("upstream timeout", func(t *testing.T) {
		ts.catalog.mu.Lock()
		ts.catalog.err = &googlebooks.Error{Op: "search", Err: googlebooks.ErrTimeout}
		ts.catalog.mu.Unlock()

		resp := ts.api.Get("/api/v1/search?q=Dune", alice)
		require.Equal(t, http.StatusOK, resp.Code)

		body := decodeBody[service.SearchResult](t, resp)
		assert.True(t, body.Failed)
		assert.Equal(t, service.MessageSearchFailed, body.Message)
	})
}

func TestLibrary_CommitListAndStatus(t *testing.T) {
	ts := setupTestServer(t)

	first := ts.commit(t, alice, "Dune")
	second := ts.commit(t, alice, "Dune Messiah")

	resp := ts.api.Get("/api/v1/library", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	list := decodeBody[struct {
		Books []bookBody `json:"books"`
	}](t, resp)
	require.Len(t, list.Books, 2)
	assert.Equal(t, first, list.Books[0].ID)
	assert.Equal(t, second, list.Books[1].ID)
	assert.Equal(t, []string{"Frank Herbert"}, list.Books[0].Authors)
	assert.Equal(t, "to-read", list.Books[0].Status)

	resp = ts.api.Patch("/api/v1/library/"+first, alice, map[string]any{"status": "reading"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "reading", decodeBody[bookBody](t, resp).Status)

	resp = ts.api.Patch("/api/v1/library/"+first, alice, map[string]any{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeBody[errorBody](t, resp).Code)

	resp = ts.api.Get("/api/v1/library", bob)
	require.Equal(t, http.StatusOK, resp.Code)
	empty := decodeBody[struct {
		Books []bookBody `json:"books"`
	}](t, resp)
	assert.NotNil(t, empty.Books, "empty library encodes as []")
	assert.Empty(t, empty.Books)
}

func TestLibrary_CommitRejectsBlankTitle(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/library", alice, map[string]any{"title": "   "})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decodeBody[errorBody](t, resp).Code)
}

func TestLibrary_DeleteAndNotFound(t *testing.T) {
	ts := setupTestServer(t)
	bookID := ts.commit(t, alice, "Dune")

	resp := ts.api.Delete("/api/v1/library/"+bookID, bob)
	assert.Equal(t, http.StatusNotFound, resp.Code, "other owners cannot see the book")

	resp = ts.api.Delete("/api/v1/library/"+bookID, alice)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Patch("/api/v1/library/"+bookID, alice, map[string]any{"status": "read"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody[errorBody](t, resp).Code)
}

func TestLibrary_Search(t *testing.T) {
	ts := setupTestServer(t)
	dune := ts.commit(t, alice, "Dune")
	ts.commit(t, alice, "Foundation")
	ts.commit(t, bob, "Dune")

	resp := ts.api.Get("/api/v1/library/search?q=dune", alice)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	body := decodeBody[struct {
		Books []bookBody `json:"books"`
		Total int        `json:"total"`
	}](t, resp)
	require.Len(t, body.Books, 1)
	assert.Equal(t, dune, body.Books[0].ID)
	assert.Equal(t, 1, body.Total)
}

func TestReorderLibrary(t *testing.T) {
	ts := setupTestServer(t)
	a := ts.commit(t, alice, "A")
	b := ts.commit(t, alice, "B")
	c := ts.commit(t, alice, "C")

	resp := ts.api.Put("/api/v1/library/order", alice, map[string]any{"item_id": c, "target_index": 0})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{c, a, b}, decodeBody[service.ReorderResult](t, resp).NewOrder)

	resp = ts.api.Put("/api/v1/library/order", alice, map[string]any{"item_id": a, "target_index": 99})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{c, b, a}, decodeBody[service.ReorderResult](t, resp).NewOrder, "index past the end is clamped")

	resp = ts.api.Put("/api/v1/library/order", alice, map[string]any{"item_id": "lb-missing", "target_index": 0})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Put("/api/v1/library/order", bob, map[string]any{"item_id": a, "target_index": 0})
	assert.Equal(t, http.StatusNotFound, resp.Code, "a book from another library is not in the caller's scope")
}

func TestCollections_Lifecycle(t *testing.T) {
	ts := setupTestServer(t)
	dune := ts.commit(t, alice, "Dune")
	messiah := ts.commit(t, alice, "Dune Messiah")

	sci := ts.createCollection(t, alice, "Sci-fi")
	fav := ts.createCollection(t, alice, "Favourites")

	resp := ts.api.Put("/api/v1/collections/order", alice, map[string]any{"item_id": fav, "target_index": 0})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{fav, sci}, decodeBody[service.ReorderResult](t, resp).NewOrder)

	for _, bookID := range []string{dune, messiah} {
		resp = ts.api.Post("/api/v1/collections/"+sci+"/books", alice, map[string]any{"book_id": bookID})
		require.Equal(t, http.StatusNoContent, resp.Code, resp.Body.String())
	}

	resp = ts.api.Post("/api/v1/collections/"+sci+"/books", alice, map[string]any{"book_id": dune})
	assert.Equal(t, http.StatusConflict, resp.Code, "a book appears in a collection once")

	resp = ts.api.Put("/api/v1/collections/"+sci+"/order", alice, map[string]any{"item_id": messiah, "target_index": 0})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{messiah, dune}, decodeBody[service.ReorderResult](t, resp).NewOrder)

	resp = ts.api.Put("/api/v1/collections/"+sci+"/order", bob, map[string]any{"item_id": messiah, "target_index": 1})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Delete("/api/v1/collections/"+sci+"/books/"+messiah, alice)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/collections/"+sci+"/books", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	books := decodeBody[struct {
		Books []bookBody `json:"books"`
	}](t, resp)
	require.Len(t, books.Books, 1)
	assert.Equal(t, dune, books.Books[0].ID)

	resp = ts.api.Delete("/api/v1/collections/"+sci, alice)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Get("/api/v1/collections", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	colls := decodeBody[struct {
		Collections []struct {
			ID string `json:"id"`
		} `json:"collections"`
	}](t, resp)
	require.Len(t, colls.Collections, 1)
	assert.Equal(t, fav, colls.Collections[0].ID)

	resp = ts.api.Get("/api/v1/library", alice)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeBody[struct {
		Books []bookBody `json:"books"`
	}](t, resp).Books, 2, "deleting a collection keeps its books")
}

func TestCreateCollection_RejectsBlankName(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/collections", alice, map[string]any{"name": " "})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
