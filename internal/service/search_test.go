package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/booksearch"
	"github.com/bookshelfapp/bookshelf-server/internal/catalog/googlebooks"
	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/validation"
)

func newSearchService(src booksearch.Source) *SearchService {
	return NewSearchService(newPipeline(src), validation.New(), discardLogger())
}

func TestSearch_RanksExactTitleFirst(t *testing.T) {
	svc := newSearchService(&fakeCatalog{volumes: duneVolumes()})

	res := svc.Search(context.Background(), SearchRequest{Query: "Dune", Language: "en"})

	require.False(t, res.Failed)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "dune", res.Items[0].ExternalID)
	assert.Equal(t, "Dune Messiah", res.Items[1].Title)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, "relevance", res.Sort)
	assert.Empty(t, res.Message)
	assert.NotEmpty(t, res.TraceID)
}

func TestSearch_TimeoutReturnsFailureIndicator(t *testing.T) {
	src := &fakeCatalog{err: &googlebooks.Error{Op: "search", Err: googlebooks.ErrTimeout}}
	env := newTestEnv(t)
	svc := newSearchService(src)

	res := svc.Search(context.Background(), SearchRequest{Query: "Dune"})

	assert.True(t, res.Failed)
	assert.Equal(t, MessageSearchFailed, res.Message)
	assert.NotNil(t, res.Items)
	assert.Empty(t, res.Items)

	// ordering keeps working while the catalog is down
	lib := env.library()
	a, err := lib.Commit(context.Background(), "usr_1", CommitRequest{Title: "A"})
	require.NoError(t, err)
	b, err := lib.Commit(context.Background(), "usr_1", CommitRequest{Title: "B"})
	require.NoError(t, err)

	moved, err := env.ordering().Reorder(context.Background(), "usr_1", domain.LibraryScope("usr_1"), b.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, moved.NewOrder)
}

func TestSearch_UpstreamAndRateLimitFail(t *testing.T) {
	for _, cause := range []error{googlebooks.ErrUpstream, googlebooks.ErrRateLimited} {
		svc := newSearchService(&fakeCatalog{err: &googlebooks.Error{Op: "search", Status: 503, Err: cause}})
		res := svc.Search(context.Background(), SearchRequest{Query: "Dune"})
		assert.True(t, res.Failed, "cause %v", cause)
		assert.Equal(t, MessageSearchFailed, res.Message)
	}
}

func TestSearch_ValidationIsRecovered(t *testing.T) {
	src := &fakeCatalog{volumes: duneVolumes()}
	svc := newSearchService(src)

	tests := []struct {
		name string
		req  SearchRequest
		want string
	}{
		{"blank query", SearchRequest{Query: "   "}, "search text is required"},
		{"unsupported language", SearchRequest{Query: "Dune", Language: "fr"}, "unsupported language"},
		{"unknown sort", SearchRequest{Query: "Dune", Sort: "price"}, "invalid sort"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.Search(context.Background(), tt.req)
			assert.False(t, res.Failed)
			assert.Empty(t, res.Items)
			assert.Contains(t, res.Message, tt.want)
		})
	}
}

func TestSearch_EmptyResultExplains(t *testing.T) {
	svc := newSearchService(&fakeCatalog{})

	res := svc.Search(context.Background(), SearchRequest{Query: "Nothing"})

	assert.False(t, res.Failed)
	assert.Zero(t, res.TotalCount)
	assert.Equal(t, MessageNoResults, res.Message)
}

func TestSearch_PageBeyondRangeIsEmpty(t *testing.T) {
	svc := newSearchService(&fakeCatalog{volumes: duneVolumes()})

	res := svc.Search(context.Background(), SearchRequest{Query: "Dune", Page: 9, PageSize: 1})

	assert.False(t, res.Failed)
	assert.Empty(t, res.Items)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 2, res.TotalPages)
}
