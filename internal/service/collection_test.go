package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/id"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

func TestCollections_CreateListDelete(t *testing.T) {
	ctx := context.Background()
	colls := newTestEnv(t).collections()

	first, err := colls.Create(ctx, "usr_1", CreateCollectionRequest{Name: " Favourites ", Description: "best"})
	require.NoError(t, err)
	assert.Equal(t, "Favourites", first.Name)
	assert.True(t, id.HasPrefix(first.ID, id.PrefixCollection))

	second, err := colls.Create(ctx, "usr_1", CreateCollectionRequest{Name: "Sci-fi"})
	require.NoError(t, err)

	list, err := colls.List(ctx, "usr_1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	require.NoError(t, colls.Delete(ctx, "usr_1", first.ID))
	list, err = colls.List(ctx, "usr_1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = colls.Get(ctx, "usr_1", first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, colls.Delete(ctx, "usr_2", second.ID), store.ErrNotFound)
}

func TestCollections_CreateValidation(t *testing.T) {
	_, err := newTestEnv(t).collections().Create(context.Background(), "usr_1", CreateCollectionRequest{Name: " "})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestCollections_Membership(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	lib, colls := env.library(), env.collections()

	c, err := colls.Create(ctx, "usr_1", CreateCollectionRequest{Name: "Shelf"})
	require.NoError(t, err)

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		b, err := lib.Commit(ctx, "usr_1", CommitRequest{Title: title})
		require.NoError(t, err)
		require.NoError(t, colls.AddBook(ctx, "usr_1", c.ID, b.ID))
		ids = append(ids, b.ID)
	}

	err = colls.AddBook(ctx, "usr_1", c.ID, ids[0])
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	require.NoError(t, colls.RemoveBook(ctx, "usr_1", c.ID, ids[1]))
	assert.ErrorIs(t, colls.RemoveBook(ctx, "usr_1", c.ID, ids[1]), store.ErrNotFound)

	books, err := colls.Books(ctx, "usr_1", c.ID)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, ids[0], books[0].ID)
	assert.Equal(t, ids[2], books[1].ID)

	order, err := env.ordering().Order(ctx, "usr_1", domain.CollectionScope(c.ID))
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, order)
}

func TestCollections_ForeignBookRejected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	c, err := env.collections().Create(ctx, "usr_1", CreateCollectionRequest{Name: "Mine"})
	require.NoError(t, err)
	other, err := env.library().Commit(ctx, "usr_2", CommitRequest{Title: "Theirs"})
	require.NoError(t, err)

	err = env.collections().AddBook(ctx, "usr_1", c.ID, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
