package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/ordering"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// racyStore fails MoveItem with scripted errors before delegating to a
// pure in-memory order.
type racyStore struct {
	store.Store
	failures []error
	calls    int
	items    []ordering.Item
}

func (s *racyStore) MoveItem(_ context.Context, _ domain.Scope, itemID string, targetIndex int) (*ordering.Move, error) {
	s.calls++
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}
	move, err := ordering.PlanMove(s.items, itemID, targetIndex)
	if errors.Is(err, ordering.ErrNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.items = move.Order
	return &move, nil
}

func threeItems() []ordering.Item {
	return []ordering.Item{{ID: "A", Position: 1}, {ID: "B", Position: 2}, {ID: "C", Position: 3}}
}

func TestReorder_MovesToFront(t *testing.T) {
	fake := &racyStore{items: threeItems()}
	svc := NewOrderingService(fake, discardLogger())

	res, err := svc.Reorder(context.Background(), "usr_1", domain.LibraryScope("usr_1"), "C", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, res.NewOrder)
	assert.Less(t, fake.items[0].Position, fake.items[1].Position)
}

func TestReorder_RetriesConflictOnce(t *testing.T) {
	fake := &racyStore{items: threeItems(), failures: []error{store.ErrConflict}}
	svc := NewOrderingService(fake, discardLogger())

	res, err := svc.Reorder(context.Background(), "usr_1", domain.LibraryScope("usr_1"), "C", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, []string{"C", "A", "B"}, res.NewOrder)
}

func TestReorder_SecondConflictSurfaces(t *testing.T) {
	fake := &racyStore{items: threeItems(), failures: []error{store.ErrConflict, store.ErrConflict}}
	svc := NewOrderingService(fake, discardLogger())

	_, err := svc.Reorder(context.Background(), "usr_1", domain.LibraryScope("usr_1"), "C", 0)
	require.Error(t, err)
	assert.Equal(t, 2, fake.calls, "exactly one retry")
	assert.ErrorIs(t, err, domainerrors.ErrConflict)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestReorder_MissingItemIsNotFound(t *testing.T) {
	fake := &racyStore{items: threeItems()}
	svc := NewOrderingService(fake, discardLogger())

	_, err := svc.Reorder(context.Background(), "usr_1", domain.LibraryScope("usr_1"), "Z", 0)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, 1, fake.calls, "not found is never retried")
}

func TestReorder_OtherOwnersScopeIsHidden(t *testing.T) {
	fake := &racyStore{items: threeItems()}
	svc := NewOrderingService(fake, discardLogger())

	_, err := svc.Reorder(context.Background(), "usr_2", domain.LibraryScope("usr_1"), "C", 0)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Zero(t, fake.calls)

	_, err = svc.Reorder(context.Background(), "usr_1", domain.LibraryScope("usr_1"), "", 0)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestReorder_SameIndexIsNoop(t *testing.T) {
	fake := &racyStore{items: threeItems()}
	svc := NewOrderingService(fake, discardLogger())

	res, err := svc.Reorder(context.Background(), "usr_1", domain.CollectionsScope("usr_1"), "B", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, res.NewOrder)
	assert.Equal(t, threeItems(), fake.items)
}

func TestReorder_CollectionScopeAgainstStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	lib, colls, svc := env.library(), env.collections(), env.ordering()

	c, err := colls.Create(ctx, "usr_1", CreateCollectionRequest{Name: "Queue"})
	require.NoError(t, err)
	var ids []string
	for _, title := range []string{"A", "B", "C", "D"} {
		b, err := lib.Commit(ctx, "usr_1", CommitRequest{Title: title})
		require.NoError(t, err)
		require.NoError(t, colls.AddBook(ctx, "usr_1", c.ID, b.ID))
		ids = append(ids, b.ID)
	}

	res, err := svc.Reorder(ctx, "usr_1", domain.CollectionScope(c.ID), ids[0], 99)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[2], ids[3], ids[0]}, res.NewOrder, "target index is clamped")

	books, err := colls.Books(ctx, "usr_1", c.ID)
	require.NoError(t, err)
	for i, b := range books {
		assert.Equal(t, res.NewOrder[i], b.ID)
	}

	_, err = svc.Reorder(ctx, "usr_2", domain.CollectionScope(c.ID), ids[0], 0)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
