package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/ordering"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// seedScope writes rows with explicit positions.
func seedScope(t *testing.T, s *Store, scope domain.Scope, items ...ordering.Item) {
	t.Helper()
	for _, it := range items {
		_, err := s.db.Exec(`
			INSERT INTO ordered_items (scope_key, owner_id, item_id, position, created_at)
			VALUES (?, 'usr_1', ?, ?, '2024-01-01T00:00:00Z')`,
			scope.Key(), it.ID, it.Position)
		if err != nil {
			t.Fatalf("seed %s: %v", it.ID, err)
		}
	}
}

func assertStrictOrder(t *testing.T, s *Store, scope domain.Scope) []ordering.Item {
	t.Helper()
	items, err := s.ListOrder(context.Background(), scope)
	if err != nil {
		t.Fatalf("ListOrder: %v", err)
	}
	if err := ordering.Validate(items); err != nil {
		t.Fatalf("scope %s: %v", scope, err)
	}
	return items
}

func TestMoveItem_ToFront(t *testing.T) {
	s := newTestStore(t)
	scope := domain.LibraryScope("usr_1")
	seedScope(t, s, scope, ordering.Item{ID: "A", Position: 1}, ordering.Item{ID: "B", Position: 2}, ordering.Item{ID: "C", Position: 3})

	move, err := s.MoveItem(context.Background(), scope, "C", 0)
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if move.Renormalized {
		t.Error("moving to the front should not renormalize")
	}

	items := assertStrictOrder(t, s, scope)
	if got := ordering.IDs(items); !slices.Equal(got, []string{"C", "A", "B"}) {
		t.Fatalf("order: got %v", got)
	}
	if items[0].Position >= items[1].Position {
		t.Errorf("C (%d) must sort before A (%d)", items[0].Position, items[1].Position)
	}
	if items[1].Position != 1 || items[2].Position != 2 {
		t.Errorf("A and B must keep their positions, got %v", items)
	}
}

func TestMoveItem_RenormalizesWhenNoRoom(t *testing.T) {
	s := newTestStore(t)
	scope := domain.CollectionScope("col_1")
	seedScope(t, s, scope, ordering.Item{ID: "A", Position: 1}, ordering.Item{ID: "B", Position: 2}, ordering.Item{ID: "C", Position: 3})

	move, err := s.MoveItem(context.Background(), scope, "C", 1)
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if !move.Renormalized {
		t.Error("expected renormalization between adjacent positions")
	}

	items := assertStrictOrder(t, s, scope)
	want := []ordering.Item{{ID: "A", Position: 1024}, {ID: "C", Position: 2048}, {ID: "B", Position: 3072}}
	if !slices.Equal(items, want) {
		t.Errorf("got %v, want %v", items, want)
	}

	var created string
	if err := s.db.QueryRow(`SELECT created_at FROM ordered_items WHERE scope_key = ? AND item_id = 'B'`, scope.Key()).Scan(&created); err != nil {
		t.Fatalf("read created_at: %v", err)
	}
	if created != "2024-01-01T00:00:00Z" {
		t.Errorf("rewrite must keep created_at, got %s", created)
	}
}

func TestMoveItem_NotFound(t *testing.T) {
	s := newTestStore(t)
	scope := domain.LibraryScope("usr_1")
	seedScope(t, s, scope, ordering.Item{ID: "A", Position: 1024})

	_, err := s.MoveItem(context.Background(), scope, "gone", 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertStrictOrder(t, s, scope)
}

func TestMoveItem_Noop(t *testing.T) {
	s := newTestStore(t)
	scope := domain.LibraryScope("usr_1")
	seedScope(t, s, scope, ordering.Item{ID: "A", Position: 1024}, ordering.Item{ID: "B", Position: 2048})

	move, err := s.MoveItem(context.Background(), scope, "B", 7)
	if err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	if !move.Noop() {
		t.Errorf("expected no-op, got %+v", move)
	}
	if got := ordering.IDs(move.Order); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("order: got %v", got)
	}
}

func TestAppend_RenormalizesNearCeiling(t *testing.T) {
	s := newTestStore(t)
	scope := domain.LibraryScope("usr_1")
	insertTestBook(t, s, "lb_a", "usr_1", "A")
	if _, err := s.db.Exec(`UPDATE ordered_items SET position = ? WHERE item_id = 'lb_a'`, int64(math.MaxInt64-5)); err != nil {
		t.Fatalf("push position to ceiling: %v", err)
	}

	insertTestBook(t, s, "lb_b", "usr_1", "B")

	items := assertStrictOrder(t, s, scope)
	if got := ordering.IDs(items); !slices.Equal(got, []string{"lb_a", "lb_b"}) {
		t.Fatalf("order: got %v", got)
	}
	if items[0].Position != ordering.Gap {
		t.Errorf("expected renormalized first position, got %d", items[0].Position)
	}
}

func TestMoveItem_RandomSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	scope := domain.LibraryScope("usr_1")

	const n = 8
	model := make([]string, n)
	for i := range n {
		id := fmt.Sprintf("it%d", i)
		seedScope(t, s, scope, ordering.Item{ID: id, Position: int64(i + 1)})
		model[i] = id
	}

	rng := rand.New(rand.NewPCG(7, 11))
	for step := range 150 {
		id := model[rng.IntN(n)]
		target := rng.IntN(n)
		if _, err := s.MoveItem(ctx, scope, id, target); err != nil {
			t.Fatalf("step %d: MoveItem: %v", step, err)
		}

		from := slices.Index(model, id)
		model = slices.Delete(model, from, from+1)
		model = slices.Insert(model, target, id)

		items := assertStrictOrder(t, s, scope)
		if got := ordering.IDs(items); !slices.Equal(got, model) {
			t.Fatalf("step %d: got %v, want %v", step, got, model)
		}
	}
}
