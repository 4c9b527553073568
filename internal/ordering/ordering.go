// Package ordering computes manual list positions. Positions are int64 keys,
// strictly increasing within a scope and spaced by Gap when assigned fresh.
// A move writes one position in the common case; when its new neighbours
// leave no integer between them the whole scope is renormalized.
//
// Everything here is pure. Persistence lives in the store.
package ordering

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Gap separates freshly assigned positions.
const Gap int64 = 1024

var (
	// ErrNotFound is returned when the moved item is not in the scope.
	ErrNotFound = errors.New("item not in scope")
	// ErrInvalidOrder is returned by Validate for duplicate or unsorted positions.
	ErrInvalidOrder = errors.New("positions are not strictly increasing")
)

// Item is one member of a scope.
type Item struct {
	ID       string
	Position int64
}

// Sorted returns a copy of items ordered by position, then ID.
func Sorted(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// IDs lists item identifiers in slice order.
func IDs(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

// Validate checks that sorted items form a strict total order.
func Validate(items []Item) error {
	for i := 1; i < len(items); i++ {
		if items[i].Position <= items[i-1].Position {
			return fmt.Errorf("%w: %q at %d follows %q at %d", ErrInvalidOrder,
				items[i].ID, items[i].Position, items[i-1].ID, items[i-1].Position)
		}
	}
	return nil
}

// NextPosition is the append position after last. ok is false when last is
// too close to the int64 ceiling and the scope must be renormalized first.
func NextPosition(last int64, empty bool) (pos int64, ok bool) {
	if empty {
		return Gap, true
	}
	if last > math.MaxInt64-Gap {
		return 0, false
	}
	return last + Gap, true
}

// Between returns a position strictly between lo and hi, or false when the
// two are adjacent.
func Between(lo, hi int64) (int64, bool) {
	if hi-lo < 2 || hi <= lo {
		return 0, false
	}
	return lo + (hi-lo)/2, true
}

// Renormalize reassigns evenly spaced positions (Gap, 2*Gap, ...) in the
// given order. The relative order is preserved exactly.
func Renormalize(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{ID: it.ID, Position: int64(i+1) * Gap}
	}
	return out
}

// Move is the plan for one reorder.
type Move struct {
	// Order is the scope after the move, sorted by position.
	Order []Item
	// Updates are the rows to write. Empty for a no-op, one row in the
	// common case, every row after a renormalization.
	Updates      []Item
	Renormalized bool
}

// Noop reports whether the move changes nothing.
func (m Move) Noop() bool { return len(m.Updates) == 0 }

// PlanMove moves itemID to targetIndex. items may arrive in any order;
// targetIndex is clamped to the scope.
func PlanMove(items []Item, itemID string, targetIndex int) (Move, error) {
	current := Sorted(items)
	from := slices.IndexFunc(current, func(it Item) bool { return it.ID == itemID })
	if from < 0 {
		return Move{}, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}
	to := max(0, min(targetIndex, len(current)-1))
	if from == to {
		return Move{Order: current}, nil
	}

	moved := current[from]
	rest := slices.Delete(slices.Clone(current), from, from+1)

	var (
		pos int64
		ok  bool
	)
	switch {
	case to == 0:
		if first := rest[0].Position; first >= math.MinInt64+Gap {
			pos, ok = first-Gap, true
		}
	case to == len(rest):
		pos, ok = NextPosition(rest[len(rest)-1].Position, false)
	default:
		pos, ok = Between(rest[to-1].Position, rest[to].Position)
	}

	moved.Position = pos
	order := slices.Insert(rest, to, moved)
	if ok {
		return Move{Order: order, Updates: []Item{moved}}, nil
	}

	order = Renormalize(order)
	return Move{Order: order, Updates: order, Renormalized: true}, nil
}
