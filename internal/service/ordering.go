package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	domainerrors "github.com/bookshelfapp/bookshelf-server/internal/errors"
	"github.com/bookshelfapp/bookshelf-server/internal/metrics"
	"github.com/bookshelfapp/bookshelf-server/internal/ordering"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// Reorder outcomes recorded in metrics.
const (
	moveOK       = "ok"
	moveNoop     = "noop"
	moveRetried  = "retried"
	moveNotFound = "not_found"
	moveConflict = "conflict"
	moveFailed   = "error"
)

// ReorderResult is the scope after a move.
type ReorderResult struct {
	NewOrder     []string `json:"new_order"`
	Renormalized bool     `json:"renormalized,omitempty"`
}

// OrderingService moves items within ordered scopes on behalf of their owner.
type OrderingService struct {
	store  store.Store
	logger *slog.Logger
}

// NewOrderingService creates a new ordering service.
func NewOrderingService(store store.Store, logger *slog.Logger) *OrderingService {
	return &OrderingService{store: store, logger: logger}
}

// Order returns the scope's item IDs in display order.
func (s *OrderingService) Order(ctx context.Context, ownerID string, scope domain.Scope) ([]string, error) {
	if err := s.authorize(ctx, ownerID, scope); err != nil {
		return nil, err
	}
	items, err := s.store.ListOrder(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list order: %w", err)
	}
	return ordering.IDs(items), nil
}

// Reorder moves itemID to targetIndex, clamped to the scope. Moving an item
// to its current index changes nothing and still returns the order.
//
// A move that loses a race with another writer is retried exactly once; the
// store reads a fresh snapshot inside the retry's transaction. A second
// conflict is returned as a domain conflict. An item no longer in the scope
// yields a domain not-found error and the caller should refetch the order.
func (s *OrderingService) Reorder(ctx context.Context, ownerID string, scope domain.Scope, itemID string, targetIndex int) (*ReorderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if itemID == "" {
		return nil, domainerrors.Validation("item_id is required")
	}
	if err := s.authorize(ctx, ownerID, scope); err != nil {
		return nil, err
	}

	move, err := s.store.MoveItem(ctx, scope, itemID, targetIndex)
	if errors.Is(err, store.ErrConflict) {
		s.logger.Info("reorder conflict, retrying on a fresh order",
			"scope", scope.Key(),
			"item_id", itemID,
			"target_index", targetIndex,
		)
		metrics.IncMove(moveRetried)
		move, err = s.store.MoveItem(ctx, scope, itemID, targetIndex)
	}

	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		metrics.IncMove(moveNotFound)
		return nil, domainerrors.NotFoundf("%s %s is not in this list, refresh and try again", scope.ItemKind(), itemID).WithCause(err)
	case errors.Is(err, store.ErrConflict):
		metrics.IncMove(moveConflict)
		s.logger.Warn("reorder conflict after retry",
			"scope", scope.Key(),
			"item_id", itemID,
			"error", err,
		)
		return nil, domainerrors.Conflict("the list changed while reordering, refresh and try again").WithCause(err)
	default:
		metrics.IncMove(moveFailed)
		return nil, fmt.Errorf("move item: %w", err)
	}

	if move.Noop() {
		metrics.IncMove(moveNoop)
	} else {
		metrics.IncMove(moveOK)
	}
	if move.Renormalized {
		s.logger.Info("scope renormalized during reorder",
			"scope", scope.Key(),
			"items", len(move.Order),
		)
	}

	return &ReorderResult{
		NewOrder:     ordering.IDs(move.Order),
		Renormalized: move.Renormalized,
	}, nil
}

// authorize checks that the scope belongs to ownerID. Scopes of other owners
// look missing rather than forbidden.
func (s *OrderingService) authorize(ctx context.Context, ownerID string, scope domain.Scope) error {
	switch scope.Kind {
	case domain.ScopeLibrary, domain.ScopeCollections:
		if scope.Ref != ownerID {
			return domainerrors.NotFound("list not found")
		}
		return nil
	case domain.ScopeCollection:
		if _, err := s.store.GetCollection(ctx, ownerID, scope.Ref); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domainerrors.NotFound("collection not found").WithCause(err)
			}
			return err
		}
		return nil
	default:
		return domainerrors.Validationf("unknown list %q", scope.Kind)
	}
}
