package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bookshelfapp/bookshelf-server/internal/domain"
	"github.com/bookshelfapp/bookshelf-server/internal/metrics"
	"github.com/bookshelfapp/bookshelf-server/internal/ordering"
	"github.com/bookshelfapp/bookshelf-server/internal/store"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ListOrder returns the scope's items sorted by position.
func (s *Store) ListOrder(ctx context.Context, scope domain.Scope) ([]ordering.Item, error) {
	return scopeItems(ctx, s.db, scope)
}

// MoveItem moves itemID to targetIndex in one transaction. It returns
// store.ErrNotFound when the item is not in the scope and store.ErrConflict
// when another writer got there first.
func (s *Store) MoveItem(ctx context.Context, scope domain.Scope, itemID string, targetIndex int) (*ordering.Move, error) {
	var move ordering.Move
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		items, err := scopeItems(ctx, tx, scope)
		if err != nil {
			return err
		}

		move, err = ordering.PlanMove(items, itemID, targetIndex)
		if errors.Is(err, ordering.ErrNotFound) {
			return store.ErrNotFound.WithMessage(fmt.Sprintf("%s %s is not in %s", scope.ItemKind(), itemID, scope))
		}
		if err != nil {
			return err
		}

		switch {
		case move.Noop():
			return nil
		case move.Renormalized:
			return rewriteScope(ctx, tx, scope, move.Order)
		default:
			u := move.Updates[0]
			res, err := tx.ExecContext(ctx,
				`UPDATE ordered_items SET position = ? WHERE scope_key = ? AND item_id = ?`,
				u.Position, scope.Key(), u.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return store.ErrNotFound
			}
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if move.Renormalized {
		metrics.IncRenormalization()
		s.logger.Debug("scope renormalized", "scope", scope.Key(), "items", len(move.Order))
	}
	return &move, nil
}

func scopeItems(ctx context.Context, q queryer, scope domain.Scope) ([]ordering.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT item_id, position FROM ordered_items WHERE scope_key = ? ORDER BY position`, scope.Key())
	if err != nil {
		return nil, fmt.Errorf("list scope %s: %w", scope, err)
	}
	defer rows.Close()

	items := []ordering.Item{}
	for rows.Next() {
		var it ordering.Item
		if err := rows.Scan(&it.ID, &it.Position); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// appendItem adds itemID after the scope's last item, renormalizing first
// when the last position is too close to the int64 ceiling.
func (s *Store) appendItem(ctx context.Context, tx *sql.Tx, scope domain.Scope, ownerID, itemID string) (int64, error) {
	var (
		last  int64
		count int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0), COUNT(*) FROM ordered_items WHERE scope_key = ?`,
		scope.Key()).Scan(&last, &count)
	if err != nil {
		return 0, err
	}

	pos, ok := ordering.NextPosition(last, count == 0)
	if !ok {
		items, err := scopeItems(ctx, tx, scope)
		if err != nil {
			return 0, err
		}
		renormalized := ordering.Renormalize(items)
		if err := rewriteScope(ctx, tx, scope, renormalized); err != nil {
			return 0, err
		}
		metrics.IncRenormalization()
		pos, _ = ordering.NextPosition(renormalized[len(renormalized)-1].Position, false)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ordered_items (scope_key, owner_id, item_id, position, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		scope.Key(), ownerID, itemID, pos, formatTime(s.now()))
	if err != nil {
		return 0, err
	}
	return pos, nil
}

// rewriteScope replaces every row of the scope with the given positions.
// Rows are deleted and reinserted so intermediate states never collide on
// UNIQUE(scope_key, position).
func rewriteScope(ctx context.Context, tx *sql.Tx, scope domain.Scope, items []ordering.Item) error {
	type meta struct{ owner, created string }
	existing := make(map[string]meta, len(items))

	rows, err := tx.QueryContext(ctx,
		`SELECT item_id, owner_id, created_at FROM ordered_items WHERE scope_key = ?`, scope.Key())
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		var m meta
		if err := rows.Scan(&id, &m.owner, &m.created); err != nil {
			rows.Close()
			return err
		}
		existing[id] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(existing) != len(items) {
		return store.ErrConflict.WithMessage(fmt.Sprintf("scope %s changed during rewrite", scope))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ordered_items WHERE scope_key = ?`, scope.Key()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ordered_items (scope_key, owner_id, item_id, position, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		m, ok := existing[it.ID]
		if !ok {
			return store.ErrConflict.WithMessage(fmt.Sprintf("%s left scope %s during rewrite", it.ID, scope))
		}
		if _, err := stmt.ExecContext(ctx, scope.Key(), m.owner, it.ID, it.Position, m.created); err != nil {
			return err
		}
	}
	return nil
}

// removeItem deletes one row. It reports whether the row existed.
func removeItem(ctx context.Context, tx *sql.Tx, scope domain.Scope, itemID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM ordered_items WHERE scope_key = ? AND item_id = ?`, scope.Key(), itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
