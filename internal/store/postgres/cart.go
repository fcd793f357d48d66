package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
)

const cartItemColumns = `ci.id, ci.cart_id, ci.product_id, p.name, p.description, p.image_url, ci.quantity, ci.unit_price
	FROM cart_items ci JOIN products p ON ci.product_id = p.id`

func scanCartItem(row pgx.Row) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Name, &it.Description, &it.ImageURL, &it.Quantity, &it.UnitPrice)
	return it, err
}

// FindCartID implements cart.Store.
func (s *Store) FindCartID(ctx context.Context, sessionID string) (int64, bool, error) {
	return findCartID(ctx, s.pool, sessionID, false)
}

// CreateCart implements cart.Store.
func (s *Store) CreateCart(ctx context.Context, sessionID string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, "INSERT INTO carts (session_id) VALUES ($1) RETURNING id", sessionID).Scan(&id)
	if err != nil {
		return 0, conflictOr(err, "inserting cart")
	}
	return id, nil
}

// ActiveProduct implements cart.Store.
func (s *Store) ActiveProduct(ctx context.Context, productID int64) (catalog.Product, bool, error) {
	var p catalog.Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, price, image_url, category_id, is_active
		FROM products WHERE id = $1 AND is_active = TRUE`, productID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.CategoryID, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, false, nil
	}
	if err != nil {
		return catalog.Product{}, false, errors.Annotate(err, "selecting product")
	}
	return p, true, nil
}

// FindItemByProduct implements cart.Store.
func (s *Store) FindItemByProduct(ctx context.Context, cartID, productID int64) (cart.Item, bool, error) {
	it, err := scanCartItem(s.pool.QueryRow(ctx,
		"SELECT "+cartItemColumns+" WHERE ci.cart_id = $1 AND ci.product_id = $2", cartID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.Item{}, false, nil
	}
	if err != nil {
		return cart.Item{}, false, errors.Annotate(err, "selecting cart item")
	}
	return it, true, nil
}

// InsertItem implements cart.Store.
func (s *Store) InsertItem(ctx context.Context, cartID, productID int64, quantity int, unitPrice decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO cart_items (cart_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
		cartID, productID, quantity, unitPrice)
	if err != nil {
		return conflictOr(err, "inserting cart item")
	}
	return nil
}

// IncrementItem implements cart.Store. The bound is checked by the UPDATE
// itself so concurrent increments cannot overshoot max.
func (s *Store) IncrementItem(ctx context.Context, cartID, itemID int64, delta, max int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = quantity + $3
		WHERE id = $1 AND cart_id = $2 AND quantity + $3 <= $4`,
		itemID, cartID, delta, max)
	if err != nil {
		return false, errors.Annotate(err, "incrementing cart item")
	}
	return tag.RowsAffected() == 1, nil
}

// SetItemQuantity implements cart.Store.
func (s *Store) SetItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE cart_items SET quantity = $3 WHERE id = $1 AND cart_id = $2",
		itemID, cartID, quantity)
	if err != nil {
		return false, errors.Annotate(err, "updating cart item")
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteItem implements cart.Store.
func (s *Store) DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM cart_items WHERE id = $1 AND cart_id = $2", itemID, cartID)
	if err != nil {
		return false, errors.Annotate(err, "deleting cart item")
	}
	return tag.RowsAffected() == 1, nil
}

// ListItems implements cart.Store.
func (s *Store) ListItems(ctx context.Context, cartID int64) ([]cart.Item, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+cartItemColumns+" WHERE ci.cart_id = $1 ORDER BY ci.id ASC", cartID)
	if err != nil {
		return nil, errors.Annotate(err, "selecting cart items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		return scanCartItem(row)
	})
	return items, errors.Annotate(err, "scanning cart items")
}
