package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

const orderColumns = `id, session_id, customer_name, phone, address, notes, whatsapp_opt_in,
	subtotal, tax, total, status, created_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.SessionID, &o.CustomerName, &o.Phone, &o.Address, &o.Notes, &o.WhatsappOptIn,
		&o.Totals.Subtotal, &o.Totals.Tax, &o.Totals.Total, &status, &o.CreatedAt)
	o.Status = orders.Status(status)
	return o, err
}

func itemsOf(ctx context.Context, q querier, orderIDs []int64) (map[int64][]orders.Item, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, name, quantity, unit_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY id ASC`, orderIDs)
	if err != nil {
		return nil, errors.Annotate(err, "selecting order items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orders.Item, error) {
		var it orders.Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice)
		return it, err
	})
	if err != nil {
		return nil, errors.Annotate(err, "scanning order items")
	}
	byOrder := make(map[int64][]orders.Item, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}

// GetOrder implements orders.Store.
func (s *Store) GetOrder(ctx context.Context, id int64) (orders.Order, bool, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, errors.Annotate(err, "selecting order")
	}
	items, err := itemsOf(ctx, s.pool, []int64{id})
	if err != nil {
		return orders.Order{}, false, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []orders.Item{}
	}
	return o, true, nil
}

// EarningsSince implements orders.Store.
func (s *Store) EarningsSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total), 0) FROM orders
		WHERE status <> $1 AND created_at >= $2`,
		string(orders.StatusCancelled), since,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, errors.Annotate(err, "summing earnings")
	}
	return sum, nil
}

// ListOrders implements orders.Store.
func (s *Store) ListOrders(ctx context.Context, exclude []orders.Status) ([]orders.Order, error) {
	excluded := make([]string, 0, len(exclude))
	for _, st := range exclude {
		excluded = append(excluded, string(st))
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE NOT (status = ANY($1)) ORDER BY created_at DESC, id DESC",
		excluded)
	if err != nil {
		return nil, errors.Annotate(err, "selecting orders")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orders.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, errors.Annotate(err, "scanning orders")
	}
	if len(list) == 0 {
		return []orders.Order{}, nil
	}

	ids := make([]int64, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	items, err := itemsOf(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Items = items[list[i].ID]
		if list[i].Items == nil {
			list[i].Items = []orders.Item{}
		}
	}
	return list, nil
}

// txStore runs order statements on one transaction.
type txStore struct {
	q pgx.Tx
}

// FindCartID locks the cart row so two checkouts of one session serialize.
func (t *txStore) FindCartID(ctx context.Context, sessionID string) (int64, bool, error) {
	return findCartID(ctx, t.q, sessionID, true)
}

func (t *txStore) CartLines(ctx context.Context, cartID int64) ([]orders.CartLine, error) {
	rows, err := t.q.Query(ctx,
		`SELECT ci.product_id, p.name, ci.quantity, ci.unit_price
		FROM cart_items ci JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = $1 ORDER BY ci.id ASC`, cartID)
	if err != nil {
		return nil, errors.Annotate(err, "selecting cart lines")
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (orders.CartLine, error) {
		var l orders.CartLine
		err := row.Scan(&l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice)
		return l, err
	})
	return lines, errors.Annotate(err, "scanning cart lines")
}

func (t *txStore) InsertOrder(ctx context.Context, o *orders.Order) error {
	err := t.q.QueryRow(ctx,
		`INSERT INTO orders (session_id, customer_name, phone, address, notes, whatsapp_opt_in, subtotal, tax, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		o.SessionID, o.CustomerName, o.Phone, o.Address, o.Notes, o.WhatsappOptIn,
		o.Totals.Subtotal, o.Totals.Tax, o.Totals.Total, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	return errors.Annotate(err, "inserting order")
}

func (t *txStore) InsertItems(ctx context.Context, orderID int64, items []orders.Item) error {
	batch := &pgx.Batch{}
	for i := range items {
		it := &items[i]
		it.OrderID = orderID
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			orderID, it.ProductID, it.Name, it.Quantity, it.UnitPrice,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&it.ID)
		})
	}
	return errors.Annotate(t.q.SendBatch(ctx, batch).Close(), "inserting order items")
}

func (t *txStore) ClearCart(ctx context.Context, cartID int64) error {
	_, err := t.q.Exec(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	return errors.Annotate(err, "clearing cart")
}

func (t *txStore) LockOrder(ctx context.Context, id int64) (orders.Order, bool, error) {
	o, err := scanOrder(t.q.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, false, nil
	}
	if err != nil {
		return orders.Order{}, false, errors.Annotate(err, "locking order")
	}
	return o, true, nil
}

func (t *txStore) SetStatus(ctx context.Context, id int64, status orders.Status) error {
	_, err := t.q.Exec(ctx, "UPDATE orders SET status = $2 WHERE id = $1", id, string(status))
	return errors.Annotate(err, "updating order status")
}
