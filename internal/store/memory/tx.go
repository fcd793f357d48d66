package memory

import (
	"context"
	"sort"
	"time"

	"github.com/juju/errors"

	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

type tx struct {
	data *state
	now  func() time.Time
}

func (t *tx) FindCartID(_ context.Context, sessionID string) (int64, bool, error) {
	return t.data.findCart(sessionID)
}

func (t *tx) CartLines(_ context.Context, cartID int64) ([]orders.CartLine, error) {
	var rows []cartItemRow
	for _, it := range t.data.cartItems {
		if it.CartID == cartID {
			rows = append(rows, it)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	lines := make([]orders.CartLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, orders.CartLine{
			ProductID: r.ProductID,
			Name:      t.data.products[r.ProductID].Name,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		})
	}
	return lines, nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	o.ID = t.data.next("orders")
	o.CreatedAt = t.now().UTC()
	row := *o
	row.Items = nil
	t.data.orders[o.ID] = row
	return nil
}

func (t *tx) InsertItems(_ context.Context, orderID int64, items []orders.Item) error {
	if _, ok := t.data.orders[orderID]; !ok {
		return errors.NotFoundf("order %d", orderID)
	}
	for i := range items {
		items[i].ID = t.data.next("order_items")
		items[i].OrderID = orderID
		t.data.orderItems[items[i].ID] = items[i]
	}
	return nil
}

func (t *tx) ClearCart(_ context.Context, cartID int64) error {
	for id, it := range t.data.cartItems {
		if it.CartID == cartID {
			delete(t.data.cartItems, id)
		}
	}
	return nil
}

func (t *tx) LockOrder(_ context.Context, id int64) (orders.Order, bool, error) {
	o, ok := t.data.orders[id]
	return o, ok, nil
}

func (t *tx) SetStatus(_ context.Context, id int64, status orders.Status) error {
	o, ok := t.data.orders[id]
	if !ok {
		return errors.NotFoundf("order %d", id)
	}
	o.Status = status
	t.data.orders[id] = o
	return nil
}
