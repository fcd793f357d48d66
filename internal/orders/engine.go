package orders

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/money"
	"github.com/imrishuroy/bakery-orderflow/internal/notify"
)

var logger = loggo.GetLogger("bakery.orders")

// Notifier receives post-commit status notices. Implementations must not block.
type Notifier interface {
	Notify(n notify.Notice)
}

// Recorder observes order events for metrics.
type Recorder interface {
	OrderPlaced()
	StatusChanged(status string)
}

// Options configures an Engine. Zero values get sensible defaults.
type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Policy   TransitionPolicy
	Tax      money.TaxPolicy
	Recorder Recorder
}

// Engine converts carts into orders and manages their status.
type Engine struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	loc      *time.Location
	policy   TransitionPolicy
	tax      money.TaxPolicy
	recorder Recorder
}

// NewEngine returns an order Engine. notifier may be nil to disable notices.
func NewEngine(store Store, notifier Notifier, opts Options) *Engine {
	e := &Engine{
		store:    store,
		notifier: notifier,
		clock:    opts.Clock,
		loc:      opts.Location,
		policy:   opts.Policy,
		tax:      opts.Tax,
		recorder: opts.Recorder,
	}
	if e.clock == nil {
		e.clock = clock.WallClock
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.policy == nil {
		e.policy = AnyTransition
	}
	if e.tax == nil {
		e.tax = money.NoTax
	}
	return e
}

// PlaceOrder snapshots the session's cart into a new order and empties the
// cart, all in one transaction. The placed notice is sent after commit.
func (e *Engine) PlaceOrder(ctx context.Context, d Details) (Order, error) {
	var order Order
	err := e.store.WithTx(ctx, func(tx Tx) error {
		cartID, ok, err := tx.FindCartID(ctx, d.SessionID)
		if err != nil {
			return errors.Annotate(err, "finding cart")
		}
		if !ok {
			return ErrEmptyCart
		}
		lines, err := tx.CartLines(ctx, cartID)
		if err != nil {
			return errors.Annotate(err, "loading cart lines")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		items := make([]Item, 0, len(lines))
		totals := make([]decimal.Decimal, 0, len(lines))
		for _, l := range lines {
			it := Item{
				ProductID: l.ProductID,
				Name:      l.Name,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
			}
			items = append(items, it)
			totals = append(totals, it.LineTotal())
		}

		order = Order{
			SessionID:     d.SessionID,
			CustomerName:  d.CustomerName,
			Phone:         d.Phone,
			Address:       d.Address,
			Notes:         d.Notes,
			WhatsappOptIn: d.WhatsappOptIn,
			Totals:        money.Compute(totals, e.tax),
			Status:        StatusPlaced,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return errors.Annotate(err, "inserting order")
		}
		if err := tx.InsertItems(ctx, order.ID, items); err != nil {
			return errors.Annotate(err, "inserting order items")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		order.Items = items

		return errors.Annotate(tx.ClearCart(ctx, cartID), "clearing cart")
	})
	if err != nil {
		return Order{}, err
	}

	logger.Infof("order %d placed for session %q (total %s)", order.ID, order.SessionID, order.Totals.Total.StringFixed(2))
	if e.recorder != nil {
		e.recorder.OrderPlaced()
	}
	e.notify(order)
	return order, nil
}

// SetStatus moves an order to status. Missing orders fail with NotFound and
// nothing is written.
func (e *Engine) SetStatus(ctx context.Context, id int64, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, errors.NotValidf("status %q", status)
	}

	var order Order
	err := e.store.WithTx(ctx, func(tx Tx) error {
		current, ok, err := tx.LockOrder(ctx, id)
		if err != nil {
			return errors.Annotate(err, "loading order")
		}
		if !ok {
			return errors.NotFoundf("order")
		}
		if err := e.policy(current.Status, status); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, id, status); err != nil {
			return errors.Annotate(err, "updating order status")
		}
		current.Status = status
		order = current
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	logger.Infof("order %d status set to %s", order.ID, order.Status)
	if e.recorder != nil {
		e.recorder.StatusChanged(string(order.Status))
	}
	e.notify(order)
	return order, nil
}

// Get returns an order with its items.
func (e *Engine) Get(ctx context.Context, id int64) (Order, error) {
	o, ok, err := e.store.GetOrder(ctx, id)
	if err != nil {
		return Order{}, errors.Annotate(err, "loading order")
	}
	if !ok {
		return Order{}, errors.NotFoundf("order")
	}
	return o, nil
}

// Dashboard computes earnings for the current day, month and year in the
// business time zone, and lists current and in-transit orders.
func (e *Engine) Dashboard(ctx context.Context) (Dashboard, error) {
	now := e.clock.Now().In(e.loc)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, e.loc)
	year := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, e.loc)

	var (
		summary Summary
		err     error
	)
	if summary.DayEarnings, err = e.store.EarningsSince(ctx, day); err != nil {
		return Dashboard{}, errors.Annotate(err, "summing day earnings")
	}
	if summary.MonthEarnings, err = e.store.EarningsSince(ctx, month); err != nil {
		return Dashboard{}, errors.Annotate(err, "summing month earnings")
	}
	if summary.YearEarnings, err = e.store.EarningsSince(ctx, year); err != nil {
		return Dashboard{}, errors.Annotate(err, "summing year earnings")
	}

	current, err := e.store.ListOrders(ctx, TerminalStatuses)
	if err != nil {
		return Dashboard{}, errors.Annotate(err, "listing current orders")
	}
	inTransit := []Order{}
	for _, o := range current {
		if o.Status == StatusOutForDelivery {
			inTransit = append(inTransit, o)
		}
	}
	if current == nil {
		current = []Order{}
	}
	summary.CurrentOrdersCount = len(current)
	summary.InTransitOrdersCount = len(inTransit)

	return Dashboard{
		Summary:         summary,
		CurrentOrders:   current,
		InTransitOrders: inTransit,
	}, nil
}

// notify hands the order's status to the notifier once the write has
// committed. Delivery happens elsewhere and cannot fail this call.
func (e *Engine) notify(o Order) {
	if e.notifier == nil || !o.WhatsappOptIn {
		return
	}
	e.notifier.Notify(notify.Notice{
		OrderID:      o.ID,
		Status:       string(o.Status),
		CustomerName: o.CustomerName,
		Phone:        o.Phone,
	})
}
