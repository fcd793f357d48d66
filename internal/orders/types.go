package orders

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/money"
)

// Status is an order's lifecycle state.
type Status string

// Order statuses
const (
	StatusPlaced         Status = "placed"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusPlaced,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForPickup,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// TerminalStatuses are excluded from the dashboard's current orders.
var TerminalStatuses = []Status{StatusDelivered, StatusCancelled}

// Valid reports whether s is a member of the status enum.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the order's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ParseStatus validates a status token.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", errors.NotValidf("status %q", s)
	}
	return st, nil
}

// ErrEmptyCart is returned when an order is placed from a missing or empty cart.
const ErrEmptyCart = errors.ConstError("cart is empty")

// Item is a frozen snapshot of a product as ordered.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal is UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return money.LineTotal(i.UnitPrice, i.Quantity)
}

// Order is immutable once placed, apart from Status.
type Order struct {
	ID            int64
	SessionID     string
	CustomerName  string
	Phone         string
	Address       string
	Notes         string
	WhatsappOptIn bool
	Totals        money.Totals
	Status        Status
	CreatedAt     time.Time
	Items         []Item
}

// Details is what the customer supplies when checking out.
type Details struct {
	SessionID     string
	CustomerName  string
	Phone         string
	Address       string
	Notes         string
	WhatsappOptIn bool
}

// Summary is the dashboard's headline numbers.
type Summary struct {
	DayEarnings          decimal.Decimal
	MonthEarnings        decimal.Decimal
	YearEarnings         decimal.Decimal
	CurrentOrdersCount   int
	InTransitOrdersCount int
}

// Dashboard is the admin overview.
type Dashboard struct {
	Summary         Summary
	CurrentOrders   []Order
	InTransitOrders []Order
}

// CartLine is a cart item as seen at checkout.
type CartLine struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Tx is the set of statements run inside one all-or-nothing transaction.
type Tx interface {
	FindCartID(ctx context.Context, sessionID string) (int64, bool, error)
	CartLines(ctx context.Context, cartID int64) ([]CartLine, error)
	// InsertOrder stores o and fills in its ID and CreatedAt.
	InsertOrder(ctx context.Context, o *Order) error
	// InsertItems stores the items of orderID and fills in their IDs.
	InsertItems(ctx context.Context, orderID int64, items []Item) error
	ClearCart(ctx context.Context, cartID int64) error
	// LockOrder reads an order (without items) and holds it until the
	// transaction ends.
	LockOrder(ctx context.Context, id int64) (Order, bool, error)
	SetStatus(ctx context.Context, id int64, status Status) error
}

// Store is the persistence the order engine needs.
type Store interface {
	// WithTx runs fn in a transaction, committing if fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
	GetOrder(ctx context.Context, id int64) (Order, bool, error)
	// EarningsSince sums totals of non-cancelled orders created at or after since.
	EarningsSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	// ListOrders returns orders whose status is not in exclude, newest first,
	// with their items.
	ListOrders(ctx context.Context, exclude []Status) ([]Order, error)
}
