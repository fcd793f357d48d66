package cart

import (
	"context"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/money"
)

// ErrQuantityExceeded is returned when a line would hold more than
// money.MaxQuantity units.
const ErrQuantityExceeded = errors.ConstError("quantity limit is 20")

// ErrConflict is returned by a Store when a unique constraint rejects a write.
const ErrConflict = errors.ConstError("unique constraint conflict")

// Item is one line of a cart. UnitPrice is frozen when the line is created.
type Item struct {
	ID          int64
	CartID      int64
	ProductID   int64
	Name        string
	Description string
	ImageURL    string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// LineTotal is UnitPrice × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return money.LineTotal(i.UnitPrice, i.Quantity)
}

// Cart is the payload returned for a session.
type Cart struct {
	SessionID string
	Items     []Item
	Totals    money.Totals
}

// Store is the persistence the cart engine needs. Implementations must enforce
// one cart per session and one line per (cart, product), reporting violations
// as ErrConflict.
type Store interface {
	FindCartID(ctx context.Context, sessionID string) (int64, bool, error)
	CreateCart(ctx context.Context, sessionID string) (int64, error)

	// ActiveProduct returns the product if it exists and is active.
	ActiveProduct(ctx context.Context, productID int64) (catalog.Product, bool, error)

	FindItemByProduct(ctx context.Context, cartID, productID int64) (Item, bool, error)
	InsertItem(ctx context.Context, cartID, productID int64, quantity int, unitPrice decimal.Decimal) error
	// IncrementItem adds delta to the line's quantity in one statement, only if
	// the result stays within max. It reports whether a row was changed.
	IncrementItem(ctx context.Context, cartID, itemID int64, delta, max int) (bool, error)
	SetItemQuantity(ctx context.Context, cartID, itemID int64, quantity int) (bool, error)
	DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error)
	// ListItems returns the cart's lines ordered by id, with display fields
	// taken from the product and price from the line.
	ListItems(ctx context.Context, cartID int64) ([]Item, error)
}
