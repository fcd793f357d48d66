package cart

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/money"
)

var logger = loggo.GetLogger("bakery.cart")

// conflictRetries bounds how often a lost unique-constraint race is retried.
const conflictRetries = 3

// Engine implements the session scoped cart rules.
type Engine struct {
	store Store
	tax   money.TaxPolicy
}

// NewEngine returns a cart Engine.
func NewEngine(store Store) *Engine {
	return &Engine{store: store, tax: money.NoTax}
}

// GetOrCreateCart returns the cart id for sessionID, creating the cart on
// first use. Two first requests racing for the same session end up on the
// same cart: the loser's insert hits the unique constraint and re-reads.
func (e *Engine) GetOrCreateCart(ctx context.Context, sessionID string) (int64, error) {
	for attempt := 0; attempt < conflictRetries; attempt++ {
		id, ok, err := e.store.FindCartID(ctx, sessionID)
		if err != nil {
			return 0, errors.Annotate(err, "finding cart")
		}
		if ok {
			return id, nil
		}
		id, err = e.store.CreateCart(ctx, sessionID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrConflict) {
			return 0, errors.Annotate(err, "creating cart")
		}
		logger.Debugf("cart for session %q created concurrently; re-reading", sessionID)
	}
	return 0, errors.Errorf("could not resolve cart for session %q", sessionID)
}

// AddItem adds quantity of productID to the session's cart. Adding a product
// already in the cart increases that line's quantity.
func (e *Engine) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (Cart, error) {
	if quantity < 1 || quantity > money.MaxQuantity {
		return Cart{}, errors.NotValidf("quantity %d", quantity)
	}
	product, ok, err := e.store.ActiveProduct(ctx, productID)
	if err != nil {
		return Cart{}, errors.Annotate(err, "loading product")
	}
	if !ok {
		return Cart{}, errors.NotFoundf("product")
	}

	cartID, err := e.GetOrCreateCart(ctx, sessionID)
	if err != nil {
		return Cart{}, errors.Trace(err)
	}

	for attempt := 0; attempt < conflictRetries; attempt++ {
		done, err := e.addOnce(ctx, cartID, productID, quantity, product.Price)
		if err != nil {
			return Cart{}, err
		}
		if done {
			return e.GetCart(ctx, sessionID)
		}
	}
	return Cart{}, errors.Errorf("could not add product %d to cart %d", productID, cartID)
}

// addOnce reports false when it lost a race and should be retried.
func (e *Engine) addOnce(ctx context.Context, cartID, productID int64, quantity int, price decimal.Decimal) (bool, error) {
	existing, ok, err := e.store.FindItemByProduct(ctx, cartID, productID)
	if err != nil {
		return false, errors.Annotate(err, "finding cart item")
	}
	if ok {
		if existing.Quantity+quantity > money.MaxQuantity {
			return false, ErrQuantityExceeded
		}
		changed, err := e.store.IncrementItem(ctx, cartID, existing.ID, quantity, money.MaxQuantity)
		if err != nil {
			return false, errors.Annotate(err, "incrementing cart item")
		}
		if !changed {
			// Either a concurrent add pushed the line past the limit or the
			// line was removed; re-read to find out which.
			return false, nil
		}
		return true, nil
	}

	err = e.store.InsertItem(ctx, cartID, productID, quantity, price)
	if errors.Is(err, ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, errors.Annotate(err, "inserting cart item")
	}
	return true, nil
}

// UpdateItem sets a line's quantity. A quantity of zero or less removes the line.
func (e *Engine) UpdateItem(ctx context.Context, sessionID string, itemID int64, quantity int) (Cart, error) {
	if quantity > money.MaxQuantity {
		return Cart{}, ErrQuantityExceeded
	}
	cartID, err := e.requireCart(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}

	if quantity <= 0 {
		if _, err := e.store.DeleteItem(ctx, cartID, itemID); err != nil {
			return Cart{}, errors.Annotate(err, "deleting cart item")
		}
		return e.GetCart(ctx, sessionID)
	}

	changed, err := e.store.SetItemQuantity(ctx, cartID, itemID, quantity)
	if err != nil {
		return Cart{}, errors.Annotate(err, "updating cart item")
	}
	if !changed {
		return Cart{}, errors.NotFoundf("item")
	}
	return e.GetCart(ctx, sessionID)
}

// RemoveItem deletes a line from the session's cart.
func (e *Engine) RemoveItem(ctx context.Context, sessionID string, itemID int64) (Cart, error) {
	cartID, err := e.requireCart(ctx, sessionID)
	if err != nil {
		return Cart{}, err
	}
	deleted, err := e.store.DeleteItem(ctx, cartID, itemID)
	if err != nil {
		return Cart{}, errors.Annotate(err, "deleting cart item")
	}
	if !deleted {
		return Cart{}, errors.NotFoundf("item")
	}
	return e.GetCart(ctx, sessionID)
}

// GetCart returns the session's cart. An unknown session gets an empty cart.
func (e *Engine) GetCart(ctx context.Context, sessionID string) (Cart, error) {
	c := Cart{SessionID: sessionID, Items: []Item{}, Totals: money.Compute(nil, e.tax)}

	cartID, ok, err := e.store.FindCartID(ctx, sessionID)
	if err != nil {
		return Cart{}, errors.Annotate(err, "finding cart")
	}
	if !ok {
		return c, nil
	}

	items, err := e.store.ListItems(ctx, cartID)
	if err != nil {
		return Cart{}, errors.Annotate(err, "listing cart items")
	}
	lines := make([]decimal.Decimal, 0, len(items))
	for _, it := range items {
		lines = append(lines, it.LineTotal())
	}
	if len(items) > 0 {
		c.Items = items
	}
	c.Totals = money.Compute(lines, e.tax)
	return c, nil
}

func (e *Engine) requireCart(ctx context.Context, sessionID string) (int64, error) {
	cartID, ok, err := e.store.FindCartID(ctx, sessionID)
	if err != nil {
		return 0, errors.Annotate(err, "finding cart")
	}
	if !ok {
		return 0, errors.NotFoundf("cart")
	}
	return cartID, nil
}
