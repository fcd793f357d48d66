// Package memory is an in-process datastore with the same contracts as the
// Postgres store: unique sessions, unique (cart, product) lines and
// all-or-nothing transactions. It backs local development
// (DATABASE_URL=memory://) and the package tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

type cartRow struct {
	ID        int64
	SessionID string
}

type cartItemRow struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type state struct {
	seq        map[string]int64
	categories map[int64]catalog.Category
	products   map[int64]catalog.Product
	carts      map[int64]cartRow
	sessions   map[string]int64
	cartItems  map[int64]cartItemRow
	orders     map[int64]orders.Order
	orderItems map[int64]orders.Item
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		categories: map[int64]catalog.Category{},
		products:   map[int64]catalog.Product{},
		carts:      map[int64]cartRow{},
		sessions:   map[string]int64{},
		cartItems:  map[int64]cartItemRow{},
		orders:     map[int64]orders.Order{},
		orderItems: map[int64]orders.Item{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:        maps.Clone(s.seq),
		categories: maps.Clone(s.categories),
		products:   maps.Clone(s.products),
		carts:      maps.Clone(s.carts),
		sessions:   maps.Clone(s.sessions),
		cartItems:  maps.Clone(s.cartItems),
		orders:     maps.Clone(s.orders),
		orderItems: maps.Clone(s.orderItems),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for order timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithFirstOrderID makes order ids start at id.
func WithFirstOrderID(id int64) Option {
	return func(s *Store) { s.data.seq["orders"] = id - 1 }
}

// Store is the in-memory datastore. The zero value is not usable; call New.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock
	data  *state
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{clock: clock.WallClock, data: newState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCategory seeds a category. Names are unique.
func (s *Store) AddCategory(name string) (catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.data.categories {
		if strings.EqualFold(c.Name, name) {
			return catalog.Category{}, errors.AlreadyExistsf("category %q", name)
		}
	}
	c := catalog.Category{ID: s.data.next("categories"), Name: name}
	s.data.categories[c.ID] = c
	return c, nil
}

// AddProduct seeds a product and returns it with its id.
func (s *Store) AddProduct(p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.categories[p.CategoryID]; !ok {
		return catalog.Product{}, errors.NotFoundf("category %d", p.CategoryID)
	}
	if !p.Price.IsPositive() {
		return catalog.Product{}, errors.NotValidf("price %s", p.Price)
	}
	p.ID = s.data.next("products")
	s.data.products[p.ID] = p
	return p, nil
}

// UpdateProduct replaces a product's catalog fields.
func (s *Store) UpdateProduct(p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.products[p.ID]; !ok {
		return errors.NotFoundf("product %d", p.ID)
	}
	s.data.products[p.ID] = p
	return nil
}

// CartCount reports how many carts exist.
func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.carts)
}

// OrderCount reports how many orders exist.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.orders)
}

// ListCategories implements catalog.Store.
func (s *Store) ListCategories(context.Context) ([]catalog.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Category, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListMenu implements catalog.Store.
func (s *Store) ListMenu(_ context.Context, category string) ([]catalog.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []catalog.MenuItem{}
	for _, p := range s.data.products {
		if !p.IsActive {
			continue
		}
		cat := s.data.categories[p.CategoryID]
		if category != "" && !strings.EqualFold(cat.Name, category) {
			continue
		}
		out = append(out, catalog.MenuItem{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			ImageURL:    p.ImageURL,
			Category:    cat.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// FindCartID implements cart.Store.
func (s *Store) FindCartID(_ context.Context, sessionID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.findCart(sessionID)
}

func (st *state) findCart(sessionID string) (int64, bool, error) {
	id, ok := st.sessions[sessionID]
	return id, ok, nil
}

// CreateCart implements cart.Store.
func (s *Store) CreateCart(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.sessions[sessionID]; ok {
		return 0, cart.ErrConflict
	}
	row := cartRow{ID: s.data.next("carts"), SessionID: sessionID}
	s.data.carts[row.ID] = row
	s.data.sessions[sessionID] = row.ID
	return row.ID, nil
}

// ActiveProduct implements cart.Store.
func (s *Store) ActiveProduct(_ context.Context, productID int64) (catalog.Product, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[productID]
	if !ok || !p.IsActive {
		return catalog.Product{}, false, nil
	}
	return p, true, nil
}

// FindItemByProduct implements cart.Store.
func (s *Store) FindItemByProduct(_ context.Context, cartID, productID int64) (cart.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.data.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return s.data.cartItem(it), true, nil
		}
	}
	return cart.Item{}, false, nil
}

// InsertItem implements cart.Store.
func (s *Store) InsertItem(_ context.Context, cartID, productID int64, quantity int, unitPrice decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.carts[cartID]; !ok {
		return errors.NotFoundf("cart %d", cartID)
	}
	for _, it := range s.data.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return cart.ErrConflict
		}
	}
	row := cartItemRow{
		ID:        s.data.next("cart_items"),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
	s.data.cartItems[row.ID] = row
	return nil
}

// IncrementItem implements cart.Store.
func (s *Store) IncrementItem(_ context.Context, cartID, itemID int64, delta, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.cartItems[itemID]
	if !ok || it.CartID != cartID || it.Quantity+delta > max {
		return false, nil
	}
	it.Quantity += delta
	s.data.cartItems[itemID] = it
	return true, nil
}

// SetItemQuantity implements cart.Store.
func (s *Store) SetItemQuantity(_ context.Context, cartID, itemID int64, quantity int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return false, nil
	}
	it.Quantity = quantity
	s.data.cartItems[itemID] = it
	return true, nil
}

// DeleteItem implements cart.Store.
func (s *Store) DeleteItem(_ context.Context, cartID, itemID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return false, nil
	}
	delete(s.data.cartItems, itemID)
	return true, nil
}

// ListItems implements cart.Store.
func (s *Store) ListItems(_ context.Context, cartID int64) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []cart.Item
	for _, it := range s.data.cartItems {
		if it.CartID == cartID {
			out = append(out, s.data.cartItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *state) cartItem(row cartItemRow) cart.Item {
	p := st.products[row.ProductID]
	return cart.Item{
		ID:          row.ID,
		CartID:      row.CartID,
		ProductID:   row.ProductID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Quantity:    row.Quantity,
		UnitPrice:   row.UnitPrice,
	}
}

// WithTx implements orders.Store. Transactions are serialized; fn works on a
// copy of the data that replaces the original only if fn succeeds.
func (s *Store) WithTx(_ context.Context, fn func(orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(&tx{data: work, now: s.clock.Now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// GetOrder implements orders.Store.
func (s *Store) GetOrder(_ context.Context, id int64) (orders.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data.orders[id]
	if !ok {
		return orders.Order{}, false, nil
	}
	o.Items = s.data.itemsOf(id)
	return o, true, nil
}

// EarningsSince implements orders.Store.
func (s *Store) EarningsSince(_ context.Context, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, o := range s.data.orders {
		if o.Status == orders.StatusCancelled || o.CreatedAt.Before(since) {
			continue
		}
		sum = sum.Add(o.Totals.Total)
	}
	return sum, nil
}

// ListOrders implements orders.Store.
func (s *Store) ListOrders(_ context.Context, exclude []orders.Status) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []orders.Order{}
	for _, o := range s.data.orders {
		skip := false
		for _, st := range exclude {
			if o.Status == st {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		o.Items = s.data.itemsOf(o.ID)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (st *state) itemsOf(orderID int64) []orders.Item {
	items := []orders.Item{}
	for _, it := range st.orderItems {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}
