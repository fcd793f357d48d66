package catalog

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
)

// Category groups menu items.
type Category struct {
	ID   int64
	Name string
}

// Product is a menu item. Inactive products are hidden from the menu and
// cannot be added to carts.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	CategoryID  int64
	IsActive    bool
}

// MenuItem is an active product with its category name.
type MenuItem struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	ImageURL    string
	Category    string
}

// Store is the read side of the catalog.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	// ListMenu returns active products, filtered by category name
	// (case-insensitive) when category is not empty.
	ListMenu(ctx context.Context, category string) ([]MenuItem, error)
}

// Service exposes the catalog projections.
type Service struct {
	store Store
}

// NewService returns a catalog Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Categories lists categories sorted by name.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	cats, err := s.store.ListCategories(ctx)
	return cats, errors.Annotate(err, "listing categories")
}

// Menu lists the active menu, optionally restricted to one category.
func (s *Service) Menu(ctx context.Context, category string) ([]MenuItem, error) {
	items, err := s.store.ListMenu(ctx, strings.TrimSpace(category))
	return items, errors.Annotate(err, "listing menu")
}
