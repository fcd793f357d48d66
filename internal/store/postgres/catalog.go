package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/juju/errors"

	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
)

// ListCategories implements catalog.Store.
func (s *Store) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name FROM categories ORDER BY name ASC")
	if err != nil {
		return nil, errors.Annotate(err, "selecting categories")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	return out, errors.Annotate(err, "scanning categories")
}

// ListMenu implements catalog.Store.
func (s *Store) ListMenu(ctx context.Context, category string) ([]catalog.MenuItem, error) {
	sql := `SELECT p.id, p.name, p.description, p.price, p.image_url, c.name
		FROM products p JOIN categories c ON p.category_id = c.id
		WHERE p.is_active = TRUE`
	var args []any
	if category != "" {
		sql += " AND LOWER(c.name) = LOWER($1)"
		args = append(args, category)
	}
	sql += " ORDER BY c.name ASC, p.name ASC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Annotate(err, "selecting menu")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.MenuItem, error) {
		var m catalog.MenuItem
		err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &m.Category)
		return m, err
	})
	return out, errors.Annotate(err, "scanning menu")
}

// AddCategory inserts a category.
func (s *Store) AddCategory(ctx context.Context, name string) (catalog.Category, error) {
	c := catalog.Category{Name: name}
	err := s.pool.QueryRow(ctx, "INSERT INTO categories (name) VALUES ($1) RETURNING id", name).Scan(&c.ID)
	if err != nil {
		return catalog.Category{}, errors.Annotatef(err, "inserting category %q", name)
	}
	return c, nil
}

// AddProduct inserts a product and returns it with its id.
func (s *Store) AddProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, price, image_url, category_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Name, p.Description, p.Price, p.ImageURL, p.CategoryID, p.IsActive,
	).Scan(&p.ID)
	if err != nil {
		return catalog.Product{}, errors.Annotatef(err, "inserting product %q", p.Name)
	}
	return p, nil
}
