package memory

import (
	"github.com/juju/errors"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
)

type demoProduct struct {
	category, name, description, price string
}

var demoMenu = []demoProduct{
	{"Cakes", "Red Velvet Cake", "Cream cheese frosting, 500g", "18.25"},
	{"Cakes", "Black Forest Cake", "Cherries and dark chocolate, 500g", "16.00"},
	{"Breads", "Sourdough Loaf", "48 hour ferment", "6.50"},
	{"Breads", "Multigrain Bread", "Seeded sandwich loaf", "4.75"},
	{"Pastries", "Butter Croissant", "Laminated by hand", "2.80"},
	{"Pastries", "Blueberry Muffin", "", "2.10"},
}

// SeedDemo fills an empty Store with a small menu for local runs.
func SeedDemo(s *Store) error {
	ids := map[string]int64{}
	for _, p := range demoMenu {
		id, ok := ids[p.category]
		if !ok {
			c, err := s.AddCategory(p.category)
			if err != nil {
				return errors.Annotatef(err, "seeding category %q", p.category)
			}
			id = c.ID
			ids[p.category] = id
		}
		_, err := s.AddProduct(catalog.Product{
			Name:        p.name,
			Description: p.description,
			Price:       decimal.RequireFromString(p.price),
			CategoryID:  id,
			IsActive:    true,
		})
		if err != nil {
			return errors.Annotatef(err, "seeding product %q", p.name)
		}
	}
	return nil
}
