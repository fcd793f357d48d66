package handlers

import (
	"encoding/json"
	"time"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/money"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

type categoryJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type menuItemJSON struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	ImageURL    string      `json:"imageUrl"`
	Category    string      `json:"category"`
}

type cartItemJSON struct {
	ID          int64       `json:"id"`
	ProductID   int64       `json:"productId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ImageURL    string      `json:"imageUrl"`
	Quantity    int         `json:"quantity"`
	UnitPrice   json.Number `json:"unitPrice"`
	LineTotal   json.Number `json:"lineTotal"`
}

type cartJSON struct {
	SessionID string           `json:"sessionId"`
	Items     []cartItemJSON   `json:"items"`
	Totals    money.TotalsJSON `json:"totals"`
}

type orderItemJSON struct {
	ID        int64       `json:"id"`
	ProductID int64       `json:"productId"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unitPrice"`
	LineTotal json.Number `json:"lineTotal"`
}

type orderJSON struct {
	OrderID       int64            `json:"orderId"`
	CreatedAt     time.Time        `json:"createdAt"`
	CustomerName  string           `json:"customerName"`
	Phone         string           `json:"phone"`
	Address       string           `json:"address"`
	Notes         string           `json:"notes"`
	WhatsappOptIn bool             `json:"whatsappOptIn"`
	Items         []orderItemJSON  `json:"items"`
	Totals        money.TotalsJSON `json:"totals"`
	Status        orders.Status    `json:"status"`
}

type statusJSON struct {
	OrderID       int64         `json:"orderId"`
	Status        orders.Status `json:"status"`
	WhatsappOptIn bool          `json:"whatsappOptIn"`
}

type loginJSON struct {
	Token            string `json:"token"`
	Username         string `json:"username"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type summaryJSON struct {
	CurrentOrdersCount   int         `json:"currentOrdersCount"`
	InTransitOrdersCount int         `json:"inTransitOrdersCount"`
	DayEarnings          json.Number `json:"dayEarnings"`
	MonthEarnings        json.Number `json:"monthEarnings"`
	YearEarnings         json.Number `json:"yearEarnings"`
}

type dashboardOrderJSON struct {
	OrderID      int64            `json:"orderId"`
	CustomerName string           `json:"customerName"`
	Phone        string           `json:"phone"`
	Address      string           `json:"address"`
	Notes        string           `json:"notes"`
	Status       orders.Status    `json:"status"`
	Totals       money.TotalsJSON `json:"totals"`
	CreatedAt    time.Time        `json:"createdAt"`
	Items        []orderItemJSON  `json:"items"`
}

type dashboardJSON struct {
	Summary         summaryJSON          `json:"summary"`
	CurrentOrders   []dashboardOrderJSON `json:"currentOrders"`
	InTransitOrders []dashboardOrderJSON `json:"inTransitOrders"`
}

func toCategories(in []catalog.Category) []categoryJSON {
	out := make([]categoryJSON, 0, len(in))
	for _, c := range in {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name})
	}
	return out
}

func toMenu(in []catalog.MenuItem) []menuItemJSON {
	out := make([]menuItemJSON, 0, len(in))
	for _, p := range in {
		out = append(out, menuItemJSON{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       money.JSON(p.Price),
			ImageURL:    p.ImageURL,
			Category:    p.Category,
		})
	}
	return out
}

func toCart(c cart.Cart) cartJSON {
	items := make([]cartItemJSON, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemJSON{
			ID:          it.ID,
			ProductID:   it.ProductID,
			Name:        it.Name,
			Description: it.Description,
			ImageURL:    it.ImageURL,
			Quantity:    it.Quantity,
			UnitPrice:   money.JSON(it.UnitPrice),
			LineTotal:   money.JSON(it.LineTotal()),
		})
	}
	return cartJSON{SessionID: c.SessionID, Items: items, Totals: c.Totals.JSON()}
}

func toOrderItems(in []orders.Item) []orderItemJSON {
	out := make([]orderItemJSON, 0, len(in))
	for _, it := range in {
		out = append(out, orderItemJSON{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: money.JSON(it.UnitPrice),
			LineTotal: money.JSON(it.LineTotal()),
		})
	}
	return out
}

func toOrder(o orders.Order) orderJSON {
	return orderJSON{
		OrderID:       o.ID,
		CreatedAt:     o.CreatedAt,
		CustomerName:  o.CustomerName,
		Phone:         o.Phone,
		Address:       o.Address,
		Notes:         o.Notes,
		WhatsappOptIn: o.WhatsappOptIn,
		Items:         toOrderItems(o.Items),
		Totals:        o.Totals.JSON(),
		Status:        o.Status,
	}
}

func toDashboardOrders(in []orders.Order) []dashboardOrderJSON {
	out := make([]dashboardOrderJSON, 0, len(in))
	for _, o := range in {
		out = append(out, dashboardOrderJSON{
			OrderID:      o.ID,
			CustomerName: o.CustomerName,
			Phone:        o.Phone,
			Address:      o.Address,
			Notes:        o.Notes,
			Status:       o.Status,
			Totals:       o.Totals.JSON(),
			CreatedAt:    o.CreatedAt,
			Items:        toOrderItems(o.Items),
		})
	}
	return out
}

func toDashboard(d orders.Dashboard) dashboardJSON {
	return dashboardJSON{
		Summary: summaryJSON{
			CurrentOrdersCount:   d.Summary.CurrentOrdersCount,
			InTransitOrdersCount: d.Summary.InTransitOrdersCount,
			DayEarnings:          money.JSON(d.Summary.DayEarnings),
			MonthEarnings:        money.JSON(d.Summary.MonthEarnings),
			YearEarnings:         money.JSON(d.Summary.YearEarnings),
		},
		CurrentOrders:   toDashboardOrders(d.CurrentOrders),
		InTransitOrders: toDashboardOrders(d.InTransitOrders),
	}
}
