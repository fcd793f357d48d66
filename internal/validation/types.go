package validation

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Int is an integer that also accepts a numeric JSON string, so "3" and 3
// bind the same way.
type Int int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *Int) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return &json.UnmarshalTypeError{Value: "number " + string(b), Type: intType}
	}
	*i = Int(n)
	return nil
}

// SessionParams identifies a cart by its client generated session id.
type SessionParams struct {
	SessionID string `uri:"sessionId" json:"sessionId" validate:"min=6,max=64"`
}

func (p *SessionParams) normalize() { p.SessionID = strings.TrimSpace(p.SessionID) }

// ItemParams identifies a line in a session's cart.
type ItemParams struct {
	SessionID string `uri:"sessionId" json:"sessionId" validate:"min=6,max=64"`
	ItemID    int64  `uri:"itemId" json:"itemId" validate:"gt=0"`
}

func (p *ItemParams) normalize() { p.SessionID = strings.TrimSpace(p.SessionID) }

// OrderParams identifies an order.
type OrderParams struct {
	OrderID int64 `uri:"orderId" json:"orderId" validate:"gt=0"`
}

// MenuQuery filters the menu.
type MenuQuery struct {
	Category string `form:"category" json:"category" validate:"omitempty,min=1"`
}

func (q *MenuQuery) normalize() { q.Category = strings.TrimSpace(q.Category) }

// AddCartItemRequest is the payload for POST /cart/:sessionId/items.
type AddCartItemRequest struct {
	ProductID Int `json:"productId" validate:"gt=0"`
	Quantity  Int `json:"quantity" validate:"min=1,max=20"`
}

// UpdateCartItemRequest is the payload for PATCH /cart/:sessionId/items/:itemId.
// Zero removes the line.
type UpdateCartItemRequest struct {
	Quantity *Int `json:"quantity" validate:"required,min=0,max=20"`
}

// CreateOrderRequest is the payload for POST /orders.
type CreateOrderRequest struct {
	SessionID     string `json:"sessionId" validate:"min=6,max=64"`
	CustomerName  string `json:"customerName" validate:"min=2,max=80"`
	Phone         string `json:"phone" validate:"min=8,max=20"`
	Address       string `json:"address" validate:"min=5,max=200"`
	Notes         string `json:"notes" validate:"max=300"`
	WhatsappOptIn bool   `json:"whatsappOptIn"`
}

func (r *CreateOrderRequest) normalize() {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.Notes = strings.TrimSpace(r.Notes)
}

// Fingerprint is the hex SHA-256 of the normalized request. Two checkouts
// with the same fingerprint are the same request.
func (r CreateOrderRequest) Fingerprint() string {
	raw, _ := json.Marshal(r)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// UpdateStatusRequest is the payload for PATCH /orders/:orderId/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// LoginRequest is the payload for POST /admin/login.
type LoginRequest struct {
	Username string `json:"username" validate:"min=1,max=64"`
	Password string `json:"password" validate:"min=1,max=128"`
}

func (r *LoginRequest) normalize() { r.Username = strings.TrimSpace(r.Username) }
