// Package inbound answers customer status queries sent to the business's
// WhatsApp number.
package inbound

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/imrishuroy/bakery-orderflow/internal/notify"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

var logger = loggo.GetLogger("bakery.inbound")

const refusal = "Please send updates requests from the same WhatsApp number used while placing the order."

var orderIDPattern = regexp.MustCompile(`\d{3,10}`)

// OrderLookup finds an order by id, failing with errors.NotFound.
type OrderLookup interface {
	Get(ctx context.Context, id int64) (orders.Order, error)
}

// Handler turns a free-text message into a reply.
type Handler struct {
	orders  OrderLookup
	gateway *notify.Gateway
}

// NewHandler returns a Handler reading orders from lookup and formatting
// replies with gateway.
func NewHandler(lookup OrderLookup, gateway *notify.Gateway) *Handler {
	return &Handler{orders: lookup, gateway: gateway}
}

// Reply computes the plain-text answer to body sent from the number from.
// Only datastore faults are returned as errors.
func (h *Handler) Reply(ctx context.Context, body, from string) (string, error) {
	text := strings.TrimSpace(body)
	if text == "" || strings.EqualFold(text, "help") {
		return h.gateway.FormatHelpMessage(), nil
	}

	match := orderIDPattern.FindString(text)
	if match == "" {
		return h.gateway.FormatHelpMessage(), nil
	}
	id, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return h.gateway.FormatHelpMessage(), nil
	}

	order, err := h.orders.Get(ctx, id)
	if errors.Is(err, errors.NotFound) {
		return notFound(id), nil
	}
	if err != nil {
		return "", errors.Annotatef(err, "looking up order %d", id)
	}

	if !h.sameNumber(from, order.Phone) {
		logger.Infof("status query for order %d from a different number refused", id)
		return refusal, nil
	}
	return h.gateway.FormatStatusMessage(notify.StatusMessage{
		OrderID:      order.ID,
		Status:       string(order.Status),
		CustomerName: order.CustomerName,
	}), nil
}

// ReplyXML is Reply wrapped in the provider's reply envelope.
func (h *Handler) ReplyXML(ctx context.Context, body, from string) (string, error) {
	text, err := h.Reply(ctx, body, from)
	if err != nil {
		return "", err
	}
	return notify.Reply(text), nil
}

// sameNumber fails closed: a number that cannot be normalized never matches.
func (h *Handler) sameNumber(sender, stored string) bool {
	a, ok := h.gateway.NormalizePhone(sender)
	if !ok {
		return false
	}
	b, ok := h.gateway.NormalizePhone(stored)
	if !ok {
		return false
	}
	return a == b
}

func notFound(id int64) string {
	return fmt.Sprintf("Sorry, we could not find order #%d. Please check the number and try again.", id)
}
