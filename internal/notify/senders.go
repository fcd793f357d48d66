package notify

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/juju/errors"
)

// GatewaySender formats a notice and sends it through the gateway straight away.
type GatewaySender struct {
	Gateway *Gateway
}

// Deliver implements Sender.
func (s GatewaySender) Deliver(ctx context.Context, n Notice) (Result, error) {
	body := s.Gateway.FormatStatusMessage(StatusMessage{
		OrderID:      n.OrderID,
		Status:       n.Status,
		CustomerName: n.CustomerName,
	})
	return s.Gateway.Send(ctx, Message{To: n.Phone, Body: body})
}

// Publisher enqueues a message body with string attributes.
type Publisher interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

// QueueSender hands notices to a queue for the notification worker.
type QueueSender struct {
	Publisher Publisher
}

// Deliver implements Sender. The notice gets a dispatch id so the worker can
// deduplicate redeliveries.
func (s QueueSender) Deliver(ctx context.Context, n Notice) (Result, error) {
	if n.DispatchID == "" {
		n.DispatchID = uuid.NewString()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return Result{}, errors.Annotate(err, "encoding notice")
	}
	attrs := map[string]string{
		"dispatch_id": n.DispatchID,
		"order_id":    strconv.FormatInt(n.OrderID, 10),
		"status":      n.Status,
	}
	if err := s.Publisher.SendMessage(ctx, string(body), attrs); err != nil {
		return Result{}, errors.Annotatef(err, "enqueueing notice for order %d", n.OrderID)
	}
	return Result{SID: n.DispatchID}, nil
}
