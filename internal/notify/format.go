package notify

import (
	"encoding/xml"
	"fmt"
	"strings"
)

var statusLabels = map[string]string{
	"placed":           "placed",
	"confirmed":        "confirmed",
	"preparing":        "being prepared",
	"out_for_delivery": "out for delivery",
	"ready_for_pickup": "ready for pickup",
	"delivered":        "delivered",
	"cancelled":        "cancelled",
}

// StatusLabel maps a status token to the wording customers see. Unknown
// tokens are returned unchanged.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// StatusMessage is the data needed to describe an order's status.
type StatusMessage struct {
	OrderID      int64
	Status       string
	CustomerName string
}

// FormatStatusMessage renders the customer facing status update.
func (g *Gateway) FormatStatusMessage(m StatusMessage) string {
	greeting := "Hi,"
	if name := strings.TrimSpace(m.CustomerName); name != "" {
		greeting = fmt.Sprintf("Hi %s,", name)
	}
	return fmt.Sprintf("%s your %s order #%d is %s. Reply STATUS %d anytime for updates.",
		greeting, g.cfg.businessName(), m.OrderID, StatusLabel(m.Status), m.OrderID)
}

// FormatHelpMessage explains how to query an order over WhatsApp.
func (g *Gateway) FormatHelpMessage() string {
	return fmt.Sprintf("Welcome to %s! Send STATUS <order id> to get the latest update. Example: STATUS 1024.",
		g.cfg.businessName())
}

type replyEnvelope struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// Reply wraps message in the provider's single-message reply document.
func Reply(message string) string {
	b, err := xml.MarshalIndent(replyEnvelope{Message: message}, "", "  ")
	if err != nil {
		// A struct of plain strings always marshals.
		panic(err)
	}
	return `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + string(b)
}
