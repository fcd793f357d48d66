package inbound_test

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/catalog"
	"github.com/imrishuroy/bakery-orderflow/internal/inbound"
	"github.com/imrishuroy/bakery-orderflow/internal/notify"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
	"github.com/imrishuroy/bakery-orderflow/internal/store/memory"
)

const (
	help     = "Welcome to Cakes n Bakes 365! Send STATUS <order id> to get the latest update. Example: STATUS 1024."
	refusal  = "Please send updates requests from the same WhatsApp number used while placing the order."
	placed   = "Hi Meera, your Cakes n Bakes 365 order #1024 is placed. Reply STATUS 1024 anytime for updates."
	sender   = "whatsapp:+919876543210"
	stranger = "whatsapp:+14155550100"
)

type fixture struct {
	handler *inbound.Handler
	engine  *orders.Engine
	order   orders.Order
}

func newFixture(t *testing.T, gwCfg notify.Config) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New(memory.WithFirstOrderID(1024))
	cat, err := st.AddCategory("Cakes")
	require.NoError(t, err)
	p, err := st.AddProduct(catalog.Product{Name: "Plum Cake", Price: decimal.RequireFromString("9.99"), CategoryID: cat.ID, IsActive: true})
	require.NoError(t, err)

	_, err = cart.NewEngine(st).AddItem(ctx, "session-meera", p.ID, 1)
	require.NoError(t, err)
	engine := orders.NewEngine(st, nil, orders.Options{})
	o, err := engine.PlaceOrder(ctx, orders.Details{
		SessionID:    "session-meera",
		CustomerName: "Meera",
		Phone:        "98765 43210",
		Address:      "4 Park Lane",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1024), o.ID)

	return &fixture{
		handler: inbound.NewHandler(engine, notify.NewGateway(gwCfg, nil)),
		engine:  engine,
		order:   o,
	}
}

func indiaGateway() notify.Config {
	return notify.Config{DefaultCountryCode: "91"}
}

func TestReplyHelp(t *testing.T) {
	f := newFixture(t, indiaGateway())
	for _, body := range []string{"", "   ", "help", "HELP", " Help ", "what is my order?", "STATUS 12"} {
		got, err := f.handler.Reply(context.Background(), body, sender)
		require.NoError(t, err)
		assert.Equal(t, help, got, "body %q", body)
	}
}

func TestReplyStatus(t *testing.T) {
	f := newFixture(t, indiaGateway())
	for _, body := range []string{"STATUS 1024", "status 1024", "where is #1024?", "1024"} {
		got, err := f.handler.Reply(context.Background(), body, sender)
		require.NoError(t, err)
		assert.Equal(t, placed, got, "body %q", body)
	}
}

func TestReplyFollowsStatusChanges(t *testing.T) {
	f := newFixture(t, indiaGateway())
	ctx := context.Background()
	_, err := f.engine.SetStatus(ctx, f.order.ID, orders.StatusPreparing)
	require.NoError(t, err)

	got, err := f.handler.Reply(ctx, "STATUS 1024", sender)
	require.NoError(t, err)
	assert.Equal(t, "Hi Meera, your Cakes n Bakes 365 order #1024 is being prepared. Reply STATUS 1024 anytime for updates.", got)
}

func TestReplyRefusesOtherNumbers(t *testing.T) {
	f := newFixture(t, indiaGateway())
	got, err := f.handler.Reply(context.Background(), "STATUS 1024", stranger)
	require.NoError(t, err)
	assert.Equal(t, refusal, got)
}

func TestReplyFailsClosedWithoutCountryCode(t *testing.T) {
	// The stored number has no country code and none is configured, so it can
	// never be matched.
	f := newFixture(t, notify.Config{})
	got, err := f.handler.Reply(context.Background(), "STATUS 1024", sender)
	require.NoError(t, err)
	assert.Equal(t, refusal, got)
}

func TestReplyUnknownOrder(t *testing.T) {
	f := newFixture(t, indiaGateway())
	got, err := f.handler.Reply(context.Background(), "STATUS 9999", sender)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, we could not find order #9999. Please check the number and try again.", got)
}

type brokenLookup struct{}

func (brokenLookup) Get(context.Context, int64) (orders.Order, error) {
	return orders.Order{}, errors.New("connection refused")
}

func TestReplyDatastoreFault(t *testing.T) {
	h := inbound.NewHandler(brokenLookup{}, notify.NewGateway(indiaGateway(), nil))
	_, err := h.Reply(context.Background(), "STATUS 1024", sender)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestReplyXML(t *testing.T) {
	f := newFixture(t, notify.Config{DefaultCountryCode: "91", BusinessName: "Crumbs & Co"})
	got, err := f.handler.ReplyXML(context.Background(), "help", sender)
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"+
		"<Response>\n  <Message>Welcome to Crumbs &amp; Co! Send STATUS &lt;order id&gt; to get the latest update. Example: STATUS 1024.</Message>\n</Response>", got)
}
