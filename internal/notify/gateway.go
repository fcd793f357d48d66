package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("bakery.notify")

// ErrDelivery is returned when the provider rejects a message.
const ErrDelivery = errors.ConstError("notification delivery failed")

// Skip reasons reported in Result.
const (
	ReasonNotConfigured = "not_configured"
	ReasonInvalidPhone  = "invalid_phone"
)

// Message is an outbound WhatsApp message.
type Message struct {
	To   string
	Body string
}

// Result describes what Send did.
type Result struct {
	Skipped bool
	Reason  string
	SID     string
}

// HTTPDoer is the subset of *http.Client used by the gateway.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Gateway formats and delivers order status messages through the provider.
type Gateway struct {
	cfg    Config
	client HTTPDoer
}

// NewGateway returns a gateway. A nil client gets a default with a short timeout.
func NewGateway(cfg Config, client HTTPDoer) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Gateway{cfg: cfg, client: client}
}

// IsEnabled reports whether provider credentials and sender are all configured
// and the gateway has not been switched off.
func (g *Gateway) IsEnabled() bool {
	if g.cfg.Disabled {
		return false
	}
	return g.cfg.AccountSID != "" && g.cfg.AuthToken != "" && g.cfg.From != ""
}

type sendForm struct {
	To   string `url:"To"`
	From string `url:"From"`
	Body string `url:"Body"`
}

type sendResponse struct {
	SID string `json:"sid"`
}

// Send delivers m. It is a no-op when the gateway is disabled or the
// recipient cannot be normalized. Provider rejections wrap ErrDelivery.
func (g *Gateway) Send(ctx context.Context, m Message) (Result, error) {
	if !g.IsEnabled() {
		return Result{Skipped: true, Reason: ReasonNotConfigured}, nil
	}
	to, ok := g.NormalizePhone(m.To)
	if !ok {
		return Result{Skipped: true, Reason: ReasonInvalidPhone}, nil
	}

	form, err := query.Values(sendForm{To: whatsappPrefix + to, From: g.cfg.From, Body: m.Body})
	if err != nil {
		return Result{}, errors.Annotate(err, "encoding message form")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(g.cfg.apiBaseURL(), "/"), g.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, errors.Annotate(err, "building provider request")
	}
	req.SetBasicAuth(g.cfg.AccountSID, g.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = "unknown error"
		}
		return Result{}, fmt.Errorf("%w (%d): %s", ErrDelivery, resp.StatusCode, text)
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		logger.Warningf("provider accepted message but returned unreadable body: %v", err)
	}
	return Result{SID: out.SID}, nil
}
