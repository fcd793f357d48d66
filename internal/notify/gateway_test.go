package notify

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	g := NewGateway(Config{DefaultCountryCode: "+91"}, nil)

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"9876543210", "+919876543210", true},
		{"+1 555-0100", "+15550100", true},
		{"whatsapp:+447700900123", "+447700900123", true},
		{"(987) 654-3210", "+919876543210", true},
		{"", "", false},
		{"   ", "", false},
		{"abc", "", false},
	}
	for _, c := range cases {
		got, ok := g.NormalizePhone(c.in)
		assert.Equalf(t, c.ok, ok, "input %q", c.in)
		assert.Equalf(t, c.want, got, "input %q", c.in)
	}
}

func TestNormalizePhoneDefaultCode(t *testing.T) {
	_, ok := NewGateway(Config{}, nil).NormalizePhone("9876543210")
	assert.False(t, ok)

	got, ok := NewGateway(Config{DefaultCountryCode: "44"}, nil).NormalizePhone("7700900123")
	assert.True(t, ok)
	assert.Equal(t, "+447700900123", got)
}

func TestFormatStatusMessage(t *testing.T) {
	g := NewGateway(Config{}, nil)
	msg := g.FormatStatusMessage(StatusMessage{OrderID: 1024, Status: "out_for_delivery", CustomerName: "Asha"})
	assert.Equal(t, "Hi Asha, your Cakes n Bakes 365 order #1024 is out for delivery. Reply STATUS 1024 anytime for updates.", msg)

	msg = NewGateway(Config{BusinessName: "Crumbs"}, nil).FormatStatusMessage(StatusMessage{OrderID: 7, Status: "mystery"})
	assert.Equal(t, "Hi, your Crumbs order #7 is mystery. Reply STATUS 7 anytime for updates.", msg)
}

func TestFormatHelpMessage(t *testing.T) {
	assert.Contains(t, NewGateway(Config{}, nil).FormatHelpMessage(), "Send STATUS <order id>")
}

func TestReplyEscapes(t *testing.T) {
	out := Reply(`Tom & Jerry's <order> "now"`)
	assert.Contains(t, out, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.NotContains(t, out, "<order>")

	var env struct {
		Message string `xml:"Message"`
	}
	require.NoError(t, xml.Unmarshal([]byte(out), &env))
	assert.Equal(t, `Tom & Jerry's <order> "now"`, env.Message)
}

func TestIsEnabled(t *testing.T) {
	full := Config{AccountSID: "AC1", AuthToken: "tok", From: "whatsapp:+14155238886"}
	assert.True(t, NewGateway(full, nil).IsEnabled())

	disabled := full
	disabled.Disabled = true
	assert.False(t, NewGateway(disabled, nil).IsEnabled())

	missing := full
	missing.From = ""
	assert.False(t, NewGateway(missing, nil).IsEnabled())
}

func TestSendSkipsWhenDisabled(t *testing.T) {
	res, err := NewGateway(Config{}, nil).Send(context.Background(), Message{To: "+15550100", Body: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, ReasonNotConfigured, res.Reason)
}

func TestSendSkipsInvalidPhone(t *testing.T) {
	g := NewGateway(Config{AccountSID: "AC1", AuthToken: "tok", From: "whatsapp:+1"}, nil)
	res, err := g.Send(context.Background(), Message{To: "12345", Body: "hi"})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, ReasonInvalidPhone, res.Reason)
}

func TestSendPostsForm(t *testing.T) {
	var got url.Values
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", r.URL.Path)
		user, pass, _ = r.BasicAuth()
		b, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(b))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	g := NewGateway(Config{
		AccountSID:         "AC1",
		AuthToken:          "tok",
		From:               "whatsapp:+14155238886",
		DefaultCountryCode: "+91",
		APIBaseURL:         srv.URL,
	}, srv.Client())

	res, err := g.Send(context.Background(), Message{To: "9876543210", Body: "hello"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, "SM123", res.SID)
	assert.Equal(t, "AC1", user)
	assert.Equal(t, "tok", pass)
	assert.Equal(t, "whatsapp:+919876543210", got.Get("To"))
	assert.Equal(t, "whatsapp:+14155238886", got.Get("From"))
	assert.Equal(t, "hello", got.Get("Body"))
}

func TestSendNon2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad number", http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewGateway(Config{AccountSID: "AC1", AuthToken: "tok", From: "whatsapp:+1", APIBaseURL: srv.URL}, srv.Client())
	_, err := g.Send(context.Background(), Message{To: "+15550100", Body: "hello"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDelivery))
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "bad number")
}
