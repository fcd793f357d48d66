package notify

// DefaultBusinessName is used in messages when none is configured.
const DefaultBusinessName = "Cakes n Bakes 365"

// DefaultAPIBaseURL is the messaging provider's REST endpoint.
const DefaultAPIBaseURL = "https://api.twilio.com"

// Config configures the WhatsApp gateway. An unconfigured gateway is a silent no-op.
type Config struct {
	// Disabled forces the gateway off even when credentials are present.
	Disabled           bool
	AccountSID         string
	AuthToken          string
	From               string
	DefaultCountryCode string
	BusinessName       string
	APIBaseURL         string
}

func (c Config) businessName() string {
	if c.BusinessName == "" {
		return DefaultBusinessName
	}
	return c.BusinessName
}

func (c Config) apiBaseURL() string {
	if c.APIBaseURL == "" {
		return DefaultAPIBaseURL
	}
	return c.APIBaseURL
}
