package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/bakery-orderflow/internal/admin"
	"github.com/imrishuroy/bakery-orderflow/internal/config"
	"github.com/imrishuroy/bakery-orderflow/internal/notify"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, config.DefaultDatabaseURL, cfg.DatabaseURL)
	assert.False(t, cfg.UsesMemoryStore())
	assert.Empty(t, cfg.ClientOrigins)
	assert.Equal(t, admin.DefaultTokenTTL, cfg.Admin.TokenTTL)
	assert.Empty(t, cfg.Admin.Username)
	assert.False(t, cfg.Notify.Disabled)
	assert.Equal(t, notify.DefaultBusinessName, cfg.Notify.BusinessName)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.False(t, cfg.RunLocal)
	assert.Equal(t, config.DefaultLogConfig, cfg.LogConfig)
}

func TestLoadValues(t *testing.T) {
	cfg, err := config.Load(envOf(map[string]string{
		"PORT":                          "8080",
		"DATABASE_URL":                  "memory://",
		"CLIENT_ORIGIN":                 "https://shop.example, http://localhost:5173 ,",
		"ADMIN_USERNAME":                "owner",
		"ADMIN_PASSWORD":                "s3cret",
		"ADMIN_AUTH_SECRET":             "signing-key",
		"ADMIN_TOKEN_TTL_SECONDS":       "3600",
		"WHATSAPP_ENABLED":              "FALSE",
		"WHATSAPP_ACCOUNT_SID":          "AC123",
		"WHATSAPP_DEFAULT_COUNTRY_CODE": "91",
		"BUSINESS_TIMEZONE":             "Asia/Kolkata",
		"NOTIFY_QUEUE_URL":              "https://sqs.local/notify",
		"RUN_LOCAL":                     "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, []string{"https://shop.example", "http://localhost:5173"}, cfg.ClientOrigins)
	assert.Equal(t, admin.Config{Username: "owner", Password: "s3cret", TokenSecret: "signing-key", TokenTTL: time.Hour}, cfg.Admin)
	assert.True(t, cfg.Notify.Disabled)
	assert.Equal(t, "AC123", cfg.Notify.AccountSID)
	assert.Equal(t, "91", cfg.Notify.DefaultCountryCode)
	assert.Equal(t, "Asia/Kolkata", cfg.Location.String())
	assert.Equal(t, "https://sqs.local/notify", cfg.NotifyQueueURL)
	assert.True(t, cfg.RunLocal)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	for key, value := range map[string]string{
		"PORT":                    "http",
		"ADMIN_TOKEN_TTL_SECONDS": "-5",
		"BUSINESS_TIMEZONE":       "Mars/Olympus",
		"RUN_LOCAL":               "sometimes",
	} {
		_, err := config.Load(envOf(map[string]string{key: value}))
		assert.Truef(t, errors.Is(err, errors.NotValid), "%s=%s: %v", key, value, err)
	}
}

func TestLoadFromEnvironmentReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WHATSAPP_BUSINESS_NAME=Crumbs\n"), 0o600))
	t.Setenv("WHATSAPP_BUSINESS_NAME", "")
	require.NoError(t, os.Unsetenv("WHATSAPP_BUSINESS_NAME"))

	cfg, err := config.LoadFromEnvironment(path)
	require.NoError(t, err)
	assert.Equal(t, "Crumbs", cfg.Notify.BusinessName)
}

func TestLoadFromEnvironmentToleratesMissingFile(t *testing.T) {
	_, err := config.LoadFromEnvironment(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
