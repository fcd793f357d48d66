package admin

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("bakery.admin")

// ErrTokenExpired is returned, typed as errors.Unauthorized, for a correctly
// signed token past its expiry.
const ErrTokenExpired = errors.ConstError("admin token expired")

// DefaultTokenTTL is used when the operator does not configure a TTL.
const DefaultTokenTTL = 12 * time.Hour

// Config holds the operator supplied admin credentials and token settings.
type Config struct {
	Username    string
	Password    string
	TokenSecret string
	TokenTTL    time.Duration
}

// Principal is the admin identity decoded from a verified token.
type Principal struct {
	Username  string
	ExpiresAt time.Time
}

// Token is an issued bearer token.
type Token struct {
	Value     string
	Username  string
	ExpiresAt time.Time
}

type tokenPayload struct {
	Username string `json:"username"`
	Exp      int64  `json:"exp"` // unix millis
}

// Service issues and verifies stateless admin bearer tokens. Tokens cannot be
// revoked; they stay valid until they expire.
type Service struct {
	username []byte
	password []byte
	secret   []byte
	ttl      time.Duration
	clock    clock.Clock
}

// NewService returns a Service for cfg. A missing token secret is replaced by a
// random per-process secret.
func NewService(cfg Config, clk clock.Clock) (*Service, error) {
	if clk == nil {
		clk = clock.WallClock
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	secret := []byte(cfg.TokenSecret)
	if len(secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, errors.Annotate(err, "generating admin token secret")
		}
		secret = []byte(hex.EncodeToString(buf))
		logger.Warningf("ADMIN_AUTH_SECRET not set; admin tokens will not survive a restart")
	}
	if cfg.Username == "" || cfg.Password == "" {
		logger.Warningf("admin credentials not configured; admin login is disabled")
	}
	return &Service{
		username: []byte(cfg.Username),
		password: []byte(cfg.Password),
		secret:   secret,
		ttl:      ttl,
		clock:    clk,
	}, nil
}

// TTL is the lifetime of newly issued tokens.
func (s *Service) TTL() time.Duration { return s.ttl }

// CheckCredentials reports whether username and password match the configured
// admin. It always fails when no credentials are configured.
func (s *Service) CheckCredentials(username, password string) bool {
	if len(s.username) == 0 || len(s.password) == 0 {
		return false
	}
	userOK := safeEqual([]byte(username), s.username)
	passOK := safeEqual([]byte(password), s.password)
	return userOK && passOK
}

// IssueToken signs a token for username valid for the configured TTL.
func (s *Service) IssueToken(username string) (Token, error) {
	expiresAt := s.clock.Now().Add(s.ttl)
	raw, err := json.Marshal(tokenPayload{Username: username, Exp: expiresAt.UnixMilli()})
	if err != nil {
		return Token{}, errors.Annotate(err, "encoding token payload")
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return Token{
		Value:     payload + "." + s.sign(payload),
		Username:  username,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyToken checks the signature and expiry of token. Every failure
// satisfies errors.Is(err, errors.Unauthorized); expiry also matches
// ErrTokenExpired.
func (s *Service) VerifyToken(token string) (Principal, error) {
	payload, signature, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || payload == "" || signature == "" {
		return Principal{}, errors.Unauthorizedf("invalid admin token")
	}
	if !hmac.Equal([]byte(signature), []byte(s.sign(payload))) {
		return Principal{}, errors.Unauthorizedf("invalid admin token")
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Principal{}, errors.Unauthorizedf("invalid admin token")
	}
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.Username == "" || p.Exp == 0 {
		return Principal{}, errors.Unauthorizedf("invalid admin token")
	}

	expiresAt := time.UnixMilli(p.Exp)
	if s.clock.Now().After(expiresAt) {
		return Principal{}, errors.WithType(ErrTokenExpired, errors.Unauthorized)
	}
	return Principal{Username: p.Username, ExpiresAt: expiresAt}, nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// safeEqual compares digests so the comparison time does not depend on the
// length or common prefix of the inputs.
func safeEqual(a, b []byte) bool {
	da := sha256.Sum256(a)
	db := sha256.Sum256(b)
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}
