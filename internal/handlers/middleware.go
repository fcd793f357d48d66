package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"golang.org/x/time/rate"

	"github.com/imrishuroy/bakery-orderflow/internal/admin"
	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

const (
	requestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
	principalKey    = "admin"
)

// RequestID tags each request with the caller's X-Request-Id or a new uuid
// and echoes it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// CORS allows the listed origins, or any origin when the list is empty.
// Preflight requests are answered here.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (len(allowed) == 0 || allowed[origin]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Idempotency-Key, X-Request-Id")
			h.Set("Access-Control-Expose-Headers", requestIDHeader)
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests without a valid admin bearer token.
func RequireAdmin(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			validation.WriteError(c, http.StatusUnauthorized, msgAuthRequired)
			return
		}
		p, err := svc.VerifyToken(token)
		if err != nil {
			msg := msgTokenInvalid
			if errors.Is(err, admin.ErrTokenExpired) {
				msg = msgTokenExpired
			}
			validation.WriteError(c, http.StatusUnauthorized, msg)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// maxTrackedClients bounds the login limiter's memory; the table is reset
// when it fills up.
const maxTrackedClients = 10000

// loginLimiter throttles login attempts per client IP.
type loginLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newLoginLimiter(limit rate.Limit, burst int) *loginLimiter {
	return &loginLimiter{limit: limit, burst: burst, clients: map[string]*rate.Limiter{}}
}

func (l *loginLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = map[string]*rate.Limiter{}
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func (l *loginLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			logger.Warningf("login throttled for %s", c.ClientIP())
			validation.WriteError(c, http.StatusTooManyRequests, msgTooManyAttempts)
			return
		}
		c.Next()
	}
}
