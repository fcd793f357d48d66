package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

// RegisterAdminRoutes registers login and the dashboard.
func RegisterAdminRoutes(r gin.IRouter, cfg HandlerConfig, v *validatorv10.Validate) {
	limit, burst := cfg.LoginLimit, cfg.LoginBurst
	if limit == 0 {
		limit = rate.Every(DefaultLoginEvery)
	}
	if burst <= 0 {
		burst = DefaultLoginBurst
	}
	limiter := newLoginLimiter(limit, burst)

	g := r.Group("/admin")

	g.POST("/login", limiter.middleware(), func(c *gin.Context) {
		var req validation.LoginRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		if !cfg.Admin.CheckCredentials(req.Username, req.Password) {
			logger.Infof("failed admin login for %q from %s", req.Username, c.ClientIP())
			validation.WriteError(c, http.StatusUnauthorized, msgBadCredentials)
			return
		}
		tok, err := cfg.Admin.IssueToken(req.Username)
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, loginJSON{
			Token:            tok.Value,
			Username:         tok.Username,
			ExpiresInSeconds: int64(cfg.Admin.TTL().Seconds()),
		})
	})

	g.GET("/dashboard", RequireAdmin(cfg.Admin), func(c *gin.Context) {
		d, err := cfg.Orders.Dashboard(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, toDashboard(d))
	})
}
