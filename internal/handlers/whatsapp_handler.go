package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterWhatsAppRoutes registers the provider's inbound message webhook.
func RegisterWhatsAppRoutes(r gin.IRouter, cfg HandlerConfig) {
	r.POST("/whatsapp/inbound", func(c *gin.Context) {
		reply, err := cfg.Inbound.ReplyXML(c.Request.Context(), c.PostForm("Body"), c.PostForm("From"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(reply))
	})
}
