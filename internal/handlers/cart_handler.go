package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

// RegisterCartRoutes registers the session cart routes.
func RegisterCartRoutes(r gin.IRouter, cfg HandlerConfig, v *validatorv10.Validate) {
	g := r.Group("/cart/:sessionId")

	g.GET("", func(c *gin.Context) {
		var p validation.SessionParams
		if err := validation.BindURI(c, &p, v); err != nil {
			return
		}
		crt, err := cfg.Cart.GetCart(c.Request.Context(), p.SessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, toCart(crt))
	})

	g.POST("/items", func(c *gin.Context) {
		var p validation.SessionParams
		if err := validation.BindURI(c, &p, v); err != nil {
			return
		}
		var req validation.AddCartItemRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		crt, err := cfg.Cart.AddItem(c.Request.Context(), p.SessionID, int64(req.ProductID), int(req.Quantity))
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusCreated, toCart(crt))
	})

	g.PATCH("/items/:itemId", func(c *gin.Context) {
		var p validation.ItemParams
		if err := validation.BindURI(c, &p, v); err != nil {
			return
		}
		var req validation.UpdateCartItemRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		crt, err := cfg.Cart.UpdateItem(c.Request.Context(), p.SessionID, p.ItemID, int(*req.Quantity))
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, toCart(crt))
	})

	g.DELETE("/items/:itemId", func(c *gin.Context) {
		var p validation.ItemParams
		if err := validation.BindURI(c, &p, v); err != nil {
			return
		}
		crt, err := cfg.Cart.RemoveItem(c.Request.Context(), p.SessionID, p.ItemID)
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, toCart(crt))
	})
}
