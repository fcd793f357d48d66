package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

// RegisterCatalogRoutes registers the read-only menu routes.
func RegisterCatalogRoutes(r gin.IRouter, cfg HandlerConfig, v *validatorv10.Validate) {
	r.GET("/categories", func(c *gin.Context) {
		cats, err := cfg.Catalog.Categories(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, toCategories(cats))
	})

	r.GET("/menu", func(c *gin.Context) {
		var q validation.MenuQuery
		if err := validation.BindQuery(c, &q, v); err != nil {
			return
		}
		items, err := cfg.Catalog.Menu(c.Request.Context(), q.Category)
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, toMenu(items))
	})
}
