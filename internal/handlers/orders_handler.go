package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/juju/errors"

	"github.com/imrishuroy/bakery-orderflow/internal/idempotency"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

const idempotencyKeyHeader = "Idempotency-Key"

// RegisterOrdersRoutes registers checkout and the admin status update.
func RegisterOrdersRoutes(r gin.IRouter, cfg HandlerConfig, v *validatorv10.Validate) {
	r.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		// The key is optional; without a store or a key every request places an order.
		// Keys are scoped to the cart's session and bound to the request body.
		var idempKey, fingerprint string
		if key := strings.TrimSpace(c.GetHeader(idempotencyKeyHeader)); key != "" && cfg.Idempotency != nil {
			idempKey = orderIdempotencyKey(req.SessionID, key)
			fingerprint = req.Fingerprint()
		}
		if idempKey != "" {
			rec, claimed, err := cfg.Idempotency.Claim(ctx, idempKey, "", fingerprint)
			if err != nil {
				writeError(c, errors.Annotatef(err, "claiming idempotency key %q", idempKey))
				return
			}
			if !claimed {
				replay(c, rec, fingerprint)
				return
			}
		}

		order, err := cfg.Orders.PlaceOrder(ctx, orders.Details{
			SessionID:     req.SessionID,
			CustomerName:  req.CustomerName,
			Phone:         req.Phone,
			Address:       req.Address,
			Notes:         req.Notes,
			WhatsappOptIn: req.WhatsappOptIn,
		})
		if err != nil {
			if idempKey != "" {
				// FAILED lets the client retry with the same key.
				if merr := cfg.Idempotency.MarkFailed(ctx, idempKey, err.Error()); merr != nil {
					logger.Errorf("marking idempotency key %q failed: %v", idempKey, merr)
				}
			}
			writeError(c, err)
			return
		}

		body, err := json.Marshal(gin.H{"data": toOrder(order)})
		if err != nil {
			writeError(c, errors.Annotate(err, "encoding order"))
			return
		}
		if idempKey != "" {
			if err := cfg.Idempotency.MarkDone(ctx, idempKey, string(body), http.StatusCreated); err != nil {
				// The order exists; a retry with this key will see IN_PROGRESS.
				logger.Errorf("recording response for idempotency key %q: %v", idempKey, err)
			}
		}
		c.Header("Location", fmt.Sprintf("/api/orders/%d", order.ID))
		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	})

	r.PATCH("/orders/:orderId/status", RequireAdmin(cfg.Admin), func(c *gin.Context) {
		var p validation.OrderParams
		if err := validation.BindURI(c, &p, v); err != nil {
			return
		}
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := cfg.Orders.SetStatus(c.Request.Context(), p.OrderID, orders.Status(req.Status))
		if err != nil {
			writeError(c, err)
			return
		}
		validation.WriteData(c, http.StatusOK, statusJSON{
			OrderID:       order.ID,
			Status:        order.Status,
			WhatsappOptIn: order.WhatsappOptIn,
		})
	})
}

func orderIdempotencyKey(sessionID, key string) string {
	return "order:" + sessionID + ":" + key
}

// replay answers a repeated Idempotency-Key from the stored record.
func replay(c *gin.Context, rec *idempotency.IdempotencyRecord, fingerprint string) {
	switch {
	case !rec.Matches(fingerprint):
		validation.WriteError(c, http.StatusUnprocessableEntity, msgKeyReused)
	case rec.Status == idempotency.StatusDone && rec.ResponseBody != "":
		status := rec.ResponseStatus
		if status == 0 {
			status = http.StatusCreated
		}
		c.Header("Idempotent-Replayed", "true")
		c.Data(status, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case rec.Status == idempotency.StatusInProgress:
		validation.WriteError(c, http.StatusConflict, msgInProgress)
	default:
		logger.Errorf("idempotency key %q has unexpected status %q", rec.IdempotencyKey, rec.Status)
		validation.WriteError(c, http.StatusInternalServerError, msgInternal)
	}
}
