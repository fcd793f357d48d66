package handlers

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/imrishuroy/bakery-orderflow/internal/cart"
	"github.com/imrishuroy/bakery-orderflow/internal/orders"
	"github.com/imrishuroy/bakery-orderflow/internal/validation"
)

var logger = loggo.GetLogger("bakery.http")

// Public error messages.
const (
	msgValidation       = "Validation error"
	msgQuantityExceeded = "Quantity limit is 20"
	msgEmptyCart        = "Cart is empty"
	msgAuthRequired     = "Admin authentication required"
	msgTokenExpired     = "Admin token expired"
	msgTokenInvalid     = "Invalid admin token"
	msgBadCredentials   = "Invalid admin username or password"
	msgTooManyAttempts  = "Too many login attempts, try again later"
	msgRouteNotFound    = "Route not found"
	msgInProgress       = "A request with this Idempotency-Key is still in progress"
	msgKeyReused        = "Idempotency-Key was already used with a different request"
	msgInternal         = "Unexpected server error"
)

// writeError translates a domain error into the error envelope. Faults that
// are not part of the taxonomy are logged and reported as a bare 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cart.ErrQuantityExceeded):
		validation.WriteError(c, http.StatusBadRequest, msgQuantityExceeded)
	case errors.Is(err, orders.ErrEmptyCart):
		validation.WriteError(c, http.StatusBadRequest, msgEmptyCart)
	case errors.Is(err, errors.NotFound):
		validation.WriteError(c, http.StatusNotFound, publicMessage(err))
	case errors.Is(err, errors.NotValid):
		validation.WriteError(c, http.StatusBadRequest, msgValidation,
			validation.FieldError{Message: publicMessage(err)})
	case errors.Is(err, errors.Unauthorized):
		validation.WriteError(c, http.StatusUnauthorized, msgAuthRequired)
	default:
		logger.Errorf("%s %s [%s]: %s", c.Request.Method, c.Request.URL.Path, requestID(c), errors.ErrorStack(err))
		validation.WriteError(c, http.StatusInternalServerError, msgInternal)
	}
}

// publicMessage keeps the innermost part of an annotated message and
// capitalizes it: "loading cart: cart not found" -> "Cart not found".
func publicMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
