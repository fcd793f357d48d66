package validation

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/juju/errors"

	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

// ErrInvalid is returned by the Bind helpers after they have written a 400.
const ErrInvalid = errors.ConstError("request failed validation")

// FieldError is one entry of the validation error details list.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type errorBody struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// WriteError aborts the request with the error envelope.
func WriteError(c *gin.Context, status int, message string, details ...FieldError) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Message: message, Details: details}})
}

// WriteData writes the success envelope.
func WriteData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

type normalizer interface {
	normalize()
}

// BindAndValidate binds the JSON body into out and runs validation.
// If binding or validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	return bind(c, out, v, c.ShouldBindJSON)
}

// BindURI binds and validates path parameters.
func BindURI(c *gin.Context, out any, v *validatorv10.Validate) error {
	return bind(c, out, v, c.ShouldBindUri)
}

// BindQuery binds and validates query parameters.
func BindQuery(c *gin.Context, out any, v *validatorv10.Validate) error {
	return bind(c, out, v, c.ShouldBindQuery)
}

func bind(c *gin.Context, out any, v *validatorv10.Validate, fn func(any) error) error {
	if err := fn(out); err != nil {
		WriteError(c, http.StatusBadRequest, "Validation error", FieldError{Path: "", Message: bindMessage(err)})
		return ErrInvalid
	}
	if n, ok := out.(normalizer); ok {
		n.normalize()
	}
	if err := v.Struct(out); err != nil {
		WriteError(c, http.StatusBadRequest, "Validation error", Details(err)...)
		return ErrInvalid
	}
	return nil
}

func bindMessage(err error) string {
	msg := err.Error()
	if msg == "EOF" {
		return "Request body is required"
	}
	return "Malformed request: " + msg
}

// Details converts validator errors into the details list.
func Details(err error) []FieldError {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{Path: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

// fieldPath drops the struct name from the namespace: CreateOrderRequest.phone -> phone.
func fieldPath(fe validatorv10.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func fieldMessage(fe validatorv10.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		if isString {
			return fmt.Sprintf("Must contain at least %s character(s)", fe.Param())
		}
		return "Must be greater than or equal to " + fe.Param()
	case "max":
		if isString {
			return fmt.Sprintf("Must contain at most %s character(s)", fe.Param())
		}
		return "Must be less than or equal to " + fe.Param()
	case "gt":
		return "Must be greater than " + fe.Param()
	case "order_status":
		names := make([]string, len(orders.Statuses))
		for i, s := range orders.Statuses {
			names[i] = "'" + string(s) + "'"
		}
		return "Invalid enum value. Expected " + strings.Join(names, " | ")
	default:
		return fe.Error()
	}
}
