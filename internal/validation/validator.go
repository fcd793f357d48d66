package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/bakery-orderflow/internal/orders"
)

var intType = reflect.TypeOf(int64(0))

// New returns a validator that reports fields by their wire names and knows
// the order_status tag.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(wireName)
	if err := v.RegisterValidation("order_status", validOrderStatus); err != nil {
		// Only fails for an empty tag or nil func.
		panic(err)
	}
	return v
}

// wireName picks the name a client sees: JSON body field, URI parameter or
// query key.
func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "uri", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func validOrderStatus(fl validatorv10.FieldLevel) bool {
	return orders.Status(fl.Field().String()).Valid()
}
