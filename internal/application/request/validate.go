// Package request validates inbound application requests.
package request

import (
	"errors"

	"github.com/cassiomorais/ordercore/internal/domain/action"
	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(menuItemDiscount, action.MenuItemOffer{})
	return v
}

// menuItemDiscount bounds a line discount by the line total.
func menuItemDiscount(sl validator.StructLevel) {
	item := sl.Current().Interface().(action.MenuItemOffer)
	if item.Discount > item.UnitPrice*int64(item.Quantity) {
		sl.ReportError(item.Discount, "Discount", "Discount", "ltelinetotal", "")
	}
}

// Validate checks the validate tags of dst and reports the first failing
// field as a ValidationError.
func Validate(dst any) error {
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Namespace(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("request", err.Error())
	}
	return nil
}
