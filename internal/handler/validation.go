package handler

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/segyhp/pawn-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// newValidator knows about decimal amounts and payment methods
func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt", func(fl validator.FieldLevel) bool {
		return compareDecimal(fl, func(d, bound decimal.Decimal) bool { return d.GreaterThan(bound) })
	})
	_ = v.RegisterValidation("decimal_gte", func(fl validator.FieldLevel) bool {
		return compareDecimal(fl, func(d, bound decimal.Decimal) bool { return d.GreaterThanOrEqual(bound) })
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String && domain.PaymentMethod(fl.Field().String()).Valid()
	})

	return v
}

func compareDecimal(fl validator.FieldLevel, cmp func(d, bound decimal.Decimal) bool) bool {
	bound, err := decimal.NewFromString(fl.Param())
	if err != nil {
		return false
	}

	field := fl.Field()
	var d decimal.Decimal
	switch {
	case field.Kind() == reflect.String:
		if d, err = decimal.NewFromString(field.String()); err != nil {
			return false
		}
	case field.CanInterface():
		value, ok := field.Interface().(decimal.Decimal)
		if !ok {
			return false
		}
		d = value
	default:
		return false
	}
	return cmp(d, bound)
}
