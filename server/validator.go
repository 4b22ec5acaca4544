package server

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/youyeongjin90/kimsabu/store"
)

// RequestValidator plugs validator/v10 into echo's Context.Validate.
type RequestValidator struct {
	validator *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("category", categoryValidator); err != nil {
		panic(err)
	}
	return &RequestValidator{v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validator.Struct(i)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// Not a struct; there is nothing to check.
		return nil
	}
	return err
}

func categoryValidator(fl validator.FieldLevel) bool {
	return store.WorkCategory(fl.Field().String()).Valid()
}
