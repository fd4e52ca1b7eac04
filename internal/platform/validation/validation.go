// Package validation wraps the shared validator instance used by all request
// DTOs and registers the project's custom rules.
package validation

import (
	"unicode"

	"github.com/go-playground/validator/v10"

	dErrors "frisk/pkg/domain-errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Password rule: at least 8 chars with upper, lower, digit and symbol.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return PasswordOK(fl.Field().String())
	})
	return v
}

// PasswordOK reports whether a password meets the complexity policy.
func PasswordOK(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}

// Struct validates a request DTO and converts the first failure into a
// field-named validation error.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return dErrors.Newf(dErrors.CodeValidation, "field %s failed on %s", fe.Field(), fe.Tag())
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
}
