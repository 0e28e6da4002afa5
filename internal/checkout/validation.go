package checkout

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"prefest/models"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return len(Digits(fl.Field().String())) == 11
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		n := len(Digits(fl.Field().String()))
		return n >= 10 && n <= 13
	})
	return v
}

// ValidationError is a recoverable input error. Message is meant for the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("checkout: invalid %s: %s", e.Field, e.Message)
}

// Digits strips everything but ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePersonalData returns the first failing field as a *ValidationError.
func ValidatePersonalData(p models.PersonalData) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)

	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	return &ValidationError{Field: fieldName(fe.Field()), Message: message(fe)}
}

func fieldName(structField string) string {
	switch structField {
	case "CPF":
		return "cpf"
	default:
		return strings.ToLower(structField)
	}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "cpf":
		return "CPF must have 11 digits"
	case "phone":
		return "phone number is invalid"
	case "email":
		return "email address is invalid"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "value is invalid"
}
