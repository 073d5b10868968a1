package operations

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the `validate` tags of input. A missing required field is
// reported as missing_fields; any other failure as invalid_<field>.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Error{Kind: KindValidation, Code: ErrInvalidInput, Err: err}
	}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			return &Error{Kind: KindValidation, Code: ErrMissingFields, Err: err}
		}
	}
	return &Error{Kind: KindValidation, Code: "invalid_" + snake(fieldErrs[0].Field()), Err: err}
}

func snake(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			prevLower = false
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		prevLower = true
		b.WriteRune(r)
	}
	return b.String()
}
