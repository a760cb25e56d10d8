package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ramsey-B/fern/pkg/errs"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the validate tags of value and returns a 400 error listing
// every failed rule.
func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, toValidationError(value, err)
	}
	return value, nil
}

// ValidateValue checks a single value against a tag expression.
func ValidateValue(value any, field, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errs.Validation("invalid %s: rule '%s' expected '%s', got '%v'", field, fe.Tag(), fe.Param(), fe.Value())
		}
		return errs.Validation("invalid %s: %s", field, err.Error())
	}
	return nil
}

func toValidationError(input any, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errs.Validation("invalid %T: %s", input, err.Error())
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("field '%s' failed rule '%s' (expected '%s', got '%v')",
			fe.StructField(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return errs.Validation("invalid %T: %s", input, strings.Join(parts, "; "))
}
