package middleware

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a decoded JSON request body using its
// `validate` struct tags. Handlers that accept a JSON body (clone,
// batch instance metadata) call this right after decoding and turn a
// non-nil error into a 400 via FormatValidationErrors.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidationError is one field-level failure out of a validator.ValidationErrors.
type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
	Hint  string `json:"hint,omitempty"`
}

// FormatValidationErrors converts a ValidateStruct error into the
// field-level shape handlers attach as an APIError's Details.
func FormatValidationErrors(err error) []ValidationError {
	var out []ValidationError
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, e := range validationErrors {
		out = append(out, ValidationError{
			Field: e.Field(),
			Issue: e.Tag(),
			Hint:  validationHint(e),
		})
	}
	return out
}

func validationHint(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	default:
		return "Validation failed: " + e.Tag()
	}
}
