package element

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// strict removes all HTML/scripts
var strict = bluemonday.StrictPolicy()

// SanitizeString: strips markup from chat text, which is relayed but never stored.
// Element fields are not passed through here; escaping them is the renderer's job.
func SanitizeString(s string) string {
	return strict.Sanitize(s)
}

// Validator: schema checks for drawing elements
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate: checks the element against its schema. The element is never rewritten,
// so what the room stores is exactly what the sender applied locally.
func (v *Validator) Validate(el Element) error {
	if !AllowedTypes[el.Type] {
		return fmt.Errorf("invalid element type: %q", el.Type)
	}

	if err := v.validate.Struct(el); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// formatValidationErrors: first error only, with a short actionable message
func formatValidationErrors(errs validator.ValidationErrors) error {
	return fmt.Errorf("validation failed: %s", formatSingleError(errs[0]))
}

func formatSingleError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", field)
	case "min", "max":
		return fmt.Sprintf("'%s' value out of allowed range", field)
	case "hexcolor|oneof":
		return fmt.Sprintf("'%s' must be a hex color or transparent", field)
	case "oneof":
		return fmt.Sprintf("'%s' must be one of [%s]", field, err.Param())
	default:
		return fmt.Sprintf("'%s' is invalid", field)
	}
}
