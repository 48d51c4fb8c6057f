package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks f. Missing fields take precedence over a short card number,
// so the user is told to fill in the form before being told the number is
// wrong.
func Validate(f Form) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "validate form")
	}

	fields := make(map[string]string, len(fieldErrs))
	missing := false
	for _, fe := range fieldErrs {
		fields[fe.Field()] = reasonFor(fe)
		if fe.Tag() == "required" {
			missing = true
		}
	}

	msg := MsgInvalidCard
	if missing {
		msg = MsgMissingFields
	}
	return &ValidationError{Message: msg, Fields: fields}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
