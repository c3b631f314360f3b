package validation

import (
	"errors"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Error is a rejected request body. Fields maps struct namespaces to the
// failed rule and is empty when the body could not be decoded at all.
type Error struct {
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// BindAndValidate decodes the request body into out and runs validation.
// Failures come back as *Error carrying message, for the error handler to
// render as a 400.
func BindAndValidate(c *fiber.Ctx, out interface{}, v *validatorv10.Validate, message string) error {
	if err := c.BodyParser(out); err != nil {
		if errors.Is(err, fiber.ErrUnprocessableEntity) {
			// empty body or unknown content type
			return &Error{Message: message, cause: err}
		}
		return &Error{Message: "invalid request body", cause: err}
	}

	if err := v.Struct(out); err != nil {
		return &Error{Message: message, Fields: validationErrorsToMap(err), cause: err}
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
