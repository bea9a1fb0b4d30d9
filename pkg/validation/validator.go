package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// ErrInvalid wraps every struct validation failure
	ErrInvalid = errors.New("invalid request")
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report wire names (source_id, error_params.error_type) rather than Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := validate.RegisterValidation("finite", isFinite); err != nil {
		panic(err)
	}
}

// isFinite rejects NaN and infinities, which have no JSON encoding
func isFinite(fl validator.FieldLevel) bool {
	switch f := fl.Field(); f.Kind() {
	case reflect.Float32, reflect.Float64:
		return !math.IsInf(f.Float(), 0) && !math.IsNaN(f.Float())
	default:
		return true
	}
}

// Struct validates v against its `validate` tags. Failures wrap ErrInvalid and
// describe the first offending field.
func Struct(v any) error {
	if v == nil {
		return fmt.Errorf("%w: value cannot be nil", ErrInvalid)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, formatValidationError(err))
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	field := strings.TrimPrefix(e.Namespace(), structPrefix(e))
	param := e.Param()

	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "min", "gte":
		return fmt.Errorf("%s: must be at least %s", field, param)
	case "max", "lte":
		return fmt.Errorf("%s: must not exceed %s", field, param)
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", field, param)
	case "finite":
		return fmt.Errorf("%s: must be a finite number", field)
	case "nefield":
		return fmt.Errorf("%s: must differ from %s", field, param)
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}

// structPrefix returns the "Type." prefix the validator puts on namespaces
func structPrefix(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[:i+1]
	}
	return ""
}
