// internal/validation/validator.go

// Package validation checks decoded request bodies against their struct tags.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	custom_errors "spygit/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names, which is what callers sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("dashboard_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "", "student", "teacher":
			return true
		}
		return false
	}); err != nil {
		panic(fmt.Sprintf("failed to register custom validation: %v", err))
	}

	return v
}

// ValidationError collects the failures that are not missing fields.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return strings.Join(v.Errors, ", ")
}

// ValidateStruct validates s. When every failure is a missing required field the result is a
// *custom_errors.MissingFieldsError; otherwise it is a *ValidationError.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	var missing, messages []string
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			missing = append(missing, fe.Field())
			messages = append(messages, fmt.Sprintf("field '%s' is required", fe.Field()))
		case "dashboard_type":
			messages = append(messages, custom_errors.ErrInvalidDashboardType.Error())
		default:
			messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag()))
		}
	}

	if len(missing) == len(fieldErrs) {
		return &custom_errors.MissingFieldsError{Fields: missing}
	}
	return &ValidationError{Errors: messages}
}
