// Package form validates submitted payloads with go-playground/validator and
// turns failures into per-field messages for re-rendering a form.
package form

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// PasswordMismatch is reported when a confirmation field differs.
const PasswordMismatch = "Passwords do not match!"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Errors maps a form field name to its message.
type Errors map[string]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e[k])
	}
	return strings.Join(msgs, "; ")
}

// Validate checks v's struct tags. It returns Errors when a field fails.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(Errors, len(ve))
	for _, fe := range ve {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = fieldError(fe)
		}
	}
	return out
}

// FieldErrors extracts Errors from err, or nil if err is not a validation
// failure.
func FieldErrors(err error) Errors {
	var fe Errors
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

// Trimmed returns the whitespace-trimmed value of key.
func Trimmed(values url.Values, key string) string {
	return strings.TrimSpace(values.Get(key))
}

func fieldError(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "eqfield":
		return PasswordMismatch
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
