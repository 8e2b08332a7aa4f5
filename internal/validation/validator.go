package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

var ErrInvalidInput = errors.New("invalid input")

// Error carries per-field messages keyed by the JSON path of the field.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *Error) Is(target error) bool { return target == ErrInvalidInput }

// Invalid builds an *Error for a single field.
func Invalid(field, msg string) error {
	return &Error{Fields: map[string]string{field: msg}}
}

// New returns a validator that reports fields by their json names.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Check runs struct validation and converts failures into *Error.
func Check(v *validatorv10.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	return &Error{Fields: fieldErrors(err)}
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fieldPath(fe.Namespace())] = message(fe)
	}
	return out
}

// fieldPath drops the root struct name: "Request.items[0].quantity" -> "items[0].quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have at least %s element(s)", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}
