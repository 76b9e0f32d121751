// Package validation configures the struct validator shared by the HTTP
// handlers, the CSV importer and the submitter.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// 13-digit JAN/EAN, or the vendor's EZ-prefixed internal code.
var janPattern = regexp.MustCompile(`^(\d{13}|EZ\d{8})$`)

// IsJAN reports whether code is an accepted item code.
func IsJAN(code string) bool {
	return janPattern.MatchString(code)
}

// New returns a validator with the "jan" tag registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("jan", func(fl validator.FieldLevel) bool {
		return IsJAN(fl.Field().String())
	})
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// Describe turns a validator error into a short human-readable list such as
// "jan must be a 13-digit JAN or EZ code; price must be greater than 0".
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, DescribeField(fe))
	}
	return strings.Join(msgs, "; ")
}

// DescribeField renders a single field failure.
func DescribeField(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "jan":
		return field + " must be a 13-digit JAN or EZ code"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "http_url":
		return field + " must be an http(s) URL"
	case "min":
		return fmt.Sprintf("%s must have at least %s element(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s element(s)", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
