package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type ApiError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// fieldMessage turns a failed binding rule into a sentence for the API client.
// Length rules read differently for lists (signers, fields) than for text.
func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		if isList {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "cmin":
		return fmt.Sprintf("%s must be at least %s non-whitespace characters", field, fe.Param())
	case "cmax":
		return fmt.Sprintf("%s must be at most %s non-whitespace characters", field, fe.Param())
	case "strNotEmpty":
		return fmt.Sprintf("%s must not be empty or contain only whitespace characters", field)
	}

	return fmt.Sprintf("%s is invalid", field)
}

/*
GenerateErrorMessages converts a binding or request error into the errors list of the envelope.

Validation errors produce one entry per failed field, named by the json tag path:

	[
	  {
	    "field": "signers[0].email",
	    "message": "signers[0].email must be a valid email address"
	  }
	]

Any other error becomes a single entry. fieldName, when given, names that entry
(e.g. "token", "file"); it defaults to "Unknown".
*/
func GenerateErrorMessages(err error, fieldName ...string) []ApiError {
	field := "Unknown"
	if len(fieldName) > 0 && fieldName[0] != "" {
		field = fieldName[0]
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]ApiError, len(ve))
		for i, fe := range ve {
			out[i] = ApiError{Field: fieldPath(fe), Message: fieldMessage(fe)}
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return []ApiError{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type.Kind()),
		}}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []ApiError{{Field: field, Message: "Record not found"}}
	}

	return []ApiError{{Field: field, Message: err.Error()}}
}

// fieldPath drops the top level struct name, "SendInput.signers[0].email" becomes "signers[0].email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// RegisterCustomValidations adds strNotEmpty, cmin and cmax to a validator engine
// and reports fields by their json (or form) name.
func RegisterCustomValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(requestFieldName)

	if err := v.RegisterValidation("strNotEmpty", StrNotEmpty); err != nil {
		return err
	}
	if err := v.RegisterValidation("cmin", CustomMin); err != nil {
		return err
	}
	return v.RegisterValidation("cmax", CustomMax)
}

func requestFieldName(sf reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(sf.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return sf.Name
}

// check if string is empty, after trimming spaces
// Usage: `binding:"strNotEmpty"`
func StrNotEmpty(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}

	return strings.TrimSpace(field.String()) != ""
}

// Usage: `binding:"cmin=3"`
func CustomMin(fl validator.FieldLevel) bool {
	n, limit, ok := trimmedLength(fl)
	return ok && n >= limit
}

// Usage: `binding:"cmax=500"`
func CustomMax(fl validator.FieldLevel) bool {
	n, limit, ok := trimmedLength(fl)
	return ok && n <= limit
}

// trimmedLength counts runes after trimming spaces, so "  ab " has length 2 and
// a signer name in Khmer script is measured in characters, not bytes.
func trimmedLength(fl validator.FieldLevel) (n int, limit int, ok bool) {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return 0, 0, false
	}

	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return 0, 0, false
	}

	return utf8.RuneCountInString(strings.TrimSpace(field.String())), limit, true
}
