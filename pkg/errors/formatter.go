package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messageByTag = map[string]string{
	"required":       "This field is required",
	"email":          "Invalid email format",
	"waitlist_email": "Invalid email address",
	"max":            "Value is too long",
}

func messageFor(fe validator.FieldError) string {
	if fe.Tag() == "max" && fe.Param() != "" {
		return fmt.Sprintf("Must not exceed %s characters", fe.Param())
	}
	if msg, ok := messageByTag[fe.Tag()]; ok {
		return msg
	}
	return "Invalid value"
}

// jsonFieldName resolves a Go struct field to its json tag name.
func jsonFieldName(structType reflect.Type, fieldName string) string {
	if structType == nil {
		return fieldName
	}
	field, found := structType.FieldByName(fieldName)
	if !found {
		return fieldName
	}
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fieldName
	}
	return name
}

// FormatValidationErrors turns decode and validator errors into per-field
// messages keyed by json name. model is the struct that was bound.
func FormatValidationErrors(err error, model any) []ValidationErrorResponse {
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []ValidationErrorResponse{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("Invalid type for field %s. Expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value),
		}}
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	var structType reflect.Type
	if model != nil {
		structType = reflect.TypeOf(model)
		if structType.Kind() == reflect.Pointer {
			structType = structType.Elem()
		}
	}

	out := make([]ValidationErrorResponse, len(validationErrors))
	for i, fe := range validationErrors {
		out[i] = ValidationErrorResponse{
			Field:   jsonFieldName(structType, fe.Field()),
			Message: messageFor(fe),
		}
	}
	return out
}
