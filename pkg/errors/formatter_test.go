package errors

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email string  `json:"email" validate:"required,email"`
	Ref   *string `json:"ref,omitempty" validate:"omitempty,max=4"`
}

func TestFormatValidationErrors_ValidatorErrors(t *testing.T) {
	long := "newsletter"
	err := validator.New().Struct(&signup{Ref: &long})
	require.Error(t, err)

	got := FormatValidationErrors(err, &signup{})

	assert.Equal(t, []ValidationErrorResponse{
		{Field: "email", Message: "This field is required"},
		{Field: "ref", Message: "Must not exceed 4 characters"},
	}, got)
}

func TestFormatValidationErrors_UnmarshalTypeError(t *testing.T) {
	var s signup
	err := json.Unmarshal([]byte(`{"email":"a@b.com","ref":42}`), &s)
	require.Error(t, err)

	got := FormatValidationErrors(err, &s)

	require.Len(t, got, 1)
	assert.Equal(t, "ref", got[0].Field)
	assert.Contains(t, got[0].Message, "Expected string, got number")
}

func TestFormatValidationErrors_Other(t *testing.T) {
	assert.Nil(t, FormatValidationErrors(nil, nil))
	assert.Nil(t, FormatValidationErrors(NewDatabaseError("db", nil), nil))
}

func TestJSONFieldName(t *testing.T) {
	assert.Equal(t, "Email", jsonFieldName(nil, "Email"))
	assert.Equal(t, "Missing", jsonFieldName(nil, "Missing"))
}
