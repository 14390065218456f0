package utils

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Email      string `validate:"required,email"`
	Name       string `validate:"required,max=10"`
	Role       string `validate:"omitempty,oneof=admin commercial viewer"`
	DailyLimit int    `validate:"gte=1"`
	Phone      string `validate:"omitempty,phone"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sampleInput{
		Email: "a@x.com", Name: "Ann", Role: "viewer", DailyLimit: 1, Phone: "+34 600 123 456",
	}))

	err := ValidateStruct(sampleInput{Email: "nope", Name: "a very long name", Role: "owner", Phone: "abc"})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Contains(t, appErr.Message, "email must be a valid email")
	assert.Contains(t, appErr.Message, "name must be at most 10")
	assert.Contains(t, appErr.Message, "role must be one of: admin, commercial, viewer")
	assert.Contains(t, appErr.Message, "dailylimit must be greater than or equal to 1")
	assert.Contains(t, appErr.Message, "phone must be a valid phone number")
}

type taggedInput struct {
	SectorID uint   `json:"sector_id" validate:"required"`
	Subject  string `json:"subject,omitempty" validate:"required"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	err := ValidateStruct(taggedInput{})
	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "sector_id is required, subject is required", appErr.Message)
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("sales@example.com"))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Equal(t, "sales@example.com", NormalizeEmail("  Sales@Example.COM "))
}
