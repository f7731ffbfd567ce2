package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadsSettings struct {
	Allowed []string `mapstructure:"allowed_extensions" validate:"required,min=1,dive,file_extension"`
}

type submissionForm struct {
	TeamID string `form:"teamId" json:"team" validate:"required,uuid"`
	Note   string `json:"note,omitempty"     validate:"max=3"`
}

func TestFileExtension(t *testing.T) {
	valid := Create()

	tests := []struct {
		name    string
		allowed []string
		ok      bool
	}{
		{name: "Defaults", allowed: []string{".csv", ".zip", ".pdf", ".jpg", ".png"}, ok: true},
		{name: "MissingDot", allowed: []string{"csv"}, ok: false},
		{name: "OnlyDot", allowed: []string{"."}, ok: false},
		{name: "DoubleExtension", allowed: []string{".tar.gz"}, ok: false},
		{name: "Separator", allowed: []string{"./csv"}, ok: false},
		{name: "Empty", allowed: []string{}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := valid.Validate(uploadsSettings{Allowed: tt.allowed})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestFieldNames(t *testing.T) {
	valid := Create()

	err := valid.Validate(submissionForm{TeamID: "nope", Note: "too long"})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))

	fields := []string{}
	for _, fieldError := range validationErrors {
		fields = append(fields, fieldError.Field())
	}
	assert.ElementsMatch(t, []string{"teamId", "note"}, fields)
}
