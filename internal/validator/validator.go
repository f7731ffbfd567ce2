package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Echo compatible validator. Field names in errors follow the form or json
// tag the client actually sent.
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

var nameTags = []string{"form", "json", "mapstructure"}

func fieldName(field reflect.StructField) string {
	for _, tag := range nameTags {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		switch name {
		case "":
			continue
		case "-":
			return ""
		default:
			return name
		}
	}

	return field.Name
}

// `file_extension` accepts ".csv" style values: a leading dot followed by at
// least one character and no path separators
func fileExtension(fl validator.FieldLevel) bool {
	ext := fl.Field().String()
	return len(ext) > 1 && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext[1:], `./\`)
}

func Create() CustomValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(fieldName)

	if err := validate.RegisterValidation("file_extension", fileExtension); err != nil {
		panic("Internal error contact a contributor [file-extension-validation]")
	}

	return CustomValidator{validator: validate}
}
