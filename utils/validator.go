package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-.]{6,30}$`)

// messages maps a validate tag to its error text. {field} and {param} are
// substituted from the failing field.
var messages = map[string]string{
	"required": "{field} is required",
	"min":      "{field} must be at least {param}",
	"max":      "{field} must be at most {param}",
	"gte":      "{field} must be greater than or equal to {param}",
	"email":    "{field} must be a valid email",
	"len":      "{field} must be exactly {param} characters",
	"phone":    "{field} must be a valid phone number",
	"url":      "{field} must be a valid URL",
}

func newValidator() *validator.Validate {
	v := validator.New()
	// errors name fields the way clients send them
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return strings.ToLower(f.Name)
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStruct runs the struct's validate tags and returns a Validation
// error listing every failed field
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("%s", err.Error())
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return NewValidationError("%s", strings.Join(problems, ", "))
}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "oneof" {
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	if text, ok := messages[fe.Tag()]; ok {
		return strings.NewReplacer("{field}", fe.Field(), "{param}", fe.Param()).Replace(text)
	}
	return fe.Field() + " is invalid"
}

// ValidateEmail checks address syntax, used where input bypasses struct tags
func ValidateEmail(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return NewValidationError("Invalid email format: %s", email)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address before lookup or storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
