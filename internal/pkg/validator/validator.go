package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

var amountPattern = regexp.MustCompile(`^[0-9]+([.][0-9]{1,2})?$`)

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Register custom validations
	registerCustomValidations()
}

func registerCustomValidations() {
	// Redirect method for SuccessUrl2/FailUrl2, any casing
	validate.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		switch strings.ToUpper(fl.Field().String()) {
		case "", "GET", "POST":
			return true
		}
		return false
	})

	// Payment page language
	validate.RegisterValidation("culture", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "ru", "en":
			return true
		}
		return false
	})

	// Money with at most two fractional digits
	validate.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return amountPattern.MatchString(fl.Field().String())
	})
}

// Struct validates s and returns the raw validator error.
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// Messages converts a validator error into field messages; nil for nil.
func Messages(err error) map[string]string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string)
	for _, err := range verrs {
		field := err.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch err.Tag() {
		case "required":
			out[field] = "This field is required"
		case "email":
			out[field] = "Invalid email format"
		case "min":
			out[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			out[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			out[field] = "Value must be at least " + err.Param()
		case "lte":
			out[field] = "Value must be at most " + err.Param()
		case "url":
			out[field] = "Invalid URL format"
		case "ipv4":
			out[field] = "Invalid IPv4 address"
		case "http_method":
			out[field] = "Invalid method. Must be: GET or POST"
		case "culture":
			out[field] = "Invalid culture. Must be: ru or en"
		case "amount":
			out[field] = "Must be a positive decimal number with at most two fractional digits"
		case "oneof":
			out[field] = "Must be one of: " + err.Param()
		default:
			out[field] = "Invalid value"
		}
	}

	return out
}
