// internal/utils/validator.go
package utils

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

var postalCodePattern = regexp.MustCompile(`^[A-Za-z]\d[A-Za-z]\s?\d[A-Za-z]\d$`)

func init() {
	validate = validator.New()
	validate.RegisterValidation("postal_code", validatePostalCode)
	validate.RegisterValidation("registration_type", validateRegistrationType)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validatePostalCode(fl validator.FieldLevel) bool {
	return postalCodePattern.MatchString(fl.Field().String())
}

func validateRegistrationType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "HOST", "PLATFORM", "STRATA_HOTEL":
		return true
	}
	return false
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "max":
		return e.Field() + " must be at most " + e.Param() + " characters"
	case "postal_code":
		return "Postal code must be a valid Canadian postal code"
	case "registration_type":
		return "Registration type must be one of HOST, PLATFORM, STRATA_HOTEL"
	default:
		return e.Field() + " is invalid"
	}
}

// NormalizePostalCode strips spaces and upper-cases a postal code for
// comparison during permit validation.
func NormalizePostalCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, " ", ""))
}
