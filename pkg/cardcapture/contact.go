package cardcapture

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"streamvault/pkg/payment"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{8,30}[0-9]$`)
	nonDigits    = regexp.MustCompile(`[^0-9]`)
)

var contactMessages = map[string]string{
	"email":   "Please enter a valid email address",
	"name":    "Please enter a valid full name",
	"phone":   "Please enter a valid phone number",
	"country": "Please select your country",
}

// Validator holds the contact rules shared by the storefront client and the
// API. Fields are reported by their JSON names.
var Validator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return validPhone(fl.Field().String())
	})
	return v
}

// ValidateContact checks the customer contact block sent with the charge.
func ValidateContact(c payment.Customer) error {
	c.Email = strings.TrimSpace(c.Email)
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Country = strings.TrimSpace(c.Country)

	err := Validator.Struct(c)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var errs FieldErrors
	for _, fe := range verrs {
		errs.add(fe.Field(), contactMessages[fe.Field()])
	}
	return errs.err()
}

func ValidEmail(s string) bool {
	return Validator.Var(s, "required,email") == nil
}

// ValidPhone accepts at least ten characters of digits, spaces and the usual
// separators, with an optional leading +.
func ValidPhone(s string) bool {
	return Validator.Var(strings.TrimSpace(s), "required,phone") == nil
}

func validPhone(s string) bool {
	return phonePattern.MatchString(s) && len(nonDigits.ReplaceAllString(s, "")) >= 7
}
