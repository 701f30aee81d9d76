package waitlist

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// local@domain.tld with no whitespace or '@' inside any part. Whitespace
// covers the Unicode space separators, vertical tab and BOM.
var emailPattern = regexp.MustCompile(`^[^\s\x0B\x{FEFF}\p{Z}@]+@[^\s\x0B\x{FEFF}\p{Z}@]+\.[^\s\x0B\x{FEFF}\p{Z}@]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("waitlist_email", func(fl validator.FieldLevel) bool {
			return IsValidEmail(fl.Field().String())
		})
	})
	return validate
}

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func validateRegisterRequest(req *RegisterRequest) error {
	return getValidator().Struct(req)
}
