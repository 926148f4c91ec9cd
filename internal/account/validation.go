// AngelaMos | 2026
// validation.go

package account

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[\w.+-]{3,30}$`)

// ValidateUsername accepts 3 to 30 letters, digits or "_ . + -". "@" is
// rejected so that a username can never be mistaken for an email at login.
// The prefix given to anonymised accounts is reserved.
func ValidateUsername(username string) bool {
	if strings.HasPrefix(strings.ToLower(username), anonymizedPrefix) {
		return false
	}
	return usernamePattern.MatchString(username)
}

func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String())
	})
}

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := RegisterValidations(v); err != nil {
		panic("account: register validations: " + err.Error())
	}
	return v
}
