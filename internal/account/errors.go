// AngelaMos | 2026
// errors.go

package account

import (
	"errors"

	"github.com/angelamos/soundshare/internal/core"
)

var (
	ErrInvalidUsername     = errors.New("invalid username")
	ErrUsernameTaken       = errors.New("username already taken or used in the past")
	ErrEmailTaken          = errors.New("email already in use")
	ErrUsernameChangeLimit = errors.New("username change limit reached")
)

// Messages rendered to clients for the errors above.
const (
	MsgInvalidUsername     = "Usernames have 3 to 30 characters: letters, digits and _ . + - only."
	MsgUsernameTaken       = "This username is already taken or has been used in the past."
	MsgEmailTaken          = "This email is already in use by another account."
	MsgUsernameChangeLimit = "You have reached the maximum number of username changes."
)

// fieldError attaches the client-facing field message to a domain error. The
// result still matches the sentinel with errors.Is.
func fieldError(err error) error {
	var field, msg string
	switch {
	case errors.Is(err, ErrInvalidUsername):
		field, msg = "username", MsgInvalidUsername
	case errors.Is(err, ErrUsernameTaken):
		field, msg = "username", MsgUsernameTaken
	case errors.Is(err, ErrUsernameChangeLimit):
		field, msg = "username", MsgUsernameChangeLimit
	case errors.Is(err, ErrEmailTaken):
		field, msg = "email", MsgEmailTaken
	default:
		return err
	}

	appErr := core.FieldError(field, msg)
	appErr.Err = err
	return appErr
}
