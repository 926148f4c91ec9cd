// AngelaMos | 2026
// entity.go

package sameuser

import (
	"fmt"
	"strings"
	"time"
)

// Link ties two accounts that were registered with the same email. The
// secondary's address was rewritten to a unique placeholder; the link lives
// until one of the owners changes their address.
type Link struct {
	ID                 int64     `db:"id"`
	MainUserID         int64     `db:"main_user_id"`
	MainOrigEmail      string    `db:"main_orig_email"`
	SecondaryUserID    int64     `db:"secondary_user_id"`
	SecondaryOrigEmail string    `db:"secondary_orig_email"`
	CreatedAt          time.Time `db:"created_at"`
}

// Other returns the id of the account on the opposite side of the link.
func (l *Link) Other(accountID int64) int64 {
	if l.MainUserID == accountID {
		return l.SecondaryUserID
	}
	return l.MainUserID
}

// MainChanged reports whether the main account moved off its original email.
func (l *Link) MainChanged(currentEmail string) bool {
	return currentEmail != l.MainOrigEmail
}

// SecondaryChanged reports whether the secondary account moved off the
// placeholder it was given when the link was created.
func (l *Link) SecondaryChanged(currentEmail, domain string) bool {
	return currentEmail != TransformUniqueEmail(l.SecondaryOrigEmail, domain)
}

// TransformUniqueEmail maps a shared address onto a unique placeholder that
// still encodes the original: user@host becomes dupemail+user%host@domain.
func TransformUniqueEmail(email, domain string) string {
	local, host, found := strings.Cut(email, "@")
	if !found {
		return fmt.Sprintf("dupemail+%s@%s", local, domain)
	}
	return fmt.Sprintf("dupemail+%s%%%s@%s", local, host, domain)
}
