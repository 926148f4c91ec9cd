// AngelaMos | 2026
// entity.go

package deletion

import (
	"errors"
	"time"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrAlreadyDeleted  = errors.New("account already deleted")
	ErrInvalidAction   = errors.New("invalid deletion action")
	ErrSelfTarget      = errors.New("admins cannot delete their own account here")
)

// Reason is why an account was deleted. The codes are stored verbatim.
type Reason string

const (
	ReasonSelf    Reason = "sd"
	ReasonAdmin   Reason = "ad"
	ReasonSpammer Reason = "sp"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonSelf, ReasonAdmin, ReasonSpammer:
		return true
	default:
		return false
	}
}

// DeletedUser is the permanent record that an account existed. There is at
// most one per account id, and it survives removal of the account row.
type DeletedUser struct {
	ID           int64     `db:"id"            json:"id"`
	UserID       int64     `db:"user_id"       json:"user_id"`
	Username     string    `db:"username"      json:"username"`
	Email        string    `db:"email"         json:"-"`
	Reason       Reason    `db:"reason"        json:"reason"`
	DateJoined   time.Time `db:"date_joined"   json:"date_joined"`
	DeletionDate time.Time `db:"deletion_date" json:"deletion_date"`
}

// Options selects how much of an account goes away.
type Options struct {
	// RemoveContent tombstones and removes the account's sounds and packs.
	// Comments and forum posts stay, attributed to the anonymised account.
	RemoveContent bool
	// DeleteAccountRecord also removes the remaining social content and the
	// account row itself.
	DeleteAccountRecord bool
	Reason              Reason
}

func (o Options) normalize() Options {
	if o.DeleteAccountRecord {
		o.RemoveContent = true
	}
	if o.Reason == "" {
		o.Reason = ReasonSelf
	}
	return o
}
