// AngelaMos | 2026
// entity.go

package auth

import (
	"time"

	"github.com/angelamos/soundshare/internal/core"
)

// Session is one link in a refresh-token chain. Only the token hash is
// stored. Rotating a session marks it used and points it at its successor;
// every session of a chain shares a FamilyID.
type Session struct {
	ID           string     `db:"id"`
	AccountID    int64      `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	ExpiresAt    time.Time  `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	IsUsed       bool       `db:"is_used"`
	UsedAt       *time.Time `db:"used_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`

	// AccountAnonymized is read from the owning account, not stored.
	AccountAnonymized bool `db:"account_anonymized"`
}

// Check returns nil when the session may be rotated at now. A used
// session means its token was replayed; the caller revokes the family.
func (s *Session) Check(now time.Time) error {
	switch {
	case s.IsUsed:
		return ErrTokenReuse
	case s.RevokedAt != nil, s.AccountAnonymized:
		return core.ErrTokenRevoked
	case !now.Before(s.ExpiresAt):
		return core.ErrTokenExpired
	}
	return nil
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		UserAgent: s.UserAgent,
		IPAddress: s.IPAddress,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}
