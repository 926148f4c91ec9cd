// AngelaMos | 2026
// entity.go

package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelamos/soundshare/internal/core"
)

type Account struct {
	ID                int64     `db:"id"`
	Username          string    `db:"username"`
	Email             string    `db:"email"`
	PasswordHash      string    `db:"password_hash"`
	Role              string    `db:"role"`
	IsActive          bool      `db:"is_active"`
	IsAnonymized      bool      `db:"is_anonymized"`
	About             string    `db:"about"`
	HomePage          string    `db:"home_page"`
	Signature         string    `db:"signature"`
	GeoLat            *float64  `db:"geo_lat"`
	GeoLon            *float64  `db:"geo_lon"`
	NumSounds         int       `db:"num_sounds"`
	NumPosts          int       `db:"num_posts"`
	NumSoundDownloads int       `db:"num_sound_downloads"`
	NumPackDownloads  int       `db:"num_pack_downloads"`
	TokenVersion      int       `db:"token_version"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

type OldUsername struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

// Counters are the denormalised per-account totals.
type Counters struct {
	NumSounds         int `db:"num_sounds"          json:"num_sounds"`
	NumPosts          int `db:"num_posts"           json:"num_posts"`
	NumSoundDownloads int `db:"num_sound_downloads" json:"num_sound_downloads"`
	NumPackDownloads  int `db:"num_pack_downloads"  json:"num_pack_downloads"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const anonymizedPrefix = "deleted_user_"

func AnonymizedUsername(id int64) string {
	return fmt.Sprintf("%s%d", anonymizedPrefix, id)
}

func AnonymizedEmail(id int64, domain string) string {
	return fmt.Sprintf("%s%d@%s", anonymizedPrefix, id, domain)
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a *Account) HasUsablePassword() bool {
	return core.IsUsablePassword(a.PasswordHash)
}

// IsActiveDeliveryIdentity reports whether mail may be sent on behalf of
// this account.
func (a *Account) IsActiveDeliveryIdentity() bool {
	return a.IsActive && !a.IsAnonymized
}

func (a *Account) Counters() Counters {
	return Counters{
		NumSounds:         a.NumSounds,
		NumPosts:          a.NumPosts,
		NumSoundDownloads: a.NumSoundDownloads,
		NumPackDownloads:  a.NumPackDownloads,
	}
}

// Anonymize strips every identifying field in place. Counters and the
// creation date stay so that public content keeps a consistent author.
func (a *Account) Anonymize(emailDomain string) {
	a.Username = AnonymizedUsername(a.ID)
	a.Email = AnonymizedEmail(a.ID, emailDomain)
	a.PasswordHash = core.UnusablePassword()
	a.About = ""
	a.HomePage = ""
	a.Signature = ""
	a.GeoLat = nil
	a.GeoLon = nil
	a.IsActive = false
	a.IsAnonymized = true
	a.TokenVersion++
}

// ShouldRecordOldUsername reports whether replacing previous with next must
// leave a history record. Case-only edits do not.
func ShouldRecordOldUsername(previous, next string) bool {
	if previous == "" || previous == next {
		return false
	}
	return !strings.EqualFold(previous, next)
}

func IsCaseOnlyChange(previous, next string) bool {
	return previous != next && strings.EqualFold(previous, next)
}
