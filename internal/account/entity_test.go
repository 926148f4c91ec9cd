// AngelaMos | 2026
// entity_test.go

package account

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelamos/soundshare/internal/core"
)

func TestAnonymize(t *testing.T) {
	lat, lon := 1.5, 2.5
	a := &Account{
		ID:           42,
		Username:     "rain",
		Email:        "rain@example.com",
		PasswordHash: "hash",
		About:        "about",
		HomePage:     "https://example.com",
		Signature:    "sig",
		GeoLat:       &lat,
		GeoLon:       &lon,
		IsActive:     true,
		NumSounds:    7,
		TokenVersion: 3,
	}

	a.Anonymize("anon.invalid")

	assert.Equal(t, "deleted_user_42", a.Username)
	assert.Equal(t, "deleted_user_42@anon.invalid", a.Email)
	assert.False(t, core.IsUsablePassword(a.PasswordHash))
	assert.False(t, a.HasUsablePassword())
	assert.Empty(t, a.About)
	assert.Empty(t, a.HomePage)
	assert.Empty(t, a.Signature)
	assert.Nil(t, a.GeoLat)
	assert.Nil(t, a.GeoLon)
	assert.False(t, a.IsActive)
	assert.True(t, a.IsAnonymized)
	assert.False(t, a.IsActiveDeliveryIdentity())
	assert.Equal(t, 4, a.TokenVersion)
	assert.Equal(t, 7, a.NumSounds)
}

func TestShouldRecordOldUsername(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		next     string
		want     bool
	}{
		{"new name", "rain", "drizzle", true},
		{"case only", "rain", "Rain", false},
		{"unchanged", "rain", "rain", false},
		{"no previous", "", "rain", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRecordOldUsername(tt.previous, tt.next))
		})
	}
}

func TestIsCaseOnlyChange(t *testing.T) {
	assert.True(t, IsCaseOnlyChange("rain", "RAIN"))
	assert.False(t, IsCaseOnlyChange("rain", "rain"))
	assert.False(t, IsCaseOnlyChange("rain", "drizzle"))
}
