// AngelaMos | 2026
// validation_test.go

package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{"rain", "field.rec", "a_b-c+d", "abc", "x23456789012345678901234567890"}
	for _, u := range valid {
		assert.True(t, ValidateUsername(u), u)
	}

	invalid := []string{
		"",
		"ab",
		"x234567890123456789012345678901",
		"with space",
		"rain@example.com",
		"semi;colon",
		"deleted_user_1",
		"DELETED_USER_abc",
	}
	for _, u := range invalid {
		assert.False(t, ValidateUsername(u), u)
	}
}

func TestNewValidatorUsernameTag(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Struct(ChangeUsernameRequest{Username: "rain"}))
	assert.Error(t, v.Struct(ChangeUsernameRequest{Username: "no"}))
	assert.Error(t, v.Struct(ChangeUsernameRequest{Username: "deleted_user_5"}))
}
