// AngelaMos | 2026
// repository_test.go

package account

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/testdb"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return testdb.Open(t, "accounts", "old_usernames")
}

func TestRepositoryUsernameHistory(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	rain := &Account{Username: "rain", Email: "rain@example.com", PasswordHash: "x", Role: RoleUser}
	require.NoError(t, repo.Create(ctx, rain))
	other := &Account{Username: "thunder", Email: "thunder@example.com", PasswordHash: "x", Role: RoleUser}
	require.NoError(t, repo.Create(ctx, other))

	dup := &Account{Username: "RAIN", Email: "x@example.com", PasswordHash: "x", Role: RoleUser}
	require.ErrorIs(t, repo.Create(ctx, dup), ErrUsernameTaken)

	rain.Username = "Rain"
	require.NoError(t, repo.Update(ctx, rain))
	n, err := repo.CountOldUsernames(ctx, rain.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "case-only rename leaves no history")

	rain.Username = "drizzle"
	require.NoError(t, repo.Update(ctx, rain))
	rain.Username = "rain"
	require.NoError(t, repo.Update(ctx, rain))
	rain.Username = "drizzle"
	require.NoError(t, repo.Update(ctx, rain))

	old, err := repo.ListOldUsernames(ctx, rain.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(old))
	for _, o := range old {
		names = append(names, o.Username)
	}
	assert.ElementsMatch(t, []string{"Rain", "drizzle"}, names,
		"a name already in the history is not recorded twice")

	collides, err := repo.UsernameCollides(ctx, "RAIN", other.ID)
	require.NoError(t, err)
	assert.True(t, collides, "past names stay reserved for other accounts")

	collides, err = repo.UsernameCollides(ctx, "rain", rain.ID)
	require.NoError(t, err)
	assert.False(t, collides, "own past names are free")

	inUse, err := repo.EmailInUse(ctx, "THUNDER@example.com", rain.ID)
	require.NoError(t, err)
	assert.True(t, inUse)

	deleted, err := repo.DeleteOldUsernames(ctx, rain.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestRepositoryAnonymize(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	acc := &Account{Username: "rain", Email: "rain@example.com", PasswordHash: "x", Role: RoleUser, IsActive: true}
	require.NoError(t, repo.Create(ctx, acc))

	acc.Anonymize("anon.invalid")
	require.NoError(t, repo.Anonymize(ctx, acc))

	got, err := repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, AnonymizedUsername(acc.ID), got.Username)
	assert.True(t, got.IsAnonymized)
	assert.False(t, got.IsActive)
	assert.False(t, got.HasUsablePassword())

	require.NoError(t, repo.DecrementCounters(ctx, acc.ID, Counters{NumSounds: 5, NumPosts: 1}))
	got, err = repo.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, got.NumSounds, "decrements saturate at zero")
	assert.Zero(t, got.NumPosts)
}
