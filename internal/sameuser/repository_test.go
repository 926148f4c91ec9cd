// AngelaMos | 2026
// repository_test.go

package sameuser

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/testdb"
)

func insertAccounts(t *testing.T, db *sqlx.DB, names ...string) []int64 {
	t.Helper()

	ids := make([]int64, 0, len(names))
	for _, name := range names {
		ids = append(ids, testdb.InsertID(t, db, `
			INSERT INTO accounts (username, email, password_hash)
			VALUES ($1, $1 || '@example.com', 'x') RETURNING id`, name))
	}
	return ids
}

func TestRepositoryLinks(t *testing.T) {
	db := testdb.Open(t, "accounts")
	repo := NewRepository(db)
	ctx := context.Background()

	ids := insertAccounts(t, db, "main", "second", "third")
	main, second, third := ids[0], ids[1], ids[2]

	link := &Link{
		MainUserID:         main,
		MainOrigEmail:      "shared@example.com",
		SecondaryUserID:    second,
		SecondaryOrigEmail: "shared@example.com",
	}
	require.NoError(t, repo.Create(ctx, link))
	assert.NotZero(t, link.ID)
	assert.False(t, link.CreatedAt.IsZero())

	dup := &Link{MainUserID: third, MainOrigEmail: "x", SecondaryUserID: second, SecondaryOrigEmail: "x"}
	require.ErrorIs(t, repo.Create(ctx, dup), core.ErrDuplicateKey, "an account is secondary at most once")

	require.NoError(t, repo.Create(ctx, &Link{
		MainUserID: main, MainOrigEmail: "shared@example.com",
		SecondaryUserID: third, SecondaryOrigEmail: "shared@example.com",
	}))

	found, err := repo.FindBySecondary(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, link.ID, found.ID)
	assert.Equal(t, main, found.Other(second))

	_, err = repo.FindBySecondary(ctx, main)
	require.ErrorIs(t, err, core.ErrNotFound)

	forMain, err := repo.ListForAccount(ctx, main)
	require.NoError(t, err)
	assert.Len(t, forMain, 2)

	err = (&core.Database{DB: db}).InTx(ctx, func(tx core.DBTX) error {
		locked, err := NewRepository(tx).ListForAccountForUpdate(ctx, second)
		require.NoError(t, err)
		assert.Len(t, locked, 1)
		return nil
	})
	require.NoError(t, err)

	page, total, err := repo.List(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, page, 1)

	require.NoError(t, repo.Delete(ctx, link.ID))
	require.ErrorIs(t, repo.Delete(ctx, link.ID), core.ErrNotFound)

	_, err = db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, third)
	require.NoError(t, err)
	n, err := repo.DeleteForAccount(ctx, main)
	require.NoError(t, err)
	assert.Zero(t, n, "links go with either account row")

	require.NoError(t, repo.Create(ctx, link))
	n, err = repo.DeleteForAccount(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
