// AngelaMos | 2026
// testdb.go

// Package testdb hands tests a migrated Postgres database from
// TEST_DATABASE_URL. Tests that need it are skipped when it is unset.
package testdb

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/migrate"
)

// lockKey serialises test packages that share one database.
const lockKey = 7_305_001

// Open migrates TEST_DATABASE_URL and truncates tables. It holds an
// advisory lock until the test ends, so packages run one at a time.
func Open(t *testing.T, tables ...string) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	require.NoError(t, err)

	lock, err := db.Connx(ctx)
	require.NoError(t, err)
	_, err = lock.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockKey)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = lock.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey)
		_ = lock.Close()
		_ = db.Close()
	})

	require.NoError(t, migrate.UpDB(ctx, db.DB))

	if len(tables) > 0 {
		_, err = db.ExecContext(ctx,
			`TRUNCATE `+strings.Join(tables, ", ")+` RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	}

	return db
}

// InsertID runs an INSERT ... RETURNING id fixture statement.
func InsertID(t *testing.T, db *sqlx.DB, query string, args ...any) int64 {
	t.Helper()

	var id int64
	require.NoError(t, db.GetContext(context.Background(), &id, query, args...))
	return id
}
