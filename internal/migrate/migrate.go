// AngelaMos | 2026
// migrate.go

// Package migrate applies the embedded goose migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/angelamos/soundshare/migrations"
)

var (
	setupOnce sync.Once
	setupErr  error
)

// Up opens dsn and runs every pending migration.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-only handle

	return UpDB(ctx, db)
}

// UpDB runs every pending migration on an open handle.
func UpDB(ctx context.Context, db *sql.DB) error {
	setupOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		setupErr = goose.SetDialect("postgres")
	})
	if setupErr != nil {
		return fmt.Errorf("set dialect: %w", setupErr)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
