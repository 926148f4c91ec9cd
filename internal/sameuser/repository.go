// AngelaMos | 2026
// repository.go

package sameuser

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/angelamos/soundshare/internal/core"
)

type Repository interface {
	Create(ctx context.Context, link *Link) error
	ListForAccount(ctx context.Context, accountID int64) ([]Link, error)
	ListForAccountForUpdate(ctx context.Context, accountID int64) ([]Link, error)
	FindBySecondary(ctx context.Context, secondaryID int64) (*Link, error)
	Delete(ctx context.Context, id int64) error
	DeleteForAccount(ctx context.Context, accountID int64) (int64, error)
	List(ctx context.Context, limit, offset int) ([]Link, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const linkColumns = `
		id, main_user_id, main_orig_email,
		secondary_user_id, secondary_orig_email, created_at`

func (r *repository) Create(ctx context.Context, link *Link) error {
	query := `
		INSERT INTO same_users (
			main_user_id, main_orig_email, secondary_user_id, secondary_orig_email
		)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		link.MainUserID,
		link.MainOrigEmail,
		link.SecondaryUserID,
		link.SecondaryOrigEmail,
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create same-user link: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create same-user link: %w", err)
	}

	return nil
}

func (r *repository) ListForAccount(
	ctx context.Context,
	accountID int64,
) ([]Link, error) {
	return r.list(ctx, "list same-user links", `
		SELECT`+linkColumns+`
		FROM same_users
		WHERE main_user_id = $1 OR secondary_user_id = $1
		ORDER BY id`, accountID)
}

func (r *repository) ListForAccountForUpdate(
	ctx context.Context,
	accountID int64,
) ([]Link, error) {
	return r.list(ctx, "lock same-user links", `
		SELECT`+linkColumns+`
		FROM same_users
		WHERE main_user_id = $1 OR secondary_user_id = $1
		ORDER BY id
		FOR UPDATE`, accountID)
}

func (r *repository) list(
	ctx context.Context,
	op, query string,
	args ...any,
) ([]Link, error) {
	var links []Link
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return links, nil
}

func (r *repository) FindBySecondary(
	ctx context.Context,
	secondaryID int64,
) (*Link, error) {
	var link Link
	err := r.db.GetContext(ctx, &link, `
		SELECT`+linkColumns+`
		FROM same_users
		WHERE secondary_user_id = $1`, secondaryID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find same-user link: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find same-user link: %w", err)
	}

	return &link, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM same_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete same-user link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete same-user link: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete same-user link: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) DeleteForAccount(
	ctx context.Context,
	accountID int64,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM same_users
		WHERE main_user_id = $1 OR secondary_user_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete same-user links: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete same-user links: %w", err)
	}

	return rows, nil
}

func (r *repository) List(
	ctx context.Context,
	limit, offset int,
) ([]Link, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM same_users`); err != nil {
		return nil, 0, fmt.Errorf("count same-user links: %w", err)
	}

	links, err := r.list(ctx, "list same-user links", `
		SELECT`+linkColumns+`
		FROM same_users
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	return links, total, nil
}
