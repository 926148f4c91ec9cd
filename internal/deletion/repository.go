// AngelaMos | 2026
// repository.go

package deletion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/angelamos/soundshare/internal/core"
)

// Repository owns the deleted_users table and the final removal of an
// account row.
type Repository interface {
	FindByUserID(ctx context.Context, userID int64) (*DeletedUser, error)
	Create(ctx context.Context, du *DeletedUser) error
	RemoveAccount(ctx context.Context, accountID int64) error
	CountByReason(ctx context.Context) (map[Reason]int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) FindByUserID(
	ctx context.Context,
	userID int64,
) (*DeletedUser, error) {
	var du DeletedUser
	err := r.db.GetContext(ctx, &du, `
		SELECT id, user_id, username, email, reason, date_joined, deletion_date
		FROM deleted_users
		WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find deleted user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find deleted user: %w", err)
	}

	return &du, nil
}

func (r *repository) Create(ctx context.Context, du *DeletedUser) error {
	query := `
		INSERT INTO deleted_users (user_id, username, email, reason, date_joined)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, deletion_date`

	err := r.db.QueryRowxContext(ctx, query,
		du.UserID,
		du.Username,
		du.Email,
		du.Reason,
		du.DateJoined,
	).Scan(&du.ID, &du.DeletionDate)
	if err != nil {
		if core.IsUniqueViolation(err) {
			return fmt.Errorf("create deleted user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create deleted user: %w", err)
	}

	return nil
}

// RemoveAccount deletes the account row. Username history, same-user links
// and refresh tokens cascade; content tables do not, so content must be
// gone before this runs.
func (r *repository) RemoveAccount(ctx context.Context, accountID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("remove account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove account: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove account: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) CountByReason(ctx context.Context) (map[Reason]int, error) {
	rows := []struct {
		Reason Reason `db:"reason"`
		Count  int    `db:"count"`
	}{}

	err := r.db.SelectContext(ctx, &rows, `
		SELECT reason, COUNT(*) AS count
		FROM deleted_users
		GROUP BY reason`)
	if err != nil {
		return nil, fmt.Errorf("count deleted users: %w", err)
	}

	counts := make(map[Reason]int, len(rows))
	for _, row := range rows {
		counts[row.Reason] = row.Count
	}

	return counts, nil
}
