// AngelaMos | 2026
// repository.go

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelamos/soundshare/internal/core"
)

// Repository persists deletion requests. Update reads the persisted status
// with FOR UPDATE, so callers run it inside a transaction.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id int64) (*Request, error)
	Update(ctx context.Context, req *Request) error
	ListOpenForTarget(ctx context.Context, targetID int64) ([]Request, error)
	CompleteForTarget(ctx context.Context, targetID, deletedUserID int64) (int64, error)
	ListStale(ctx context.Context, cutoff time.Time) ([]StaleRequest, error)
	CountOpen(ctx context.Context) (int, error)
	List(ctx context.Context, params ListParams) ([]Request, int, error)
}

type repository struct {
	db  core.DBTX
	now func() time.Time
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db, now: time.Now}
}

const requestColumns = `
		id, user_from_id, user_to_id, username_from, username_to,
		status, status_history, deleted_user_id, reason, created_at, last_updated`

func (r *repository) Create(ctx context.Context, req *Request) error {
	now := r.now().UTC()
	if err := req.RecordStatus("", now); err != nil {
		return fmt.Errorf("create deletion request: %w", err)
	}

	query := `
		INSERT INTO user_deletion_requests (
			user_from_id, user_to_id, username_from, username_to,
			status, status_history, deleted_user_id, reason, created_at, last_updated
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, last_updated`

	err := r.db.QueryRowxContext(ctx, query,
		req.UserFromID,
		req.UserToID,
		req.UsernameFrom,
		req.UsernameTo,
		req.Status,
		req.StatusHistory,
		req.DeletedUserID,
		req.Reason,
		now,
	).Scan(&req.ID, &req.CreatedAt, &req.LastUpdated)
	if err != nil {
		return fmt.Errorf("create deletion request: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Request, error) {
	var req Request
	err := r.db.GetContext(ctx, &req,
		`SELECT`+requestColumns+` FROM user_deletion_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get deletion request: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get deletion request: %w", err)
	}

	return &req, nil
}

func (r *repository) Update(ctx context.Context, req *Request) error {
	var persisted Status
	err := r.db.GetContext(ctx, &persisted, `
		SELECT status FROM user_deletion_requests
		WHERE id = $1
		FOR UPDATE`, req.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update deletion request: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update deletion request: %w", err)
	}

	if err := req.RecordStatus(persisted, r.now().UTC()); err != nil {
		return fmt.Errorf("update deletion request: %w", err)
	}

	query := `
		UPDATE user_deletion_requests
		SET status = $2, status_history = $3, deleted_user_id = $4,
		    reason = $5, last_updated = NOW()
		WHERE id = $1
		RETURNING last_updated`

	err = r.db.GetContext(ctx, &req.LastUpdated, query,
		req.ID,
		req.Status,
		req.StatusHistory,
		req.DeletedUserID,
		req.Reason,
	)
	if err != nil {
		return fmt.Errorf("update deletion request: %w", err)
	}

	return nil
}

func (r *repository) ListOpenForTarget(
	ctx context.Context,
	targetID int64,
) ([]Request, error) {
	var reqs []Request
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT`+requestColumns+`
		FROM user_deletion_requests
		WHERE user_to_id = $1 AND status <> 'de'
		ORDER BY id
		FOR UPDATE`, targetID)
	if err != nil {
		return nil, fmt.Errorf("list open deletion requests: %w", err)
	}

	return reqs, nil
}

// CompleteForTarget moves every open request for targetID to
// USER_WAS_DELETED and attaches the tombstone, appending to each history.
func (r *repository) CompleteForTarget(
	ctx context.Context,
	targetID, deletedUserID int64,
) (int64, error) {
	query := `
		UPDATE user_deletion_requests
		SET status = 'de',
		    status_history = status_history || jsonb_build_array(
		        jsonb_build_object('status', 'de', 'at', to_jsonb($3::timestamptz))
		    ),
		    deleted_user_id = $2,
		    last_updated = $3
		WHERE user_to_id = $1 AND status <> 'de'`

	result, err := r.db.ExecContext(ctx, query, targetID, deletedUserID, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("complete deletion requests: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete deletion requests: %w", err)
	}

	return rows, nil
}

// ListStale returns open requests created before cutoff together with the
// state of their targets. Rows locked by a concurrent sweep are skipped.
func (r *repository) ListStale(
	ctx context.Context,
	cutoff time.Time,
) ([]StaleRequest, error) {
	query := `
		SELECT r.id, r.user_from_id, r.user_to_id, r.username_from, r.username_to,
		       r.status, r.status_history, r.deleted_user_id, r.reason,
		       r.created_at, r.last_updated,
		       a.id IS NOT NULL AS target_exists,
		       COALESCE(a.is_anonymized, FALSE) AS target_anonymized,
		       COALESCE(r.deleted_user_id, du.id) AS tombstone_id
		FROM user_deletion_requests r
		LEFT JOIN accounts a ON a.id = r.user_to_id
		LEFT JOIN deleted_users du ON du.user_id = r.user_to_id
		WHERE r.status <> 'de' AND r.created_at < $1
		ORDER BY r.created_at, r.id
		FOR UPDATE OF r SKIP LOCKED`

	var stale []StaleRequest
	if err := r.db.SelectContext(ctx, &stale, query, cutoff); err != nil {
		return nil, fmt.Errorf("list stale deletion requests: %w", err)
	}

	return stale, nil
}

func (r *repository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM user_deletion_requests WHERE status <> 'de'`)
	if err != nil {
		return 0, fmt.Errorf("count open deletion requests: %w", err)
	}
	return n, nil
}

func (r *repository) List(
	ctx context.Context,
	params ListParams,
) ([]Request, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, params.Status)
		argIdx++
	}

	if params.UserToID != 0 {
		conditions = append(conditions, fmt.Sprintf("user_to_id = $%d", argIdx))
		args = append(args, params.UserToID)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM user_deletion_requests WHERE " + whereClause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count deletion requests: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM user_deletion_requests
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		requestColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var reqs []Request
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list deletion requests: %w", err)
	}

	return reqs, total, nil
}
