// AngelaMos | 2026
// repository.go

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/soundshare/internal/core"
)

type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	Update(ctx context.Context, account *Account) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	IncrementTokenVersion(ctx context.Context, id int64) error
	Activate(ctx context.Context, id int64) error
	Anonymize(ctx context.Context, account *Account) error
	List(ctx context.Context, params ListAccountsParams) ([]Account, int, error)
	UsernameCollides(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailInUse(ctx context.Context, email string, excludeID int64) (bool, error)
	CountOldUsernames(ctx context.Context, id int64) (int, error)
	ListOldUsernames(ctx context.Context, id int64) ([]OldUsername, error)
	DeleteOldUsernames(ctx context.Context, id int64) (int64, error)
	DecrementCounters(ctx context.Context, id int64, by Counters) error
	RecomputeCounters(ctx context.Context, id int64) (*Counters, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const accountColumns = `
		id, username, email, password_hash, role, is_active, is_anonymized,
		about, home_page, signature, geo_lat, geo_lon,
		num_sounds, num_posts, num_sound_downloads, num_pack_downloads,
		token_version, created_at, updated_at`

func (r *repository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (username, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at, token_version`

	err := r.db.QueryRowxContext(ctx, query,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.IsActive,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt, &account.TokenVersion)
	if err != nil {
		return fmt.Errorf("create account: %w", mapUniqueViolation(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.getOne(ctx, "get account",
		`SELECT`+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *repository) GetByIDForUpdate(
	ctx context.Context,
	id int64,
) (*Account, error) {
	return r.getOne(ctx, "lock account",
		`SELECT`+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*Account, error) {
	return r.getOne(ctx, "get account by email",
		`SELECT`+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email)
}

func (r *repository) GetByUsername(
	ctx context.Context,
	username string,
) (*Account, error) {
	return r.getOne(ctx, "get account by username",
		`SELECT`+accountColumns+` FROM accounts WHERE lower(username) = lower($1)`, username)
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Account, error) {
	var account Account
	err := r.db.GetContext(ctx, &account, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &account, nil
}

// Update persists the mutable profile columns. When the username changes
// other than by case, the previous value is appended to old_usernames in
// the same statement, so the history row and the rename commit together.
func (r *repository) Update(ctx context.Context, account *Account) error {
	query := `
		WITH prev AS (
			SELECT id, username FROM accounts WHERE id = $1 FOR UPDATE
		), history AS (
			INSERT INTO old_usernames (user_id, username)
			SELECT prev.id, prev.username FROM prev
			WHERE prev.username <> $2 AND lower(prev.username) <> lower($2)
			ON CONFLICT DO NOTHING
		)
		UPDATE accounts a
		SET username = $2, email = $3, role = $4, is_active = $5,
		    about = $6, home_page = $7, signature = $8,
		    geo_lat = $9, geo_lon = $10, updated_at = NOW()
		FROM prev
		WHERE a.id = prev.id
		RETURNING a.updated_at`

	err := r.db.GetContext(ctx, &account.UpdatedAt, query,
		account.ID,
		account.Username,
		account.Email,
		account.Role,
		account.IsActive,
		account.About,
		account.HomePage,
		account.Signature,
		account.GeoLat,
		account.GeoLon,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update account: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update account: %w", mapUniqueViolation(err))
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id int64,
	passwordHash string,
) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) IncrementTokenVersion(ctx context.Context, id int64) error {
	query := `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "increment token version", query, id)
}

func (r *repository) Activate(ctx context.Context, id int64) error {
	query := `
		UPDATE accounts
		SET is_active = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_anonymized = FALSE`

	return r.execOne(ctx, "activate account", query, id)
}

// Anonymize writes the scrubbed identity without touching username history;
// the deletion engine clears that history in the same transaction.
func (r *repository) Anonymize(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET username = $2, email = $3, password_hash = $4,
		    about = $5, home_page = $6, signature = $7,
		    geo_lat = $8, geo_lon = $9,
		    is_active = $10, is_anonymized = $11, token_version = $12,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &account.UpdatedAt, query,
		account.ID,
		account.Username,
		account.Email,
		account.PasswordHash,
		account.About,
		account.HomePage,
		account.Signature,
		account.GeoLat,
		account.GeoLon,
		account.IsActive,
		account.IsAnonymized,
		account.TokenVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("anonymize account: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("anonymize account: %w", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "TRUE")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR username ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Anonymized != nil {
		conditions = append(conditions, fmt.Sprintf("is_anonymized = $%d", argIdx))
		args = append(args, *params.Anonymized)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM accounts WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM accounts
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		accountColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var accounts []Account
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, total, nil
}

// UsernameCollides reports whether username matches, ignoring case, the
// current or a past username of any account other than excludeID.
func (r *repository) UsernameCollides(
	ctx context.Context,
	username string,
	excludeID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE lower(username) = lower($1) AND id <> $2
		) OR EXISTS (
			SELECT 1 FROM old_usernames
			WHERE lower(username) = lower($1) AND user_id <> $2
		)`

	var collides bool
	if err := r.db.GetContext(ctx, &collides, query, username, excludeID); err != nil {
		return false, fmt.Errorf("check username collision: %w", err)
	}

	return collides, nil
}

func (r *repository) EmailInUse(
	ctx context.Context,
	email string,
	excludeID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM accounts
			WHERE lower(email) = lower($1) AND id <> $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check email in use: %w", err)
	}

	return exists, nil
}

func (r *repository) CountOldUsernames(ctx context.Context, id int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM old_usernames WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return 0, fmt.Errorf("count old usernames: %w", err)
	}
	return n, nil
}

func (r *repository) ListOldUsernames(
	ctx context.Context,
	id int64,
) ([]OldUsername, error) {
	query := `
		SELECT id, user_id, username, created_at
		FROM old_usernames
		WHERE user_id = $1
		ORDER BY created_at, id`

	var names []OldUsername
	if err := r.db.SelectContext(ctx, &names, query, id); err != nil {
		return nil, fmt.Errorf("list old usernames: %w", err)
	}

	return names, nil
}

func (r *repository) DeleteOldUsernames(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM old_usernames WHERE user_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete old usernames: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old usernames: %w", err)
	}

	return rows, nil
}

// DecrementCounters lowers the cached totals, clamping at zero. A cache that
// was already out of sync must not block a deletion.
func (r *repository) DecrementCounters(
	ctx context.Context,
	id int64,
	by Counters,
) error {
	query := `
		UPDATE accounts
		SET num_sounds          = GREATEST(num_sounds - $2, 0),
		    num_posts           = GREATEST(num_posts - $3, 0),
		    num_sound_downloads = GREATEST(num_sound_downloads - $4, 0),
		    num_pack_downloads  = GREATEST(num_pack_downloads - $5, 0)
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id,
		by.NumSounds, by.NumPosts, by.NumSoundDownloads, by.NumPackDownloads)
	if err != nil {
		return fmt.Errorf("decrement counters: %w", err)
	}

	return nil
}

func (r *repository) RecomputeCounters(
	ctx context.Context,
	id int64,
) (*Counters, error) {
	query := `
		UPDATE accounts a
		SET num_sounds          = (SELECT COUNT(*) FROM sounds s WHERE s.user_id = a.id),
		    num_posts           = (SELECT COUNT(*) FROM posts p WHERE p.author_id = a.id),
		    num_sound_downloads = (SELECT COUNT(*) FROM downloads d WHERE d.user_id = a.id),
		    num_pack_downloads  = (SELECT COUNT(*) FROM pack_downloads pd WHERE pd.user_id = a.id),
		    updated_at = NOW()
		WHERE a.id = $1
		RETURNING num_sounds, num_posts, num_sound_downloads, num_pack_downloads`

	var counters Counters
	err := r.db.GetContext(ctx, &counters, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recompute counters: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("recompute counters: %w", err)
	}

	return &counters, nil
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func mapUniqueViolation(err error) error {
	constraint, ok := core.ViolatedConstraint(err)
	if !ok {
		return err
	}

	switch constraint {
	case "accounts_username_lower_key":
		return ErrUsernameTaken
	case "accounts_email_lower_key":
		return ErrEmailTaken
	default:
		return core.ErrDuplicateKey
	}
}
