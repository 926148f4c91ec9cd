// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/angelamos/soundshare/internal/core"
)

// Repository stores refresh sessions. Reads carry the owning account's
// anonymization flag so a session never outlives its account's identity.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	FindByHash(ctx context.Context, tokenHash string) (*Session, error)
	FindByID(ctx context.Context, id string) (*Session, error)
	Rotate(ctx context.Context, id, replacedByID string) error
	Revoke(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	ListActive(ctx context.Context, userID int64) ([]Session, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const sessionSelect = `
	SELECT
		t.id, t.user_id, t.token_hash, t.family_id, t.expires_at, t.created_at,
		t.is_used, t.used_at, t.revoked_at, t.replaced_by_id, t.user_agent,
		t.ip_address, a.is_anonymized AS account_anonymized
	FROM refresh_tokens t
	JOIN accounts a ON a.id = t.user_id`

// Create refuses accounts that are inactive or anonymized with
// core.ErrTokenRevoked.
func (r *repository) Create(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, family_id, expires_at,
			user_agent, ip_address
		)
		SELECT $1::uuid, a.id, $3::text, $4::uuid, $5::timestamptz, $6::text, $7::text
		FROM accounts a
		WHERE a.id = $2 AND a.is_active AND NOT a.is_anonymized
		RETURNING created_at`

	err := r.db.GetContext(ctx, &s.CreatedAt, query,
		s.ID,
		s.AccountID,
		s.TokenHash,
		s.FamilyID,
		s.ExpiresAt,
		s.UserAgent,
		s.IPAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create session for account %d: %w", s.AccountID, core.ErrTokenRevoked)
	}
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(ctx context.Context, tokenHash string) (*Session, error) {
	return r.get(ctx, sessionSelect+` WHERE t.token_hash = $1`, tokenHash)
}

func (r *repository) FindByID(ctx context.Context, id string) (*Session, error) {
	return r.get(ctx, sessionSelect+` WHERE t.id = $1`, id)
}

func (r *repository) get(ctx context.Context, query string, arg any) (*Session, error) {
	var s Session
	err := r.db.GetContext(ctx, &s, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find session: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	return &s, nil
}

// Rotate marks id as used and links it to its successor. It fails with
// core.ErrNotFound when id was already rotated.
func (r *repository) Rotate(ctx context.Context, id, replacedByID string) error {
	query := `
		UPDATE refresh_tokens
		SET is_used = true, used_at = NOW(), replaced_by_id = $2
		WHERE id = $1 AND is_used = false`

	n, err := r.exec(ctx, query, id, replacedByID)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rotate session: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Revoke(ctx context.Context, id string) error {
	n, err := r.revokeWhere(ctx, "id = $1", id)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeFamily(ctx context.Context, familyID string) error {
	if _, err := r.revokeWhere(ctx, "family_id = $1", familyID); err != nil {
		return fmt.Errorf("revoke session family: %w", err)
	}
	return nil
}

func (r *repository) RevokeAllForUser(ctx context.Context, userID int64) error {
	if _, err := r.revokeWhere(ctx, "user_id = $1", userID); err != nil {
		return fmt.Errorf("revoke sessions of account %d: %w", userID, err)
	}
	return nil
}

func (r *repository) revokeWhere(ctx context.Context, cond string, arg any) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE revoked_at IS NULL AND ` + cond
	return r.exec(ctx, query, arg)
}

func (r *repository) ListActive(ctx context.Context, userID int64) ([]Session, error) {
	query := sessionSelect + `
		WHERE t.user_id = $1
			AND NOT a.is_anonymized
			AND t.revoked_at IS NULL
			AND t.is_used = false
			AND t.expires_at > NOW()
		ORDER BY t.created_at DESC`

	var sessions []Session
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

// Prune deletes sessions that expired or were revoked before the cutoff,
// and every session of an anonymized account.
func (r *repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens t
		USING accounts a
		WHERE a.id = t.user_id
			AND (t.expires_at < $1 OR t.revoked_at < $1 OR a.is_anonymized)`

	n, err := r.exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}

	return n, nil
}

func (r *repository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
