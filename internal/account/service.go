// AngelaMos | 2026
// service.go

package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelamos/soundshare/internal/auth"
	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
)

// EditMode distinguishes self-service edits, which are rate limited, from
// admin edits, which are not.
type EditMode int

const (
	EditSelf EditMode = iota
	EditAdmin
)

type Service struct {
	repo               Repository
	maxUsernameChanges int
}

func NewService(repo Repository, cfg config.AccountsConfig) *Service {
	return &Service{
		repo:               repo,
		maxUsernameChanges: cfg.UsernameChangeMaxTimes,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*auth.UserInfo, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(account), nil
}

func (s *Service) GetByEmail(
	ctx context.Context,
	email string,
) (*auth.UserInfo, error) {
	account, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(account), nil
}

// GetByLogin resolves either a username or an email. Usernames never
// contain "@", so the two namespaces cannot overlap.
func (s *Service) GetByLogin(
	ctx context.Context,
	login string,
) (*auth.UserInfo, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return s.GetByEmail(ctx, login)
	}

	account, err := s.repo.GetByUsername(ctx, login)
	if err != nil {
		return nil, err
	}

	return toUserInfo(account), nil
}

func (s *Service) Create(
	ctx context.Context,
	username, email, passwordHash string,
) (*auth.UserInfo, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := s.checkUsernameAvailable(ctx, username, 0); err != nil {
		return nil, fmt.Errorf("create account: %w", fieldError(err))
	}

	inUse, err := s.repo.EmailInUse(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("create account: %w", fieldError(ErrEmailTaken))
	}

	account := &Account{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		IsActive:     false,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return nil, fieldError(err)
	}

	return toUserInfo(account), nil
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.Activate(ctx, id)
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID int64) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID int64,
	passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetAccount(ctx context.Context, id int64) (*Account, error) {
	if id == 0 {
		return nil, fmt.Errorf("get account: %w", core.ErrUnauthorized)
	}
	return s.repo.GetByID(ctx, id)
}

// ChangeUsername renames an account. Self-service renames stop once the
// history holds maxUsernameChanges entries; case-only renames are never
// counted.
func (s *Service) ChangeUsername(
	ctx context.Context,
	id int64,
	candidate string,
	mode EditMode,
) (*Account, error) {
	candidate = strings.TrimSpace(candidate)

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if candidate == account.Username {
		return account, nil
	}

	if !IsCaseOnlyChange(account.Username, candidate) {
		if err := s.checkUsernameAvailable(ctx, candidate, id); err != nil {
			return nil, fmt.Errorf("change username: %w", fieldError(err))
		}

		if mode == EditSelf {
			changes, err := s.repo.CountOldUsernames(ctx, id)
			if err != nil {
				return nil, err
			}
			if changes >= s.maxUsernameChanges {
				return nil, fmt.Errorf("change username: %w", fieldError(ErrUsernameChangeLimit))
			}
		}
	}

	account.Username = candidate
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, fieldError(err)
	}

	return account, nil
}

// UsernameChangesLeft is what a profile form shows next to the username.
func (s *Service) UsernameChangesLeft(ctx context.Context, id int64) (int, error) {
	changes, err := s.repo.CountOldUsernames(ctx, id)
	if err != nil {
		return 0, err
	}
	return max(s.maxUsernameChanges-changes, 0), nil
}

func (s *Service) ChangeEmail(
	ctx context.Context,
	id int64,
	email string,
) (*Account, error) {
	email = strings.TrimSpace(email)

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	inUse, err := s.repo.EmailInUse(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, fmt.Errorf("change email: %w", fieldError(ErrEmailTaken))
	}

	account.Email = email
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, fieldError(err)
	}

	return account, nil
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	id int64,
	req UpdateProfileRequest,
) (*Account, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.About != nil {
		account.About = *req.About
	}
	if req.HomePage != nil {
		account.HomePage = *req.HomePage
	}
	if req.Signature != nil {
		account.Signature = *req.Signature
	}
	if req.ClearGeo {
		account.GeoLat, account.GeoLon = nil, nil
	} else if req.GeoLat != nil && req.GeoLon != nil {
		account.GeoLat, account.GeoLon = req.GeoLat, req.GeoLon
	}

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *Service) UpdateRole(
	ctx context.Context,
	id int64,
	role string,
) (*Account, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	account.Role = role

	if err := s.repo.Update(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *Service) ListAccounts(
	ctx context.Context,
	params ListAccountsParams,
) ([]Account, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) OldUsernames(ctx context.Context, id int64) ([]OldUsername, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListOldUsernames(ctx, id)
}

func (s *Service) RecomputeCounters(ctx context.Context, id int64) (*Counters, error) {
	return s.repo.RecomputeCounters(ctx, id)
}

func (s *Service) checkUsernameAvailable(
	ctx context.Context,
	username string,
	excludeID int64,
) error {
	if !ValidateUsername(username) {
		return ErrInvalidUsername
	}

	collides, err := s.repo.UsernameCollides(ctx, username, excludeID)
	if err != nil {
		return err
	}
	if collides {
		return ErrUsernameTaken
	}

	return nil
}

func toUserInfo(a *Account) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           a.ID,
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         a.Role,
		TokenVersion: a.TokenVersion,
		IsActive:     a.IsActive,
		IsAnonymized: a.IsAnonymized,
		CreatedAt:    a.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
