// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/middleware"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrAccountInactive    = errors.New("account not activated")
	ErrActivationInvalid  = errors.New("activation token invalid or expired")
)

type UserInfo struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	TokenVersion int
	IsActive     bool
	IsAnonymized bool
	CreatedAt    time.Time
}

type UserProvider interface {
	GetByLogin(ctx context.Context, login string) (*UserInfo, error)
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id int64) (*UserInfo, error)
	Create(
		ctx context.Context,
		username, email, passwordHash string,
	) (*UserInfo, error)
	Activate(ctx context.Context, userID int64) error
	IncrementTokenVersion(ctx context.Context, userID int64) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// Mailer delivers account mail to the account's resolved delivery address.
type Mailer interface {
	SendActivation(ctx context.Context, userID int64, token string) error
	SendUsernameReminder(ctx context.Context, userID int64) error
}

// EmailReconciler settles shared-email links at login and reports whether
// the account still needs an email cleanup.
type EmailReconciler interface {
	Reconcile(ctx context.Context, userID int64) (bool, error)
}

type ServiceConfig struct {
	Mailer        Mailer
	Reconciler    EmailReconciler
	ActivationTTL time.Duration
	KeyPrefix     string
}

type Service struct {
	repo          Repository
	jwt           *JWTManager
	userProvider  UserProvider
	redis         *redis.Client
	mailer        Mailer
	reconciler    EmailReconciler
	activationTTL time.Duration
	keyPrefix     string
	blacklistTTL  time.Duration
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	redisClient *redis.Client,
	cfg ServiceConfig,
) *Service {
	ttl := cfg.ActivationTTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	return &Service{
		repo:          repo,
		jwt:           jwt,
		userProvider:  userProvider,
		redis:         redisClient,
		mailer:        cfg.Mailer,
		reconciler:    cfg.Reconciler,
		activationTTL: ttl,
		keyPrefix:     cfg.KeyPrefix,
		blacklistTTL:  jwt.AccessTokenTTL(),
	}
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.userProvider.GetByLogin(ctx, req.Login)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid || user.IsAnonymized {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, newHash)
	}

	cleanup := false
	if s.reconciler != nil {
		cleanup, err = s.reconciler.Reconcile(ctx, user.ID)
		if err != nil {
			slog.WarnContext(ctx, "same-user reconciliation failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	resp, err := s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
	if err != nil {
		return nil, err
	}
	resp.EmailCleanupRequired = cleanup

	return resp, nil
}

// Register creates an inactive account and mails an activation token.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
) (*RegisterResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, req.Username, req.Email, passwordHash)
	if err != nil {
		return nil, err
	}

	token, err := s.issueActivationToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.SendActivation(ctx, user.ID, token); err != nil {
			slog.ErrorContext(ctx, "send activation mail failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return &RegisterResponse{
		User:               toUserResponse(user),
		ActivationRequired: true,
	}, nil
}

func (s *Service) Activate(ctx context.Context, token string) error {
	key := s.activationKey(token)

	raw, err := s.redis.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrActivationInvalid
	}
	if err != nil {
		return fmt.Errorf("read activation token: %w", err)
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return ErrActivationInvalid
	}

	if err := s.userProvider.Activate(ctx, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrActivationInvalid
		}
		return fmt.Errorf("activate account: %w", err)
	}

	return nil
}

// ResendActivation issues a fresh token for an account that is still
// inactive. Unknown or already active addresses are ignored silently.
func (s *Service) ResendActivation(ctx context.Context, email string) error {
	user, err := s.userProvider.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if user.IsActive || user.IsAnonymized || s.mailer == nil {
		return nil
	}

	token, err := s.issueActivationToken(ctx, user.ID)
	if err != nil {
		return err
	}

	return s.mailer.SendActivation(ctx, user.ID, token)
}

// UsernameReminder mails the username to the owner of email. The response
// never reveals whether the address is known.
func (s *Service) UsernameReminder(ctx context.Context, email string) error {
	user, err := s.userProvider.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if user.IsAnonymized || s.mailer == nil {
		return nil
	}

	if err := s.mailer.SendUsernameReminder(ctx, user.ID); err != nil {
		return fmt.Errorf("send username reminder: %w", err)
	}

	return nil
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	session, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	if err := session.Check(time.Now()); err != nil {
		if errors.Is(err, ErrTokenReuse) {
			//nolint:errcheck // security revocation continues regardless
			_ = s.repo.RevokeFamily(ctx, session.FamilyID)
			return nil, err
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}

	user, err := s.userProvider.GetByID(ctx, session.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive || user.IsAnonymized {
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		session.FamilyID,
		&session.ID,
	)
}

func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
	userID int64,
) error {
	session, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find session: %w", err)
	}

	if session.AccountID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.Revoke(ctx, session.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID int64) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)

	if jti == "" || ttl <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, s.blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	exists, err := s.redis.Exists(ctx, s.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// ValidateSession implements middleware.SessionValidator.
func (s *Service) ValidateSession(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
) error {
	if claims.ID != "" {
		blacklisted, err := s.IsAccessTokenBlacklisted(ctx, claims.ID)
		if err != nil {
			slog.WarnContext(ctx, "blacklist lookup failed", "error", err)
		} else if blacklisted {
			return fmt.Errorf("validate session: %w", core.ErrTokenRevoked)
		}
	}

	return s.ValidateTokenVersion(ctx, claims.UserID, claims.TokenVersion)
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID int64,
) ([]SessionInfo, error) {
	active, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(active))
	for i := range active {
		sessions = append(sessions, active[i].Info())
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID int64,
	sessionID string,
) error {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if session.AccountID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID int64,
	currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, _, err := core.VerifyPasswordWithRehash(
		currentPassword,
		user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) ValidateTokenVersion(
	ctx context.Context,
	userID int64,
	tokenVersion int,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if tokenVersion < user.TokenVersion || user.IsAnonymized {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID int64,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) issueActivationToken(
	ctx context.Context,
	userID int64,
) (string, error) {
	token, err := core.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generate activation token: %w", err)
	}

	err = s.redis.Set(
		ctx,
		s.activationKey(token),
		strconv.FormatInt(userID, 10),
		s.activationTTL,
	).Err()
	if err != nil {
		return "", fmt.Errorf("store activation token: %w", err)
	}

	return token, nil
}

func (s *Service) activationKey(token string) string {
	return core.JoinKey(s.keyPrefix, "activation", core.HashToken(token))
}

func (s *Service) blacklistKey(jti string) string {
	return core.JoinKey(s.keyPrefix, "blacklist", jti)
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	accessToken, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	newTokenID := uuid.New().String()

	session := &Session{
		ID:        newTokenID,
		AccountID: user.ID,
		TokenHash: refreshData.Hash,
		FamilyID:  refreshData.FamilyID,
		ExpiresAt: refreshData.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	if oldTokenID != nil {
		//nolint:errcheck // best-effort token chain tracking
		_ = s.repo.Rotate(ctx, *oldTokenID, newTokenID)
	}

	ttl := s.jwt.AccessTokenTTL()

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl / time.Second),
			ExpiresAt:    time.Now().Add(ttl),
		},
	}, nil
}
