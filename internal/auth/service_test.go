// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/middleware"
)

type fakeUsers struct {
	byID   map[int64]*UserInfo
	nextID int64
}

func (f *fakeUsers) GetByLogin(_ context.Context, login string) (*UserInfo, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*UserInfo, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cpy := *u
	return &cpy, nil
}

func (f *fakeUsers) Create(_ context.Context, username, email, hash string) (*UserInfo, error) {
	f.nextID++
	u := &UserInfo{ID: f.nextID, Username: username, Email: email, PasswordHash: hash, Role: "user"}
	f.byID[u.ID] = u
	cpy := *u
	return &cpy, nil
}

func (f *fakeUsers) Activate(_ context.Context, id int64) error {
	u, ok := f.byID[id]
	if !ok {
		return core.ErrNotFound
	}
	u.IsActive = true
	return nil
}

func (f *fakeUsers) IncrementTokenVersion(_ context.Context, id int64) error {
	f.byID[id].TokenVersion++
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.byID[id].PasswordHash = hash
	return nil
}

// fakeTokens mirrors the SQL store: it reads the anonymization flag from
// the owning account and refuses sessions for closed accounts.
type fakeTokens struct {
	tokens map[string]*Session
	users  *fakeUsers
}

var _ Repository = (*fakeTokens)(nil)

func (f *fakeTokens) Create(_ context.Context, s *Session) error {
	u, ok := f.users.byID[s.AccountID]
	if !ok || !u.IsActive || u.IsAnonymized {
		return core.ErrTokenRevoked
	}
	cpy := *s
	f.tokens[s.ID] = &cpy
	return nil
}

func (f *fakeTokens) read(s *Session) *Session {
	cpy := *s
	if u, ok := f.users.byID[s.AccountID]; ok {
		cpy.AccountAnonymized = u.IsAnonymized
	}
	return &cpy
}

func (f *fakeTokens) FindByHash(_ context.Context, hash string) (*Session, error) {
	for _, s := range f.tokens {
		if s.TokenHash == hash {
			return f.read(s), nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeTokens) FindByID(_ context.Context, id string) (*Session, error) {
	s, ok := f.tokens[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return f.read(s), nil
}

func (f *fakeTokens) Rotate(_ context.Context, id, replacedByID string) error {
	s, ok := f.tokens[id]
	if !ok || s.IsUsed {
		return core.ErrNotFound
	}
	now := time.Now()
	s.IsUsed = true
	s.UsedAt = &now
	s.ReplacedByID = &replacedByID
	return nil
}

func (f *fakeTokens) revokeIf(match func(*Session) bool) int {
	now := time.Now()
	n := 0
	for _, s := range f.tokens {
		if s.RevokedAt == nil && match(s) {
			s.RevokedAt = &now
			n++
		}
	}
	return n
}

func (f *fakeTokens) Revoke(_ context.Context, id string) error {
	if f.revokeIf(func(s *Session) bool { return s.ID == id }) == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (f *fakeTokens) RevokeFamily(_ context.Context, familyID string) error {
	f.revokeIf(func(s *Session) bool { return s.FamilyID == familyID })
	return nil
}

func (f *fakeTokens) RevokeAllForUser(_ context.Context, userID int64) error {
	f.revokeIf(func(s *Session) bool { return s.AccountID == userID })
	return nil
}

func (f *fakeTokens) ListActive(_ context.Context, userID int64) ([]Session, error) {
	var out []Session
	for _, s := range f.tokens {
		if s.AccountID != userID {
			continue
		}
		if read := f.read(s); read.Check(time.Now()) == nil {
			out = append(out, *read)
		}
	}
	return out, nil
}

func (f *fakeTokens) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeMailer struct {
	activations map[int64]string
	reminders   []int64
}

func (m *fakeMailer) SendActivation(_ context.Context, userID int64, token string) error {
	m.activations[userID] = token
	return nil
}

func (m *fakeMailer) SendUsernameReminder(_ context.Context, userID int64) error {
	m.reminders = append(m.reminders, userID)
	return nil
}

type fakeReconciler struct {
	calls   []int64
	cleanup bool
	err     error
}

func (r *fakeReconciler) Reconcile(_ context.Context, userID int64) (bool, error) {
	r.calls = append(r.calls, userID)
	return r.cleanup, r.err
}

type authFixture struct {
	svc        *Service
	jwt        *JWTManager
	mr         *miniredis.Miniredis
	users      *fakeUsers
	tokens     *fakeTokens
	mailer     *fakeMailer
	reconciler *fakeReconciler
}

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "soundshare-test",
		Audience:           "soundshare-test",
	})
	require.NoError(t, err)
	return m
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := core.HashPassword("correct horse battery")
	require.NoError(t, err)

	users := &fakeUsers{byID: map[int64]*UserInfo{
		1: {ID: 1, Username: "rain", Email: "rain@example.com", PasswordHash: hash, Role: "user", IsActive: true},
		2: {ID: 2, Username: "pending", Email: "pending@example.com", PasswordHash: hash, Role: "user"},
		3: {ID: 3, Username: "deleted_user_3", Email: "deleted_user_3@anon.invalid", PasswordHash: hash, IsAnonymized: true},
	}, nextID: 3}

	f := &authFixture{
		jwt:        newTestJWTManager(t),
		mr:         mr,
		users:      users,
		tokens:     &fakeTokens{tokens: map[string]*Session{}, users: users},
		mailer:     &fakeMailer{activations: map[int64]string{}},
		reconciler: &fakeReconciler{},
	}
	f.svc = NewService(f.tokens, f.jwt, users, rdb, ServiceConfig{
		Mailer:     f.mailer,
		Reconciler: f.reconciler,
		KeyPrefix:  "ss",
	})
	return f
}

func TestRegisterAndActivate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, RegisterRequest{
		Username: "breeze",
		Email:    "breeze@example.com",
		Password: "long enough password",
	})
	require.NoError(t, err)
	assert.True(t, resp.ActivationRequired)
	assert.False(t, resp.User.IsActive)

	token := f.mailer.activations[resp.User.ID]
	require.NotEmpty(t, token)

	key := "ss:activation:" + core.HashToken(token)
	assert.True(t, f.mr.Exists(key), "only the token hash is stored")
	assert.Equal(t, 72*time.Hour, f.mr.TTL(key))

	_, err = f.svc.Login(ctx, LoginRequest{Login: "breeze", Password: "long enough password"}, "ua", "127.0.0.1")
	require.ErrorIs(t, err, ErrAccountInactive)

	require.NoError(t, f.svc.Activate(ctx, token))
	assert.True(t, f.users.byID[resp.User.ID].IsActive)

	err = f.svc.Activate(ctx, token)
	require.ErrorIs(t, err, ErrActivationInvalid, "tokens are single use")

	err = f.svc.Activate(ctx, "unknown")
	require.ErrorIs(t, err, ErrActivationInvalid)
}

func TestActivateExpired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResendActivation(ctx, "pending@example.com"))
	token := f.mailer.activations[2]
	require.NotEmpty(t, token)

	f.mr.FastForward(73 * time.Hour)

	err := f.svc.Activate(ctx, token)
	require.ErrorIs(t, err, ErrActivationInvalid)
	assert.False(t, f.users.byID[2].IsActive)
}

func TestResendActivation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ResendActivation(ctx, "nobody@example.com"))
	require.NoError(t, f.svc.ResendActivation(ctx, "rain@example.com"))
	require.NoError(t, f.svc.ResendActivation(ctx, "deleted_user_3@anon.invalid"))
	assert.Empty(t, f.mailer.activations)

	require.NoError(t, f.svc.ResendActivation(ctx, "pending@example.com"))
	assert.Contains(t, f.mailer.activations, int64(2))
}

func TestUsernameReminder(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.UsernameReminder(ctx, "nobody@example.com"))
	require.NoError(t, f.svc.UsernameReminder(ctx, "deleted_user_3@anon.invalid"))
	require.NoError(t, f.svc.UsernameReminder(ctx, "RAIN@example.com"))

	assert.Equal(t, []int64{1}, f.mailer.reminders)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("by username or email", func(t *testing.T) {
		f := newAuthFixture(t)

		for _, login := range []string{"rain", "rain@example.com"} {
			resp, err := f.svc.Login(ctx, LoginRequest{Login: login, Password: "correct horse battery"}, "ua", "127.0.0.1")
			require.NoError(t, err, login)
			assert.Equal(t, int64(1), resp.User.ID)
			assert.NotEmpty(t, resp.Tokens.AccessToken)
			assert.NotEmpty(t, resp.Tokens.RefreshToken)
			assert.False(t, resp.EmailCleanupRequired)
		}
		assert.Equal(t, []int64{1, 1}, f.reconciler.calls)
	})

	t.Run("reports email cleanup", func(t *testing.T) {
		f := newAuthFixture(t)
		f.reconciler.cleanup = true

		resp, err := f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "correct horse battery"}, "", "")
		require.NoError(t, err)
		assert.True(t, resp.EmailCleanupRequired)
	})

	t.Run("reconcile failure does not block login", func(t *testing.T) {
		f := newAuthFixture(t)
		f.reconciler.err = errors.New("conflict")

		_, err := f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "correct horse battery"}, "", "")
		require.NoError(t, err)
	})

	t.Run("rejections", func(t *testing.T) {
		f := newAuthFixture(t)

		_, err := f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "wrong"}, "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.svc.Login(ctx, LoginRequest{Login: "ghost", Password: "correct horse battery"}, "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.svc.Login(ctx, LoginRequest{Login: "deleted_user_3", Password: "correct horse battery"}, "", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.svc.Login(ctx, LoginRequest{Login: "pending", Password: "correct horse battery"}, "", "")
		require.ErrorIs(t, err, ErrAccountInactive)

		assert.Empty(t, f.tokens.tokens)
	})
}

func TestRefreshRotationAndReuse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "correct horse battery"}, "", "")
	require.NoError(t, err)

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, ErrTokenReuse)

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, core.ErrTokenRevoked, "reuse revokes the whole family")

	_, err = f.svc.Refresh(ctx, "garbage", "", "")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestRefreshRejectsAnonymizedAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "correct horse battery"}, "", "")
	require.NoError(t, err)

	f.users.byID[1].IsAnonymized = true

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, "", "")
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	sessions, err := f.svc.GetActiveSessions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, sessions, "an anonymized account lists no sessions")
}

func TestValidateSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	resp, err := f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "correct horse battery"}, "", "")
	require.NoError(t, err)

	claims, err := f.jwt.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.ValidateSession(ctx, claims))

	require.NoError(t, f.svc.RevokeAccessToken(ctx, claims.ID, time.Now().Add(time.Minute)))
	err = f.svc.ValidateSession(ctx, claims)
	require.ErrorIs(t, err, core.ErrTokenRevoked)

	f.mr.FastForward(2 * time.Minute)
	require.NoError(t, f.svc.ValidateSession(ctx, claims), "blacklist entries expire with the token")

	require.NoError(t, f.svc.LogoutAll(ctx, 1))
	err = f.svc.ValidateSession(ctx, claims)
	require.ErrorIs(t, err, core.ErrTokenRevoked, "token version bumped")

	err = f.svc.ValidateSession(ctx, &middleware.AccessTokenClaims{UserID: 3, TokenVersion: 99})
	require.ErrorIs(t, err, core.ErrTokenRevoked, "anonymised accounts have no sessions")

	err = f.svc.ValidateSession(ctx, &middleware.AccessTokenClaims{UserID: 404})
	require.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, 1, "wrong", "another long password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, 1, "correct horse battery", "another long password"))
	assert.Equal(t, 1, f.users.byID[1].TokenVersion)

	_, err = f.svc.Login(ctx, LoginRequest{Login: "rain", Password: "another long password"}, "", "")
	require.NoError(t, err)
}
