// AngelaMos | 2026
// service_test.go

package account

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
)

type fakeRepo struct {
	accounts map[int64]*Account
	history  map[int64][]string
	nextID   int64
	updates  int
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[int64]*Account{}, history: map[int64][]string{}}
}

func (f *fakeRepo) add(a Account) *Account {
	if a.ID == 0 {
		f.nextID++
		a.ID = f.nextID
	} else if a.ID > f.nextID {
		f.nextID = a.ID
	}
	f.accounts[a.ID] = &a
	return &a
}

func (f *fakeRepo) Create(_ context.Context, a *Account) error {
	for _, other := range f.accounts {
		if strings.EqualFold(other.Username, a.Username) {
			return core.ErrDuplicateKey
		}
	}
	stored := f.add(*a)
	a.ID = stored.ID
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cpy := *a
	return &cpy, nil
}

func (f *fakeRepo) GetByIDForUpdate(ctx context.Context, id int64) (*Account, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	for _, a := range f.accounts {
		if strings.EqualFold(a.Email, email) {
			cpy := *a
			return &cpy, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) GetByUsername(_ context.Context, username string) (*Account, error) {
	for _, a := range f.accounts {
		if strings.EqualFold(a.Username, username) {
			cpy := *a
			return &cpy, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, a *Account) error {
	prev, ok := f.accounts[a.ID]
	if !ok {
		return core.ErrNotFound
	}
	if ShouldRecordOldUsername(prev.Username, a.Username) {
		f.history[a.ID] = append(f.history[a.ID], prev.Username)
	}
	f.updates++
	cpy := *a
	f.accounts[a.ID] = &cpy
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	f.accounts[id].PasswordHash = hash
	return nil
}

func (f *fakeRepo) IncrementTokenVersion(_ context.Context, id int64) error {
	f.accounts[id].TokenVersion++
	return nil
}

func (f *fakeRepo) Activate(_ context.Context, id int64) error {
	a, ok := f.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.IsActive = true
	return nil
}

func (f *fakeRepo) Anonymize(_ context.Context, a *Account) error {
	cpy := *a
	f.accounts[a.ID] = &cpy
	return nil
}

func (f *fakeRepo) List(_ context.Context, _ ListAccountsParams) ([]Account, int, error) {
	out := make([]Account, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeRepo) UsernameCollides(_ context.Context, username string, excludeID int64) (bool, error) {
	for id, a := range f.accounts {
		if id != excludeID && strings.EqualFold(a.Username, username) {
			return true, nil
		}
	}
	for id, names := range f.history {
		if id == excludeID {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(n, username) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRepo) EmailInUse(_ context.Context, email string, excludeID int64) (bool, error) {
	for id, a := range f.accounts {
		if id != excludeID && strings.EqualFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) CountOldUsernames(_ context.Context, id int64) (int, error) {
	return len(f.history[id]), nil
}

func (f *fakeRepo) ListOldUsernames(_ context.Context, id int64) ([]OldUsername, error) {
	out := make([]OldUsername, 0, len(f.history[id]))
	for _, n := range f.history[id] {
		out = append(out, OldUsername{UserID: id, Username: n})
	}
	return out, nil
}

func (f *fakeRepo) DeleteOldUsernames(_ context.Context, id int64) (int64, error) {
	n := int64(len(f.history[id]))
	delete(f.history, id)
	return n, nil
}

func (f *fakeRepo) DecrementCounters(_ context.Context, id int64, by Counters) error {
	a := f.accounts[id]
	a.NumSounds = max(0, a.NumSounds-by.NumSounds)
	return nil
}

func (f *fakeRepo) RecomputeCounters(_ context.Context, id int64) (*Counters, error) {
	c := f.accounts[id].Counters()
	return &c, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()

	repo := newFakeRepo()
	repo.add(Account{ID: 1, Username: "Rain", Email: "rain@example.com", IsActive: true})
	repo.add(Account{ID: 2, Username: "thunder", Email: "thunder@example.com", IsActive: true})

	svc := NewService(repo, config.AccountsConfig{UsernameChangeMaxTimes: 3})
	return svc, repo
}

func TestChangeUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("records the previous name", func(t *testing.T) {
		svc, repo := newTestService(t)

		acc, err := svc.ChangeUsername(ctx, 1, "drizzle", EditSelf)
		require.NoError(t, err)
		assert.Equal(t, "drizzle", acc.Username)
		assert.Equal(t, []string{"Rain"}, repo.history[1])
	})

	t.Run("case only change is free", func(t *testing.T) {
		svc, repo := newTestService(t)

		acc, err := svc.ChangeUsername(ctx, 1, "rain", EditSelf)
		require.NoError(t, err)
		assert.Equal(t, "rain", acc.Username)
		assert.Empty(t, repo.history[1])
	})

	t.Run("same name is a no-op", func(t *testing.T) {
		svc, repo := newTestService(t)

		_, err := svc.ChangeUsername(ctx, 1, "Rain", EditSelf)
		require.NoError(t, err)
		assert.Zero(t, repo.updates)
	})

	t.Run("taken name ignoring case", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.ChangeUsername(ctx, 1, "THUNDER", EditSelf)
		require.ErrorIs(t, err, ErrUsernameTaken)

		appErr, ok := core.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, MsgUsernameTaken, appErr.Fields["username"])
	})

	t.Run("another account's past name is taken", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.ChangeUsername(ctx, 2, "lightning", EditSelf)
		require.NoError(t, err)

		_, err = svc.ChangeUsername(ctx, 1, "Thunder", EditSelf)
		require.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("own past name can be reused", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.ChangeUsername(ctx, 1, "drizzle", EditSelf)
		require.NoError(t, err)

		acc, err := svc.ChangeUsername(ctx, 1, "rain", EditSelf)
		require.NoError(t, err)
		assert.Equal(t, "rain", acc.Username)
	})

	t.Run("self-service limit", func(t *testing.T) {
		svc, repo := newTestService(t)

		for _, name := range []string{"one1", "two2", "three3"} {
			_, err := svc.ChangeUsername(ctx, 1, name, EditSelf)
			require.NoError(t, err)
		}

		left, err := svc.UsernameChangesLeft(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, left)

		_, err = svc.ChangeUsername(ctx, 1, "four4", EditSelf)
		require.ErrorIs(t, err, ErrUsernameChangeLimit)

		_, err = svc.ChangeUsername(ctx, 1, "THREE3", EditSelf)
		require.NoError(t, err, "case-only edits are not counted")

		_, err = svc.ChangeUsername(ctx, 1, "four4", EditAdmin)
		require.NoError(t, err, "admins are not limited")
		assert.Len(t, repo.history[1], 4)
	})

	t.Run("invalid names", func(t *testing.T) {
		svc, _ := newTestService(t)

		for _, name := range []string{"ab", "has space", "me@example.com", "deleted_user_99", "Deleted_User_1"} {
			_, err := svc.ChangeUsername(ctx, 1, name, EditAdmin)
			assert.ErrorIs(t, err, ErrInvalidUsername, name)
		}
	})
}

func TestChangeEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ChangeEmail(ctx, 1, "THUNDER@example.com")
	require.ErrorIs(t, err, ErrEmailTaken)

	acc, err := svc.ChangeEmail(ctx, 1, " new@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", acc.Email)

	acc, err = svc.ChangeEmail(ctx, 1, "NEW@example.com")
	require.NoError(t, err, "own address in another case is allowed")
	assert.Equal(t, "NEW@example.com", acc.Email)
}

func TestCreate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	info, err := svc.Create(ctx, "breeze", "breeze@example.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, info.ID)
	assert.False(t, info.IsActive)
	assert.Equal(t, RoleUser, repo.accounts[info.ID].Role)

	_, err = svc.Create(ctx, "RAIN", "x@example.com", "hash")
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Create(ctx, "gust", "Rain@Example.com", "hash")
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetByLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	byName, err := svc.GetByLogin(ctx, "rain")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byName.ID)

	byEmail, err := svc.GetByLogin(ctx, " thunder@example.com ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byEmail.ID)

	_, err = svc.GetByLogin(ctx, "nobody")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestUpdateRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.UpdateRole(ctx, 2, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, acc.IsAdmin())

	_, err = svc.UpdateRole(ctx, 2, "root")
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	about := "field recordings"
	lat, lon := 41.38, 2.17
	acc, err := svc.UpdateProfile(ctx, 1, UpdateProfileRequest{About: &about, GeoLat: &lat, GeoLon: &lon})
	require.NoError(t, err)
	assert.Equal(t, about, acc.About)
	require.NotNil(t, acc.GeoLat)

	acc, err = svc.UpdateProfile(ctx, 1, UpdateProfileRequest{ClearGeo: true})
	require.NoError(t, err)
	assert.Nil(t, acc.GeoLat)
	assert.Equal(t, about, acc.About)

	_, err = svc.UpdateProfile(ctx, 0, UpdateProfileRequest{})
	require.ErrorIs(t, err, core.ErrUnauthorized)
}
