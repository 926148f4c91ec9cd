// AngelaMos | 2026
// service_test.go

package deletion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/account"
	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/ledger"
)

type fakeAccountReader struct {
	accounts map[int64]*account.Account
}

func (f *fakeAccountReader) GetByID(_ context.Context, id int64) (*account.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cpy := *a
	return &cpy, nil
}

type fakeLedger struct {
	requests map[int64]*ledger.Request
	nextID   int64
}

func (f *fakeLedger) Open(
	_ context.Context,
	from, target ledger.Identity,
	status ledger.Status,
	reason string,
) (*ledger.Request, error) {
	if f.requests == nil {
		f.requests = map[int64]*ledger.Request{}
	}
	f.nextID++
	req := &ledger.Request{
		ID:           f.nextID,
		UserFromID:   &from.ID,
		UserToID:     &target.ID,
		UsernameFrom: from.Username,
		UsernameTo:   target.Username,
		Status:       status,
		Reason:       reason,
	}
	if err := req.RecordStatus("", req.CreatedAt); err != nil {
		return nil, err
	}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeLedger) Advance(_ context.Context, id int64, status ledger.Status) (*ledger.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	persisted := req.Status
	req.Status = status
	if err := req.RecordStatus(persisted, req.CreatedAt); err != nil {
		return nil, err
	}
	return req, nil
}

type fakeJobDispatcher struct {
	async      bool
	dispatched []DeleteUserJob
	inline     []DeleteUserJob
	err        error
}

func (f *fakeJobDispatcher) Dispatch(_ context.Context, job DeleteUserJob) (*DeletedUser, error) {
	f.dispatched = append(f.dispatched, job)
	if f.err != nil {
		return nil, f.err
	}
	if f.async {
		return nil, nil
	}
	return &DeletedUser{ID: 50, UserID: job.AccountID, Reason: job.Reason}, nil
}

func (f *fakeJobDispatcher) RunInline(_ context.Context, job DeleteUserJob) (*DeletedUser, error) {
	f.inline = append(f.inline, job)
	if f.err != nil {
		return nil, f.err
	}
	return &DeletedUser{ID: 60, UserID: job.AccountID, Reason: job.Reason}, nil
}

func (f *fakeJobDispatcher) Async() bool { return f.async }

type fakeNotifier struct {
	sent []bool
	err  error
}

func (f *fakeNotifier) SendDeletionRequested(_ context.Context, _ int64, includeContent bool) error {
	f.sent = append(f.sent, includeContent)
	return f.err
}

type serviceFixture struct {
	svc        *Service
	accounts   *fakeAccountReader
	ledger     *fakeLedger
	dispatcher *fakeJobDispatcher
	notifier   *fakeNotifier
}

func newServiceFixture(t *testing.T, async bool) *serviceFixture {
	t.Helper()

	hash, err := core.HashPassword("correct horse battery")
	require.NoError(t, err)

	f := &serviceFixture{
		accounts: &fakeAccountReader{accounts: map[int64]*account.Account{
			1:  {ID: 1, Username: "mod", Role: account.RoleAdmin, IsActive: true},
			10: {ID: 10, Username: "rain", PasswordHash: hash, IsActive: true},
			20: {ID: 20, Username: "deleted_user_20", IsAnonymized: true},
		}},
		ledger:     &fakeLedger{},
		dispatcher: &fakeJobDispatcher{async: async},
		notifier:   &fakeNotifier{},
	}
	f.svc = NewService(
		f.accounts,
		f.ledger,
		f.dispatcher,
		f.notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func historyOf(req *ledger.Request) []ledger.Status {
	out := make([]ledger.Status, 0, len(req.StatusHistory))
	for _, c := range req.StatusHistory {
		out = append(out, c.Status)
	}
	return out
}

func TestRequestSelfDeletionQueued(t *testing.T) {
	f := newServiceFixture(t, true)

	out, err := f.svc.RequestSelfDeletion(context.Background(), 10, "correct horse battery", true)
	require.NoError(t, err)

	assert.True(t, out.Queued)
	assert.Nil(t, out.DeletedUser)
	assert.Equal(t, ledger.StatusTriggered, out.Request.Status)
	assert.Equal(t, []ledger.Status{ledger.StatusReceived, ledger.StatusTriggered}, historyOf(out.Request))
	assert.Equal(t, "rain", out.Request.UsernameFrom)
	assert.Equal(t, "rain", out.Request.UsernameTo)

	require.Len(t, f.dispatcher.dispatched, 1)
	job := f.dispatcher.dispatched[0]
	assert.Equal(t, int64(10), job.AccountID)
	assert.Equal(t, ActionDeleteIncludingContent, job.Action)
	assert.Equal(t, ReasonSelf, job.Reason)
	assert.Equal(t, out.Request.ID, job.RequestID)

	assert.Equal(t, []bool{true}, f.notifier.sent)
}

func TestRequestSelfDeletionInline(t *testing.T) {
	f := newServiceFixture(t, false)

	out, err := f.svc.RequestSelfDeletion(context.Background(), 10, "correct horse battery", false)
	require.NoError(t, err)

	assert.False(t, out.Queued)
	require.NotNil(t, out.DeletedUser)
	assert.Equal(t, ActionDeleteKeepContent, f.dispatcher.dispatched[0].Action)
}

func TestRequestSelfDeletionWrongPassword(t *testing.T) {
	f := newServiceFixture(t, true)

	_, err := f.svc.RequestSelfDeletion(context.Background(), 10, "wrong", true)
	require.ErrorIs(t, err, ErrInvalidPassword)

	appErr, ok := core.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 422, appErr.StatusCode)

	assert.Empty(t, f.ledger.requests)
	assert.Empty(t, f.dispatcher.dispatched)
	assert.Empty(t, f.notifier.sent)
}

func TestRequestSelfDeletionAlreadyDeleted(t *testing.T) {
	f := newServiceFixture(t, true)

	_, err := f.svc.RequestSelfDeletion(context.Background(), 20, "anything", true)
	require.ErrorIs(t, err, ErrAlreadyDeleted)
}

func TestRequestSelfDeletionDispatchFailureStillAccepted(t *testing.T) {
	f := newServiceFixture(t, true)
	f.dispatcher.err = errors.New("redis unavailable")
	f.notifier.err = errors.New("smtp down")

	out, err := f.svc.RequestSelfDeletion(context.Background(), 10, "correct horse battery", false)
	require.NoError(t, err)
	assert.True(t, out.Queued)
	assert.True(t, out.Failed)
	assert.Equal(t, ledger.StatusTriggered, out.Request.Status)
}

func TestInlineDispatchFailureIsNotReportedAsQueued(t *testing.T) {
	f := newServiceFixture(t, false)
	f.dispatcher.err = errors.New("engine: tx aborted")

	out, err := f.svc.RequestSelfDeletion(context.Background(), 10, "correct horse battery", true)
	require.NoError(t, err)

	assert.False(t, out.Queued)
	assert.True(t, out.Failed)
	assert.Nil(t, out.DeletedUser)
	assert.Equal(t, ledger.StatusTriggered, out.Request.Status)

	resp := toDeletionResponse(out)
	assert.False(t, resp.Queued)
	assert.True(t, resp.Failed)
	assert.Equal(t, string(ledger.StatusTriggered), resp.Status)
}

func TestAdminDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("spammer runs inline", func(t *testing.T) {
		f := newServiceFixture(t, true)

		out, err := f.svc.AdminDelete(ctx, 1, 10, ActionFullDeleteSpammer, "")
		require.NoError(t, err)

		assert.False(t, out.Queued)
		require.NotNil(t, out.DeletedUser)
		require.Len(t, f.dispatcher.inline, 1)
		assert.Equal(t, ReasonSpammer, f.dispatcher.inline[0].Reason)
		assert.Empty(t, f.dispatcher.dispatched)
		assert.Equal(t, "mod", out.Request.UsernameFrom)
		assert.Equal(t, "rain", out.Request.UsernameTo)
		assert.Equal(t, "admin: full_delete_spammer", out.Request.Reason)
	})

	t.Run("other actions are dispatched", func(t *testing.T) {
		f := newServiceFixture(t, true)

		out, err := f.svc.AdminDelete(ctx, 1, 10, ActionDeleteKeepContent, "abuse report #12")
		require.NoError(t, err)

		assert.True(t, out.Queued)
		require.Len(t, f.dispatcher.dispatched, 1)
		assert.Equal(t, ReasonAdmin, f.dispatcher.dispatched[0].Reason)
		assert.Equal(t, "abuse report #12", out.Request.Reason)
	})

	t.Run("self target is rejected", func(t *testing.T) {
		f := newServiceFixture(t, true)
		_, err := f.svc.AdminDelete(ctx, 1, 1, ActionDeleteKeepContent, "")
		require.ErrorIs(t, err, ErrSelfTarget)
	})

	t.Run("unknown action is rejected", func(t *testing.T) {
		f := newServiceFixture(t, true)
		_, err := f.svc.AdminDelete(ctx, 1, 10, Action("nuke"), "")
		require.ErrorIs(t, err, ErrInvalidAction)
	})

	t.Run("missing target", func(t *testing.T) {
		f := newServiceFixture(t, true)
		_, err := f.svc.AdminDelete(ctx, 1, 404, ActionDeleteKeepContent, "")
		require.ErrorIs(t, err, core.ErrNotFound)
		assert.Empty(t, f.ledger.requests)
	})
}
