// AngelaMos | 2026
// notifier_test.go

package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/soundshare/internal/account"
	"github.com/angelamos/soundshare/internal/config"
	"github.com/angelamos/soundshare/internal/core"
)

type recordingSender struct {
	sent []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return nil
}

type accountMap map[int64]*account.Account

func (m accountMap) GetByID(_ context.Context, id int64) (*account.Account, error) {
	a, ok := m[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return a, nil
}

// mainResolver routes mail for secondary accounts to the main's address.
type mainResolver map[int64]string

func (r mainResolver) ResolveDeliveryAddress(_ context.Context, acc *account.Account) (string, error) {
	if addr, ok := r[acc.ID]; ok {
		return addr, nil
	}
	return acc.Email, nil
}

func newTestNotifier() (*Notifier, *recordingSender) {
	sender := &recordingSender{}
	accounts := accountMap{
		1: {ID: 1, Username: "rain", Email: "rain@example.com", IsActive: true},
		2: {ID: 2, Username: "drizzle", Email: "dupemail+rain%example.com@freesound.org", IsActive: true},
		3: {ID: 3, Username: "pending", Email: "pending@example.com", IsActive: false},
		4: {ID: 4, Username: "deleted_user_4", Email: "deleted_user_4@freesound.invalid", IsAnonymized: true},
	}
	resolver := mainResolver{2: "rain@example.com"}

	n := NewNotifier(sender, resolver, accounts, NotifierConfig{
		AppName:       "soundshare",
		SubjectPrefix: "[soundshare]",
		ActivationTTL: 72 * time.Hour,
	})
	return n, sender
}

func TestSendActivation(t *testing.T) {
	n, sender := newTestNotifier()

	require.NoError(t, n.SendActivation(context.Background(), 3, "tok-123"))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "pending@example.com", msg.To)
	assert.Equal(t, "[soundshare] Activate your account", msg.Subject)
	assert.Contains(t, msg.Body, "tok-123")
	assert.Contains(t, msg.Body, "72h0m0s")
	assert.Contains(t, msg.Body, "Hi pending,")

	require.NoError(t, n.SendActivation(context.Background(), 4, "tok-456"))
	assert.Len(t, sender.sent, 1, "anonymised accounts get no mail")
}

func TestSendUsernameReminderUsesResolvedAddress(t *testing.T) {
	n, sender := newTestNotifier()

	require.NoError(t, n.SendUsernameReminder(context.Background(), 2))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "rain@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "drizzle")
}

func TestNoMailForInactiveIdentity(t *testing.T) {
	n, sender := newTestNotifier()
	ctx := context.Background()

	require.NoError(t, n.SendUsernameReminder(ctx, 3))
	require.NoError(t, n.SendDeletionRequested(ctx, 4, true))
	assert.Empty(t, sender.sent)

	err := n.SendUsernameReminder(ctx, 99)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestSendDeletionRequested(t *testing.T) {
	n, sender := newTestNotifier()
	ctx := context.Background()

	require.NoError(t, n.SendDeletionRequested(ctx, 1, true))
	require.NoError(t, n.SendDeletionRequested(ctx, 1, false))

	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].Body, "will be removed together with your account")
	assert.Contains(t, sender.sent[1].Body, "credited to an anonymous user")
}

func TestSMTPSenderRetriesTransientFailures(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{Host: "localhost", Port: 2525, From: "noreply@example.com"})

	calls := 0
	var raw []byte
	s.send = func(_ string, _ smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		if calls < 3 {
			return errors.New("421 service not available")
		}
		assert.Equal(t, "noreply@example.com", from)
		assert.Equal(t, []string{"rain@example.com"}, to)
		raw = msg
		return nil
	}

	err := s.Send(context.Background(), Message{To: "rain@example.com", Subject: "Hi", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strings.HasPrefix(string(raw), "From: noreply@example.com\r\n"))
	assert.Contains(t, string(raw), "\r\n\r\nline1\r\nline2")
}

func TestSMTPSenderStopsOnPermanentFailure(t *testing.T) {
	s := NewSMTPSender(config.MailConfig{Host: "localhost", Port: 2525})

	calls := 0
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		calls++
		return errors.New("550 mailbox unavailable")
	}

	err := s.Send(context.Background(), Message{To: "x@example.com"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewSenderDisabledLogs(t *testing.T) {
	s := NewSender(config.MailConfig{Enabled: false}, nil)
	_, ok := s.(*LogSender)
	assert.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@b.c"}))
}
