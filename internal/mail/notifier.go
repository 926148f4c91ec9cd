// AngelaMos | 2026
// notifier.go

package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/angelamos/soundshare/internal/account"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*account.Account, error)
}

// AddressResolver picks the address mail for an account goes to.
type AddressResolver interface {
	ResolveDeliveryAddress(ctx context.Context, acc *account.Account) (string, error)
}

// Notifier renders and sends account mail. Every message is addressed
// through the resolver, never straight to the stored email.
type Notifier struct {
	sender        Sender
	resolver      AddressResolver
	accounts      AccountReader
	appName       string
	subjectPrefix string
	activationTTL time.Duration
}

type NotifierConfig struct {
	AppName       string
	SubjectPrefix string
	ActivationTTL time.Duration
}

func NewNotifier(
	sender Sender,
	resolver AddressResolver,
	accounts AccountReader,
	cfg NotifierConfig,
) *Notifier {
	return &Notifier{
		sender:        sender,
		resolver:      resolver,
		accounts:      accounts,
		appName:       cfg.AppName,
		subjectPrefix: cfg.SubjectPrefix,
		activationTTL: cfg.ActivationTTL,
	}
}

// SendActivation goes out before the account is active, so it is the one
// message that skips the delivery-identity check.
func (n *Notifier) SendActivation(ctx context.Context, userID int64, token string) error {
	acc, err := n.accounts.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("send activation: %w", err)
	}

	if acc.IsAnonymized {
		return nil
	}

	return n.send(ctx, acc, "Activate your account", "activation.tmpl", map[string]any{
		"Username": acc.Username,
		"Token":    token,
		"TTL":      n.activationTTL.String(),
	})
}

func (n *Notifier) SendUsernameReminder(ctx context.Context, userID int64) error {
	acc, err := n.accounts.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("send username reminder: %w", err)
	}

	if !acc.IsActiveDeliveryIdentity() {
		return nil
	}

	return n.send(ctx, acc, "Username reminder", "username_reminder.tmpl", map[string]any{
		"Username": acc.Username,
	})
}

func (n *Notifier) SendDeletionRequested(
	ctx context.Context,
	userID int64,
	includeContent bool,
) error {
	acc, err := n.accounts.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("send deletion confirmation: %w", err)
	}

	if !acc.IsActiveDeliveryIdentity() {
		return nil
	}

	return n.send(ctx, acc, "Account deletion requested", "deletion_requested.tmpl", map[string]any{
		"Username":       acc.Username,
		"IncludeContent": includeContent,
	})
}

func (n *Notifier) send(
	ctx context.Context,
	acc *account.Account,
	subject, tmpl string,
	data map[string]any,
) error {
	to, err := n.resolver.ResolveDeliveryAddress(ctx, acc)
	if err != nil {
		return err
	}

	data["AppName"] = n.appName

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	if n.subjectPrefix != "" {
		subject = n.subjectPrefix + " " + subject
	}

	return n.sender.Send(ctx, Message{
		To:      to,
		Subject: subject,
		Body:    body.String(),
	})
}
