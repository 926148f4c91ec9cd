// AngelaMos | 2026
// resolver.go

package sameuser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/angelamos/soundshare/internal/account"
	"github.com/angelamos/soundshare/internal/core"
)

const tracerName = "soundshare/sameuser"

// AccountStore is the part of the account repository the resolver needs.
type AccountStore interface {
	GetByID(ctx context.Context, id int64) (*account.Account, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*account.Account, error)
	Update(ctx context.Context, acc *account.Account) error
}

type Resolver struct {
	db       core.DBTX
	tx       core.TxRunner
	links    func(core.DBTX) Repository
	accounts func(core.DBTX) AccountStore
	domain   string
	logger   *slog.Logger
}

// NewResolver builds a resolver over db. domain is the host part of the
// placeholder addresses given to secondary accounts.
func NewResolver(
	db core.DBTX,
	tx core.TxRunner,
	domain string,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		db:    db,
		tx:    tx,
		links: NewRepository,
		accounts: func(db core.DBTX) AccountStore {
			return account.NewRepository(db)
		},
		domain: domain,
		logger: logger,
	}
}

// ResolveDeliveryAddress returns where mail for acc should go. A secondary
// account in an unresolved link has a placeholder address, so its mail goes
// to the main account's current address instead.
func (r *Resolver) ResolveDeliveryAddress(
	ctx context.Context,
	acc *account.Account,
) (string, error) {
	link, err := r.links(r.db).FindBySecondary(ctx, acc.ID)
	if errors.Is(err, core.ErrNotFound) {
		return acc.Email, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve delivery address: %w", err)
	}

	main, err := r.accounts(r.db).GetByID(ctx, link.MainUserID)
	if errors.Is(err, core.ErrNotFound) {
		return acc.Email, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve delivery address: %w", err)
	}

	return main.Email, nil
}

// ResolveDeliveryAddressByID is ResolveDeliveryAddress for callers that
// only hold an account id.
func (r *Resolver) ResolveDeliveryAddressByID(
	ctx context.Context,
	accountID int64,
) (string, error) {
	acc, err := r.accounts(r.db).GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("resolve delivery address: %w", err)
	}

	return r.ResolveDeliveryAddress(ctx, acc)
}

// Reconcile settles every link accountID takes part in and reports whether
// any of them is still unresolved. A link is dropped once either side has
// moved to a new address. When only the main side moved, the secondary gets
// the shared original address back before the link goes away.
func (r *Resolver) Reconcile(
	ctx context.Context,
	accountID int64,
) (cleanupRequired bool, err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "sameuser.Reconcile",
		attribute.Int64("account.id", accountID),
	)
	defer func() { core.EndSpan(span, err) }()

	err = r.tx.InTx(ctx, func(tx core.DBTX) error {
		links := r.links(tx)
		accounts := r.accounts(tx)

		pending, err := links.ListForAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		for i := range pending {
			unresolved, err := r.reconcileLink(ctx, links, accounts, &pending[i])
			if err != nil {
				return err
			}
			if unresolved {
				cleanupRequired = true
			}
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reconcile same-user links: %w", err)
	}

	span.SetAttributes(attribute.Bool("sameuser.cleanup_required", cleanupRequired))

	return cleanupRequired, nil
}

func (r *Resolver) reconcileLink(
	ctx context.Context,
	links Repository,
	accounts AccountStore,
	link *Link,
) (bool, error) {
	main, err := accounts.GetByIDForUpdate(ctx, link.MainUserID)
	if errors.Is(err, core.ErrNotFound) {
		return false, links.Delete(ctx, link.ID)
	}
	if err != nil {
		return false, err
	}

	secondary, err := accounts.GetByIDForUpdate(ctx, link.SecondaryUserID)
	if errors.Is(err, core.ErrNotFound) {
		return false, links.Delete(ctx, link.ID)
	}
	if err != nil {
		return false, err
	}

	mainChanged := link.MainChanged(main.Email)
	secondaryChanged := link.SecondaryChanged(secondary.Email, r.domain)

	if !mainChanged && !secondaryChanged {
		return true, nil
	}

	if mainChanged && !secondaryChanged {
		secondary.Email = link.SecondaryOrigEmail
		if err := accounts.Update(ctx, secondary); err != nil {
			return false, fmt.Errorf("restore secondary email: %w", err)
		}
	}

	if err := links.Delete(ctx, link.ID); err != nil {
		return false, err
	}

	r.logger.InfoContext(ctx, "same-user link resolved",
		"link_id", link.ID,
		"main_user_id", link.MainUserID,
		"secondary_user_id", link.SecondaryUserID,
		"main_changed", mainChanged,
		"secondary_changed", secondaryChanged,
	)

	return false, nil
}

// ListLinks is the admin view of unresolved links.
func (r *Resolver) ListLinks(
	ctx context.Context,
	limit, offset int,
) ([]Link, int, error) {
	return r.links(r.db).List(ctx, limit, offset)
}

// LinksFor returns the unresolved links accountID takes part in.
func (r *Resolver) LinksFor(ctx context.Context, accountID int64) ([]Link, error) {
	return r.links(r.db).ListForAccount(ctx, accountID)
}
