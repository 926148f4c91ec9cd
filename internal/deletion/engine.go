// AngelaMos | 2026
// engine.go

package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/angelamos/soundshare/internal/account"
	"github.com/angelamos/soundshare/internal/auth"
	"github.com/angelamos/soundshare/internal/content"
	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/ledger"
	"github.com/angelamos/soundshare/internal/queue"
	"github.com/angelamos/soundshare/internal/sameuser"
)

const tracerName = "soundshare/deletion"

type AccountStore interface {
	GetByIDForUpdate(ctx context.Context, id int64) (*account.Account, error)
	Anonymize(ctx context.Context, acc *account.Account) error
	DeleteOldUsernames(ctx context.Context, id int64) (int64, error)
	DecrementCounters(ctx context.Context, id int64, by account.Counters) error
}

type ContentStore interface {
	MarkSoundsIndexDirty(ctx context.Context, userID int64) ([]int64, error)
	RemoveSounds(ctx context.Context, userID int64) (*content.SoundRemoval, error)
	SoftDeletePacks(ctx context.Context, userID int64) ([]int64, error)
	RemoveSocialContent(ctx context.Context, userID int64) (*content.SocialRemoval, error)
}

type TombstoneStore interface {
	FindByUserID(ctx context.Context, userID int64) (*DeletedUser, error)
	Create(ctx context.Context, du *DeletedUser) error
	RemoveAccount(ctx context.Context, accountID int64) error
}

type LinkStore interface {
	DeleteForAccount(ctx context.Context, accountID int64) (int64, error)
}

type SessionStore interface {
	RevokeAllForUser(ctx context.Context, userID int64) error
}

type RequestStore interface {
	CompleteForTarget(ctx context.Context, targetID, deletedUserID int64) (int64, error)
}

// Stores are the repositories one deletion touches, all bound to the same
// transaction.
type Stores struct {
	Accounts   AccountStore
	Content    ContentStore
	Tombstones TombstoneStore
	Links      LinkStore
	Sessions   SessionStore
	Requests   RequestStore
}

func SQLStores(tx core.DBTX) Stores {
	return Stores{
		Accounts:   account.NewRepository(tx),
		Content:    content.NewRepository(tx),
		Tombstones: NewRepository(tx),
		Links:      sameuser.NewRepository(tx),
		Sessions:   auth.NewRepository(tx),
		Requests:   ledger.NewRepository(tx),
	}
}

// PurgePublisher tells the search and similarity indexes which ids to drop.
type PurgePublisher interface {
	Publish(ctx context.Context, kind queue.PurgeKind, accountID int64, ids []int64) error
}

type Engine struct {
	tx          core.TxRunner
	stores      func(core.DBTX) Stores
	purge       PurgePublisher
	emailDomain string
	logger      *slog.Logger
}

func NewEngine(
	tx core.TxRunner,
	purge PurgePublisher,
	anonymizedEmailDomain string,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		tx:          tx,
		stores:      SQLStores,
		purge:       purge,
		emailDomain: anonymizedEmailDomain,
		logger:      logger,
	}
}

// run is the state threaded through the steps of one deletion.
type run struct {
	stores    Stores
	account   *account.Account
	opts      Options
	tombstone *DeletedUser
	sounds    []int64
	packs     []int64
}

type step struct {
	name string
	fn   func(ctx context.Context, r *run) error
}

// DeleteAccount anonymises accountID and, depending on opts, removes its
// content and its row. Everything happens in one transaction, in the order
// of the steps below. Running it again on an anonymised or removed account
// leaves exactly one DeletedUser.
func (e *Engine) DeleteAccount(
	ctx context.Context,
	accountID int64,
	opts Options,
) (result *DeletedUser, err error) {
	opts = opts.normalize()
	if !opts.Reason.Valid() {
		return nil, fmt.Errorf("delete account: invalid reason %q: %w", opts.Reason, core.ErrInvalidInput)
	}

	ctx, span := core.StartSpan(ctx, tracerName, "deletion.DeleteAccount",
		attribute.Int64("account.id", accountID),
		attribute.Bool("deletion.remove_content", opts.RemoveContent),
		attribute.Bool("deletion.delete_record", opts.DeleteAccountRecord),
		attribute.String("deletion.reason", string(opts.Reason)),
	)
	defer func() { core.EndSpan(span, err) }()

	var state *run

	err = e.tx.InTx(ctx, func(tx core.DBTX) error {
		stores := e.stores(tx)

		acc, err := stores.Accounts.GetByIDForUpdate(ctx, accountID)
		if errors.Is(err, core.ErrNotFound) {
			du, findErr := stores.Tombstones.FindByUserID(ctx, accountID)
			if findErr != nil {
				return err
			}
			result = du
			return nil
		}
		if err != nil {
			return err
		}

		state = &run{stores: stores, account: acc, opts: opts}

		for _, s := range e.steps() {
			core.AddSpanEvent(ctx, s.name)
			if err := s.fn(ctx, state); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
		}

		result = state.tombstone
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete account %d: %w", accountID, err)
	}

	if state == nil {
		e.logger.InfoContext(ctx, "account already removed",
			"account_id", accountID,
			"deleted_user_id", result.ID,
		)
		return result, nil
	}

	e.publishPurge(ctx, accountID, state)

	span.SetAttributes(
		attribute.Int("deletion.sounds_removed", len(state.sounds)),
		attribute.Int("deletion.packs_removed", len(state.packs)),
	)

	e.logger.InfoContext(ctx, "account deleted",
		"account_id", accountID,
		"deleted_user_id", result.ID,
		"reason", string(opts.Reason),
		"remove_content", opts.RemoveContent,
		"delete_record", opts.DeleteAccountRecord,
		"sounds_removed", len(state.sounds),
		"packs_removed", len(state.packs),
	)

	return result, nil
}

func (e *Engine) steps() []step {
	return []step{
		{"tombstone", e.createTombstone},
		{"content", e.detachContent},
		{"anonymize", e.anonymize},
		{"history", e.clearHistory},
		{"requests", e.completeRequests},
		{"record", e.removeRecord},
	}
}

// createTombstone reuses an existing DeletedUser so repeated runs never
// create a second one.
func (e *Engine) createTombstone(ctx context.Context, r *run) error {
	du, err := r.stores.Tombstones.FindByUserID(ctx, r.account.ID)
	if err == nil {
		r.tombstone = du
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	du = &DeletedUser{
		UserID:     r.account.ID,
		Username:   r.account.Username,
		Email:      r.account.Email,
		Reason:     r.opts.Reason,
		DateJoined: r.account.CreatedAt,
	}
	if err := r.stores.Tombstones.Create(ctx, du); err != nil {
		return err
	}

	r.tombstone = du
	return nil
}

// detachContent either removes sounds and packs, leaving tombstones for the
// indexes, or only flags the sounds for reindexing under the new name.
func (e *Engine) detachContent(ctx context.Context, r *run) error {
	if !r.opts.RemoveContent {
		_, err := r.stores.Content.MarkSoundsIndexDirty(ctx, r.account.ID)
		return err
	}

	removal, err := r.stores.Content.RemoveSounds(ctx, r.account.ID)
	if err != nil {
		return err
	}
	r.sounds = append(r.sounds, removal.SoundIDs...)

	packs, err := r.stores.Content.SoftDeletePacks(ctx, r.account.ID)
	if err != nil {
		return err
	}
	r.packs = append(r.packs, packs...)

	removed := len(removal.SoundIDs)
	if err := r.stores.Accounts.DecrementCounters(ctx, r.account.ID, account.Counters{
		NumSounds: removed,
	}); err != nil {
		return err
	}
	r.account.NumSounds = max(r.account.NumSounds-removed, 0)

	return nil
}

func (e *Engine) anonymize(ctx context.Context, r *run) error {
	r.account.Anonymize(e.emailDomain)
	return r.stores.Accounts.Anonymize(ctx, r.account)
}

func (e *Engine) clearHistory(ctx context.Context, r *run) error {
	if _, err := r.stores.Accounts.DeleteOldUsernames(ctx, r.account.ID); err != nil {
		return err
	}
	if _, err := r.stores.Links.DeleteForAccount(ctx, r.account.ID); err != nil {
		return err
	}
	return r.stores.Sessions.RevokeAllForUser(ctx, r.account.ID)
}

func (e *Engine) completeRequests(ctx context.Context, r *run) error {
	_, err := r.stores.Requests.CompleteForTarget(ctx, r.account.ID, r.tombstone.ID)
	return err
}

func (e *Engine) removeRecord(ctx context.Context, r *run) error {
	if !r.opts.DeleteAccountRecord {
		return nil
	}

	if _, err := r.stores.Content.RemoveSocialContent(ctx, r.account.ID); err != nil {
		return err
	}

	removal, err := r.stores.Content.RemoveSounds(ctx, r.account.ID)
	if err != nil {
		return err
	}
	r.sounds = append(r.sounds, removal.SoundIDs...)

	return r.stores.Tombstones.RemoveAccount(ctx, r.account.ID)
}

func (e *Engine) publishPurge(ctx context.Context, accountID int64, r *run) {
	if e.purge == nil {
		return
	}

	if err := e.purge.Publish(ctx, queue.PurgeSound, accountID, r.sounds); err != nil {
		e.logger.WarnContext(ctx, "publish sound purge failed",
			"account_id", accountID,
			"count", len(r.sounds),
			"error", err,
		)
	}

	if err := e.purge.Publish(ctx, queue.PurgePack, accountID, r.packs); err != nil {
		e.logger.WarnContext(ctx, "publish pack purge failed",
			"account_id", accountID,
			"count", len(r.packs),
			"error", err,
		)
	}
}
