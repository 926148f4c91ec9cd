// AngelaMos | 2026
// service.go

package deletion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angelamos/soundshare/internal/account"
	"github.com/angelamos/soundshare/internal/core"
	"github.com/angelamos/soundshare/internal/ledger"
)

type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*account.Account, error)
}

type RequestLedger interface {
	Open(
		ctx context.Context,
		from, target ledger.Identity,
		status ledger.Status,
		reason string,
	) (*ledger.Request, error)
	Advance(ctx context.Context, id int64, status ledger.Status) (*ledger.Request, error)
}

type JobDispatcher interface {
	Dispatch(ctx context.Context, job DeleteUserJob) (*DeletedUser, error)
	RunInline(ctx context.Context, job DeleteUserJob) (*DeletedUser, error)
	Async() bool
}

// Notifier confirms a deletion request to the account owner.
type Notifier interface {
	SendDeletionRequested(ctx context.Context, userID int64, includeContent bool) error
}

type Service struct {
	accounts   AccountReader
	requests   RequestLedger
	dispatcher JobDispatcher
	notifier   Notifier
	logger     *slog.Logger
}

func NewService(
	accounts AccountReader,
	requests RequestLedger,
	dispatcher JobDispatcher,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		accounts:   accounts,
		requests:   requests,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// Outcome is what a deletion call reports back. DeletedUser is nil when the
// work was queued.
type Outcome struct {
	Request     *ledger.Request
	DeletedUser *DeletedUser
	Queued      bool
	// Failed is set when the hand-off errored; the request stays triggered.
	Failed bool
}

// RequestSelfDeletion checks the owner's password, records the request as
// triggered and hands the deletion off. Failing to hand it off is logged
// and still reported as accepted; the sweep surfaces the open request.
func (s *Service) RequestSelfDeletion(
	ctx context.Context,
	userID int64,
	password string,
	deleteContent bool,
) (*Outcome, error) {
	acc, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if acc.IsAnonymized {
		return nil, fmt.Errorf("request deletion: %w", ErrAlreadyDeleted)
	}

	valid, err := core.VerifyPassword(password, acc.PasswordHash)
	if err != nil {
		s.logger.WarnContext(ctx, "verify password for deletion", "user_id", userID, "error", err)
	}
	if !valid {
		appErr := core.FieldError("password", "Incorrect password.")
		appErr.Err = ErrInvalidPassword
		return nil, fmt.Errorf("request deletion: %w", appErr)
	}

	me := ledger.Identity{ID: acc.ID, Username: acc.Username}

	req, err := s.open(ctx, me, me, "self-service deletion")
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.SendDeletionRequested(ctx, acc.ID, deleteContent); err != nil {
			s.logger.WarnContext(ctx, "send deletion confirmation failed",
				"user_id", acc.ID,
				"error", err,
			)
		}
	}

	action := ActionDeleteKeepContent
	if deleteContent {
		action = ActionDeleteIncludingContent
	}

	return s.hand(ctx, req, DeleteUserJob{
		AccountID: acc.ID,
		Action:    action,
		Reason:    ReasonSelf,
		RequestID: req.ID,
	}), nil
}

// AdminDelete deletes target on behalf of an admin. Spammer deletions run
// inline and remove everything; the other actions follow the dispatcher.
func (s *Service) AdminDelete(
	ctx context.Context,
	adminID, targetID int64,
	action Action,
	note string,
) (*Outcome, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("admin delete: action %q: %w", action, ErrInvalidAction)
	}
	if adminID == targetID {
		return nil, fmt.Errorf("admin delete: %w", ErrSelfTarget)
	}

	admin, err := s.accounts.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}

	target, err := s.accounts.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if note == "" {
		note = "admin: " + string(action)
	}

	req, err := s.open(ctx,
		ledger.Identity{ID: admin.ID, Username: admin.Username},
		ledger.Identity{ID: target.ID, Username: target.Username},
		note,
	)
	if err != nil {
		return nil, err
	}

	job := DeleteUserJob{
		AccountID: target.ID,
		Action:    action,
		Reason:    ReasonAdmin,
		RequestID: req.ID,
	}

	if action == ActionFullDeleteSpammer {
		job.Reason = ReasonSpammer

		du, err := s.dispatcher.RunInline(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("admin delete: %w", err)
		}
		return &Outcome{Request: req, DeletedUser: du}, nil
	}

	return s.hand(ctx, req, job), nil
}

func (s *Service) open(
	ctx context.Context,
	from, target ledger.Identity,
	reason string,
) (*ledger.Request, error) {
	req, err := s.requests.Open(ctx, from, target, ledger.StatusReceived, reason)
	if err != nil {
		return nil, fmt.Errorf("open deletion request: %w", err)
	}

	req, err = s.requests.Advance(ctx, req.ID, ledger.StatusTriggered)
	if err != nil {
		return nil, fmt.Errorf("trigger deletion request: %w", err)
	}

	return req, nil
}

func (s *Service) hand(
	ctx context.Context,
	req *ledger.Request,
	job DeleteUserJob,
) *Outcome {
	du, err := s.dispatcher.Dispatch(ctx, job)
	if err != nil {
		s.logger.ErrorContext(ctx, "dispatch deletion failed",
			"account_id", job.AccountID,
			"request_id", req.ID,
			"action", string(job.Action),
			"error", err,
		)
		return &Outcome{Request: req, Queued: s.dispatcher.Async(), Failed: true}
	}

	return &Outcome{Request: req, DeletedUser: du, Queued: du == nil}
}
