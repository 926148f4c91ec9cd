// AngelaMos | 2026
// job.go

package deletion

import (
	"context"
	"fmt"
)

// Action is the kind of deletion a job or an admin asks for.
type Action string

const (
	ActionDeleteIncludingContent Action = "delete_including_content"
	ActionDeleteKeepContent      Action = "delete_keep_content"
	// ActionFullDeleteSpammer is admin-only and always runs inline.
	ActionFullDeleteSpammer Action = "full_delete_spammer"
)

func (a Action) Valid() bool {
	switch a {
	case ActionDeleteIncludingContent, ActionDeleteKeepContent, ActionFullDeleteSpammer:
		return true
	default:
		return false
	}
}

// Queueable reports whether the action may be handed to the worker.
func (a Action) Queueable() bool {
	return a == ActionDeleteIncludingContent || a == ActionDeleteKeepContent
}

// Options maps the action onto engine options.
func (a Action) Options(reason Reason) Options {
	switch a {
	case ActionDeleteIncludingContent:
		return Options{RemoveContent: true, Reason: reason}
	case ActionFullDeleteSpammer:
		return Options{RemoveContent: true, DeleteAccountRecord: true, Reason: ReasonSpammer}
	default:
		return Options{Reason: reason}
	}
}

// DeleteUserJob carries everything needed to re-run a deletion in the
// worker.
type DeleteUserJob struct {
	AccountID int64  `json:"account_id"`
	Action    Action `json:"action"`
	Reason    Reason `json:"reason"`
	RequestID int64  `json:"request_id,omitempty"`
}

func (j DeleteUserJob) Validate() error {
	if j.AccountID <= 0 {
		return fmt.Errorf("job account id %d: %w", j.AccountID, ErrInvalidAction)
	}
	if !j.Action.Queueable() {
		return fmt.Errorf("job action %q: %w", j.Action, ErrInvalidAction)
	}
	if !j.Reason.Valid() {
		return fmt.Errorf("job reason %q: %w", j.Reason, ErrInvalidAction)
	}
	return nil
}

// Deleter is implemented by Engine.
type Deleter interface {
	DeleteAccount(ctx context.Context, accountID int64, opts Options) (*DeletedUser, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, payload any) error
}

// Dispatcher decides whether a deletion runs now or in the worker.
type Dispatcher struct {
	deleter Deleter
	queue   Enqueuer
	async   bool
}

func NewDispatcher(deleter Deleter, queue Enqueuer, async bool) *Dispatcher {
	return &Dispatcher{
		deleter: deleter,
		queue:   queue,
		async:   async && queue != nil,
	}
}

// Dispatch enqueues job when running async, otherwise deletes inline. The
// returned DeletedUser is nil for queued jobs.
func (d *Dispatcher) Dispatch(ctx context.Context, job DeleteUserJob) (*DeletedUser, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}

	if d.async {
		if err := d.queue.Enqueue(ctx, job); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return d.RunInline(ctx, job)
}

func (d *Dispatcher) RunInline(ctx context.Context, job DeleteUserJob) (*DeletedUser, error) {
	return d.deleter.DeleteAccount(ctx, job.AccountID, job.Action.Options(job.Reason))
}

func (d *Dispatcher) Async() bool {
	return d.async
}
