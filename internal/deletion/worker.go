// AngelaMos | 2026
// worker.go

package deletion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angelamos/soundshare/internal/queue"
)

type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) ([]byte, error)
	Fail(ctx context.Context, payload []byte, cause error) error
}

// Worker consumes deletion jobs one at a time. Failed jobs are parked, not
// retried; the ledger sweep reports the requests they leave open.
type Worker struct {
	source         JobSource
	deleter        Deleter
	dequeueTimeout time.Duration
	jobTimeout     time.Duration
	logger         *slog.Logger
}

func NewWorker(
	source JobSource,
	deleter Deleter,
	dequeueTimeout, jobTimeout time.Duration,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}
	if jobTimeout <= 0 {
		jobTimeout = 5 * time.Minute
	}

	return &Worker{
		source:         source,
		deleter:        deleter,
		dequeueTimeout: dequeueTimeout,
		jobTimeout:     jobTimeout,
		logger:         logger,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("deletion worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info("deletion worker stopped")
			return nil
		}

		payload, err := w.source.Dequeue(ctx, w.dequeueTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("dequeue deletion job failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		w.Process(ctx, payload)
	}
}

// Process runs a single job payload.
func (w *Worker) Process(ctx context.Context, payload []byte) {
	var job DeleteUserJob
	err := json.Unmarshal(payload, &job)
	if err == nil {
		err = job.Validate()
	}
	if err != nil {
		w.fail(ctx, payload, fmt.Errorf("decode job: %w", err))
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	start := time.Now()
	du, err := w.deleter.DeleteAccount(jobCtx, job.AccountID, job.Action.Options(job.Reason))
	if err != nil {
		w.fail(ctx, payload, err)
		return
	}

	w.logger.Info("deletion job done",
		"account_id", job.AccountID,
		"action", string(job.Action),
		"request_id", job.RequestID,
		"deleted_user_id", du.ID,
		"duration", time.Since(start).String(),
	)
}

func (w *Worker) fail(ctx context.Context, payload []byte, cause error) {
	w.logger.Error("deletion job failed", "error", cause)

	if err := w.source.Fail(ctx, payload, cause); err != nil {
		w.logger.Error("record failed deletion job", "error", err)
	}
}
