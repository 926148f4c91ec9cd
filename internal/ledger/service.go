// AngelaMos | 2026
// service.go

package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/angelamos/soundshare/internal/core"
)

const tracerName = "soundshare/ledger"

// Report is the outcome of one reconciliation sweep. Stale counts the
// requests that are still unprocessed after the sweep; Fixed counts the
// ones it closed because their target had already been deleted.
type Report struct {
	Stale int `json:"stale"`
	Fixed int `json:"fixed"`
}

// Identity names one side of a deletion request.
type Identity struct {
	ID       int64
	Username string
}

type Service struct {
	db       core.DBTX
	tx       core.TxRunner
	requests func(core.DBTX) Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(db core.DBTX, tx core.TxRunner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		db:       db,
		tx:       tx,
		requests: NewRepository,
		logger:   logger,
		now:      time.Now,
	}
}

// Open records a new deletion request for target on behalf of from.
func (s *Service) Open(
	ctx context.Context,
	from, target Identity,
	status Status,
	reason string,
) (*Request, error) {
	req := &Request{
		UserFromID:   &from.ID,
		UserToID:     &target.ID,
		UsernameFrom: from.Username,
		UsernameTo:   target.Username,
		Status:       status,
		Reason:       reason,
	}

	if err := s.requests(s.db).Create(ctx, req); err != nil {
		return nil, err
	}

	return req, nil
}

// Advance moves a request forward to status.
func (s *Service) Advance(
	ctx context.Context,
	id int64,
	status Status,
) (*Request, error) {
	var req *Request

	err := s.tx.InTx(ctx, func(tx core.DBTX) error {
		repo := s.requests(tx)

		var err error
		req, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		req.Status = status
		return repo.Update(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("advance deletion request: %w", err)
	}

	return req, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Request, error) {
	return s.requests(s.db).GetByID(ctx, id)
}

func (s *Service) List(
	ctx context.Context,
	params ListParams,
) ([]Request, int, error) {
	return s.requests(s.db).List(ctx, params)
}

func (s *Service) CountOpen(ctx context.Context) (int, error) {
	return s.requests(s.db).CountOpen(ctx)
}

// FindUnprocessed scans open requests older than olderThan. A request whose
// target was already deleted is closed with the tombstone reference; the
// others are counted as stale and left for the next run.
func (s *Service) FindUnprocessed(
	ctx context.Context,
	olderThan time.Duration,
) (report Report, err error) {
	ctx, span := core.StartSpan(ctx, tracerName, "ledger.FindUnprocessed",
		attribute.String("ledger.older_than", olderThan.String()),
	)
	defer func() { core.EndSpan(span, err) }()

	cutoff := s.now().Add(-olderThan)

	err = s.tx.InTx(ctx, func(tx core.DBTX) error {
		repo := s.requests(tx)

		stale, err := repo.ListStale(ctx, cutoff)
		if err != nil {
			return err
		}

		for i := range stale {
			entry := &stale[i]
			if !entry.ShouldBeCompleted() {
				report.Stale++
				continue
			}

			req := entry.Request
			req.Status = StatusUserWasDeleted
			if entry.TombstoneID != nil {
				req.DeletedUserID = entry.TombstoneID
			}

			if err := repo.Update(ctx, &req); err != nil {
				return err
			}
			report.Fixed++
		}

		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("find unprocessed deletion requests: %w", err)
	}

	span.SetAttributes(
		attribute.Int("ledger.stale", report.Stale),
		attribute.Int("ledger.fixed", report.Fixed),
	)

	s.logger.InfoContext(ctx, fmt.Sprintf(
		"found %d users that should have been deleted and were not", report.Stale),
		"stale", report.Stale,
		"fixed", report.Fixed,
	)

	return report, nil
}
