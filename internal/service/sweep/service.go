// Package sweep implements the periodic batch jobs of the lifecycle engine:
// finalizing pending deletes whose deletion time has passed and expanding due
// autorenew recurrences into concrete charges. Each domain is processed in
// its own transaction so one failure never aborts the batch.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/metrics"
	"github.com/juniorpayne/registry-core/pkg/clock"
)

type domainRepo interface {
	GetByNameForUpdate(ctx context.Context, name string) (*domain.Domain, error)
	Update(ctx context.Context, d *domain.Domain) error
	FindDeletable(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type billingRepo interface {
	Create(ctx context.Context, e *domain.BillingEvent) error
	Get(ctx context.Context, id uuid.UUID) (*domain.BillingEvent, error)
	AdvanceEventTime(ctx context.Context, id uuid.UUID, eventTime time.Time) error
	FindDueRecurrings(ctx context.Context, now time.Time, limit int) ([]*domain.BillingEvent, error)
}

type graceRepo interface {
	Create(ctx context.Context, g *domain.GracePeriod) error
	DeleteByDomain(ctx context.Context, domainRepoID uuid.UUID) error
}

type pollRepo interface {
	Create(ctx context.Context, m *domain.PollMessage) error
	Get(ctx context.Context, id uuid.UUID) (*domain.PollMessage, error)
}

type historyRepo interface {
	Create(ctx context.Context, h *domain.HistoryEntry) error
}

type tldRepo interface {
	Get(ctx context.Context, name string) (*domain.TLD, error)
}

type taskQueue interface {
	Complete(ctx context.Context, resourceKey string) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service runs the sweep passes.
type Service struct {
	domains   domainRepo
	billing   billingRepo
	grace     graceRepo
	poll      pollRepo
	history   historyRepo
	tlds      tldRepo
	tasks     taskQueue
	tx        txManager
	clock     clock.Clock
	batchSize int
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewService(
	log *slog.Logger,
	domains domainRepo,
	billing billingRepo,
	grace graceRepo,
	poll pollRepo,
	history historyRepo,
	tlds tldRepo,
	tasks taskQueue,
	tx txManager,
	clk clock.Clock,
	batchSize int,
	m *metrics.Metrics,
) *Service {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Service{
		domains:   domains,
		billing:   billing,
		grace:     grace,
		poll:      poll,
		history:   history,
		tlds:      tlds,
		tasks:     tasks,
		tx:        tx,
		clock:     clk,
		batchSize: batchSize,
		metrics:   m,
		log:       log.With("service", "sweep"),
	}
}

// Run executes one full sweep pass.
func (s *Service) Run(ctx context.Context) error {
	if err := s.FinalizePendingDeletes(ctx); err != nil {
		return err
	}
	return s.ExpandAutorenews(ctx)
}

// FinalizePendingDeletes soft-deletes every domain whose scheduled deletion
// time has passed. Failures are isolated per domain. The candidate query may
// lag recent writes; each candidate is re-verified under its own lock.
func (s *Service) FinalizePendingDeletes(ctx context.Context) error {
	now := s.clock.Now()
	names, err := s.domains.FindDeletable(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("find deletable domains: %w", err)
	}

	for _, name := range names {
		if err := s.finalizeOne(ctx, name, now); err != nil {
			s.log.ErrorContext(ctx, "finalize pending delete failed",
				slog.String("domain", name), slog.Any("error", err))
			continue
		}
		if s.metrics != nil {
			s.metrics.SweepFinalized.Inc()
		}
		if err := s.tasks.Complete(ctx, name); err != nil {
			s.log.WarnContext(ctx, "clear resave tasks failed",
				slog.String("domain", name), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) finalizeOne(ctx context.Context, name string, now time.Time) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.domains.GetByNameForUpdate(txCtx, name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		// The index may be stale: confirm the deletion is still due.
		if !d.Statuses.Has(domain.StatusPendingDelete) ||
			d.DeletionTime == nil || d.DeletionTime.After(now) {
			return nil
		}

		history := domain.NewHistoryEntry(domain.HistoryDomainDeleteFinalize, d, d.SponsorID, now, true)
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		if err := s.grace.DeleteByDomain(txCtx, d.RepoID); err != nil {
			return fmt.Errorf("clear grace periods: %w", err)
		}

		d.Statuses = domain.NewStatusSet()
		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		s.log.InfoContext(txCtx, "pending delete finalized", slog.String("domain", d.Name))
		return nil
	})
}

// ExpandAutorenews turns each due open Recurring event into the concrete
// one-time charge downstream billing consumes, extends the domain by a year,
// and advances the recurrence to its next firing.
func (s *Service) ExpandAutorenews(ctx context.Context) error {
	now := s.clock.Now()
	due, err := s.billing.FindDueRecurrings(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("find due recurrings: %w", err)
	}

	for _, recurring := range due {
		if err := s.expandOne(ctx, recurring.ID, recurring.DomainName, now); err != nil {
			s.log.ErrorContext(ctx, "autorenew expansion failed",
				slog.String("domain", recurring.DomainName), slog.Any("error", err))
			continue
		}
		if s.metrics != nil {
			s.metrics.SweepAutorenewals.Inc()
		}
	}
	return nil
}

func (s *Service) expandOne(ctx context.Context, recurringID uuid.UUID, name string, now time.Time) error {
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, err := s.domains.GetByNameForUpdate(txCtx, name)
		if err != nil {
			return err
		}
		// Re-read under the lock: the recurrence may have been closed since
		// the candidate query ran.
		recurring, err := s.billing.Get(txCtx, recurringID)
		if err != nil {
			return err
		}
		if !recurring.IsOpen() || recurring.EventTime.After(now) {
			return nil
		}

		t, err := s.tlds.Get(txCtx, d.TLD)
		if err != nil {
			return fmt.Errorf("get TLD policy: %w", err)
		}

		occurrence := recurring.EventTime

		history := domain.NewHistoryEntry(domain.HistoryDomainAutorenew, d, recurring.RegistrarID, now, true)
		graceEnd := occurrence.Add(t.AutorenewGracePeriod)
		history.Records = []domain.TransactionRecord{{
			TLD: t.Name, ReportingTime: graceEnd,
			Field: domain.FieldNetRenewsPerYear, PeriodYears: 1, Amount: 1,
		}}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		cost := s.autorenewCost(t, recurring, occurrence)
		charge := domain.NewOneTime(domain.ReasonRenew, d, recurring.RegistrarID,
			cost, 1, occurrence, graceEnd, history.ID)
		if err := s.billing.Create(txCtx, charge); err != nil {
			return fmt.Errorf("create autorenew billing event: %w", err)
		}

		grace := domain.NewGracePeriod(domain.GraceAutoRenew, d.RepoID,
			recurring.RegistrarID, graceEnd, &charge.ID)
		if err := s.grace.Create(txCtx, grace); err != nil {
			return fmt.Errorf("open autorenew grace period: %w", err)
		}

		d.ExpirationTime = d.ExpirationTime.AddDate(1, 0, 0)
		if err := s.billing.AdvanceEventTime(txCtx, recurring.ID, recurring.EventTime.AddDate(1, 0, 0)); err != nil {
			return err
		}

		// The poll message for this occurrence may already exist; recreate it
		// only if it was acknowledged away.
		if d.AutorenewPollID != nil {
			if _, err := s.poll.Get(txCtx, *d.AutorenewPollID); errors.Is(err, domain.ErrNotFound) {
				msg := domain.NewAutorenewPoll(recurring.RegistrarID, d, occurrence, recurring.ID, history.ID)
				if err := s.poll.Create(txCtx, msg); err != nil {
					return fmt.Errorf("enqueue autorenew poll message: %w", err)
				}
				d.AutorenewPollID = &msg.ID
			} else if err != nil {
				return err
			}
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		s.log.InfoContext(txCtx, "autorenew expanded",
			slog.String("domain", d.Name),
			slog.Time("occurrence", occurrence),
			slog.String("cost", cost.String()),
		)
		return nil
	})
}

// autorenewCost honors the renewal price behavior locked into the recurrence.
func (s *Service) autorenewCost(t *domain.TLD, recurring *domain.BillingEvent, at time.Time) domain.Money {
	if recurring.RenewalPriceBehavior == domain.RenewalPriceSpecified && recurring.RenewalPrice != nil {
		return *recurring.RenewalPrice
	}
	return t.RenewCostAt(at)
}
