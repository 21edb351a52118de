package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juniorpayne/registry-core/internal/adapter/dns"
	"github.com/juniorpayne/registry-core/internal/domain"
)

// Delete removes a domain. Inside the add grace window the delete is
// immediate and the create charge is reversed; otherwise the domain enters
// the redemption pipeline and is finalized after redemption plus
// pending-delete policy lengths.
func (s *Service) Delete(ctx context.Context, in DeleteInput) (*DeleteResult, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var result *DeleteResult

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, t, err := s.loadDomainAndTLD(txCtx, in.DomainName)
		if err != nil {
			return err
		}

		if err := s.checkPreconditions(txCtx, d, t, c, now,
			domain.StatusPendingDelete,
			domain.StatusClientDeleteProhibited,
			domain.StatusServerDeleteProhibited,
		); err != nil {
			return err
		}

		periods, err := s.grace.ListActiveByDomain(txCtx, d.RepoID, now)
		if err != nil {
			return fmt.Errorf("list grace periods: %w", err)
		}

		addGrace := findGrace(periods, domain.GraceAdd)
		graced := addGrace != nil

		// Reversing any still-open revenue-bearing window subtracts the
		// counts it reported; the deltas land on this delete's history entry.
		records, err := s.revenueGraceReversals(txCtx, periods, now, t.Name)
		if err != nil {
			return err
		}
		if graced {
			records = append(records, domain.TransactionRecord{
				TLD: t.Name, ReportingTime: now, Field: domain.FieldDeletedGrace, Amount: 1,
			})
		} else {
			records = append(records, domain.TransactionRecord{
				TLD: t.Name, ReportingTime: now, Field: domain.FieldDeletedNoGrace, Amount: 1,
			})
		}

		history := domain.NewHistoryEntry(domain.HistoryDomainDelete, d, c.RegistrarID, now, c.Superuser)
		if c.Superuser {
			history.Reason = in.Reason
		}
		history.Records = records
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		for _, g := range periods {
			if !g.Type.RevenueBearing() {
				continue
			}
			if err := s.closeGracePeriod(txCtx, g, now, history.ID); err != nil {
				return err
			}
		}

		if err := s.closeRecurring(txCtx, d, now); err != nil {
			return err
		}

		if d.HasPendingTransfer() {
			// Both sides of the transfer learn that the delete cancelled it.
			if err := s.resolveTransferEntities(txCtx, d, now, history.ID,
				domain.TransferStatusServerCancelled, true); err != nil {
				return err
			}
		}

		if graced {
			// Immediate delete: the domain is gone as of now.
			if err := s.grace.DeleteByDomain(txCtx, d.RepoID); err != nil {
				return fmt.Errorf("clear grace periods: %w", err)
			}
			deletion := now
			d.DeletionTime = &deletion
			d.Statuses = domain.NewStatusSet()
			result = &DeleteResult{DomainName: d.Name, Immediate: true}
		} else {
			redemptionEnd := now.Add(t.RedemptionGracePeriod)
			deletion := redemptionEnd.Add(t.PendingDeleteLength)

			d.Statuses = domain.NewStatusSet(domain.StatusInactive, domain.StatusPendingDelete)
			d.DeletionTime = &deletion

			redemption := domain.NewGracePeriod(domain.GraceRedemption, d.RepoID,
				c.RegistrarID, redemptionEnd, nil)
			if err := s.grace.Create(txCtx, redemption); err != nil {
				return fmt.Errorf("open redemption grace period: %w", err)
			}

			// The registrar learns of the completed deletion when it happens.
			message := "Domain deleted."
			if c.Superuser && in.Reason != "" {
				message = in.Reason
			}
			pending := domain.NewOneTimePoll(d.SponsorID, d, deletion, message, history.ID)
			pending.PendingAction = &domain.PendingActionResponse{
				DomainName:  d.Name,
				Action:      "delete",
				Success:     true,
				ProcessedAt: deletion,
			}
			if err := s.poll.Enqueue(txCtx, pending); err != nil {
				return err
			}

			if err := s.tasks.Enqueue(txCtx, d.Name, now, redemptionEnd, deletion); err != nil {
				return fmt.Errorf("enqueue resave: %w", err)
			}

			result = &DeleteResult{DomainName: d.Name, DeletionTime: deletion}
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dns.PublishRefresh(ctx, dns.RefreshEvent{
		DomainName: in.DomainName,
		TLD:        domain.ParentTLD(in.DomainName),
		EventTime:  now,
	})

	s.log.InfoContext(ctx, "domain deleted",
		slog.String("domain", result.DomainName),
		slog.Bool("immediate", result.Immediate),
	)
	return result, nil
}

// revenueGraceReversals computes the transaction-report deltas that retract
// the counts reported by still-unbilled charges behind revenue-bearing grace
// periods. Closing the periods themselves happens separately, once the
// history entry that anchors the Cancellations exists.
func (s *Service) revenueGraceReversals(ctx context.Context, periods []*domain.GracePeriod,
	now time.Time, tldName string) ([]domain.TransactionRecord, error) {

	var records []domain.TransactionRecord
	for _, g := range periods {
		if !g.Type.RevenueBearing() || g.BillingEventID == nil {
			continue
		}
		target, err := s.billing.Get(ctx, *g.BillingEventID)
		if err != nil {
			return nil, fmt.Errorf("get grace period billing event: %w", err)
		}
		if target.Type != domain.BillingOneTime || !target.BillingTime.After(now) {
			continue
		}
		switch target.Reason {
		case domain.ReasonCreate:
			records = append(records, domain.TransactionRecord{
				TLD: tldName, ReportingTime: now,
				Field: domain.FieldNetAddsPerYear, PeriodYears: target.PeriodYears, Amount: -1,
			})
		case domain.ReasonRenew:
			records = append(records, domain.TransactionRecord{
				TLD: tldName, ReportingTime: now,
				Field: domain.FieldNetRenewsPerYear, PeriodYears: target.PeriodYears, Amount: -1,
			})
		}
	}
	return records, nil
}
