package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juniorpayne/registry-core/internal/adapter/dns"
	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
)

// Restore brings a domain back from its redemption window: PENDING_DELETE is
// cleared, the scheduled deletion is abandoned, and the sponsor is charged
// the restore cost plus one renew year. Only possible while the REDEMPTION
// grace period is still open.
func (s *Service) Restore(ctx context.Context, in RestoreInput) (*RestoreResult, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var result *RestoreResult

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, t, err := s.loadDomainAndTLD(txCtx, in.DomainName)
		if err != nil {
			return err
		}

		if !d.ExistsAt(now) {
			return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotFound)
		}
		if !c.Superuser && d.SponsorID != c.RegistrarID {
			return fmt.Errorf("registrar %s does not sponsor %s: %w",
				c.RegistrarID, d.Name, domain.ErrNotAuthorized)
		}
		if !t.PhaseAt(now).AllowsMutations() {
			return fmt.Errorf("TLD %s is in predelegation: %w", t.Name, domain.ErrPolicyViolation)
		}
		if !d.Statuses.Has(domain.StatusPendingDelete) {
			return fmt.Errorf("domain %s is not pending delete: %w", d.Name, domain.ErrPolicyViolation)
		}

		periods, err := s.grace.ListActiveByDomain(txCtx, d.RepoID, now)
		if err != nil {
			return fmt.Errorf("list grace periods: %w", err)
		}
		redemption := findGrace(periods, domain.GraceRedemption)
		if redemption == nil {
			return fmt.Errorf("domain %s redemption window has closed: %w",
				d.Name, domain.ErrPolicyViolation)
		}

		history := domain.NewHistoryEntry(domain.HistoryDomainRestore, d, c.RegistrarID, now, c.Superuser)
		history.Records = []domain.TransactionRecord{{
			TLD: t.Name, ReportingTime: now, Field: domain.FieldRestoredDomains, Amount: 1,
		}}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		quote, err := s.fees.Quote(txCtx, fees.QuoteInput{
			TLD:              t,
			Label:            firstLabel(d.Name),
			Reason:           domain.ReasonRestore,
			Years:            1,
			At:               now,
			DeclaredCurrency: in.Currency,
		})
		if err != nil {
			return err
		}

		// Restores are never reversible: billed immediately, no grace period.
		charge := domain.NewOneTime(domain.ReasonRestore, d, c.RegistrarID,
			quote.Total, 1, now, now, history.ID)
		if err := s.billing.Create(txCtx, charge); err != nil {
			return fmt.Errorf("create restore billing event: %w", err)
		}

		if err := s.grace.Delete(txCtx, redemption.ID); err != nil {
			return fmt.Errorf("close redemption grace period: %w", err)
		}

		d.Statuses.Remove(domain.StatusPendingDelete)
		d.DeletionTime = nil
		d.ExpirationTime = d.ExpirationTime.AddDate(1, 0, 0)
		d.RecomputeInactive()
		if len(d.Statuses) == 0 {
			d.Statuses.Add(domain.StatusOK)
		}

		if err := s.openAutorenew(txCtx, d, d.SponsorID, domain.RenewalPriceDefault, nil, history.ID); err != nil {
			return err
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		result = &RestoreResult{
			DomainName:     d.Name,
			ExpirationTime: d.ExpirationTime,
			Cost:           quote.Total,
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

	s.log.InfoContext(ctx, "domain restored",
		slog.String("domain", result.DomainName),
		slog.String("cost", result.Cost.String()),
	)
	return result, nil
}
