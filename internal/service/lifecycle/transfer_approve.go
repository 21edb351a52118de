package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
)

// TransferApprove resolves a pending transfer in favor of the gaining
// registrar. Only the losing (current sponsoring) registrar may approve.
func (s *Service) TransferApprove(ctx context.Context, in TransferResolveInput) (*TransferResult, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var result *TransferResult

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, t, err := s.loadDomainAndTLD(txCtx, in.DomainName)
		if err != nil {
			return err
		}

		if err := s.checkPreconditions(txCtx, d, t, c, now); err != nil {
			return err
		}
		if !d.HasPendingTransfer() {
			return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotPendingTransfer)
		}

		td := d.TransferData
		gaining := td.GainingRegistrarID

		history := domain.NewHistoryEntry(domain.HistoryDomainTransferApprove, d, c.RegistrarID, now, c.Superuser)
		history.Records = []domain.TransactionRecord{{
			TLD: t.Name, ReportingTime: now, Field: domain.FieldTransferSuccess, Amount: 1,
		}}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		// When an active autorenew grace period already spans the transfer
		// window, the autorenew is subsumed: the expiration stands and no
		// transfer charge is produced.
		periods, err := s.grace.ListActiveByDomain(txCtx, d.RepoID, now)
		if err != nil {
			return fmt.Errorf("list grace periods: %w", err)
		}
		autorenewGrace := findGrace(periods, domain.GraceAutoRenew)

		transferYears := td.TransferPeriodYears
		if transferYears == 0 {
			transferYears = 1
		}
		subsumed := autorenewGrace != nil

		if err := s.resolveTransferEntities(txCtx, d, now, history.ID,
			domain.TransferStatusClientApproved, true); err != nil {
			return err
		}

		// The losing registrar's autorenew commitment ends at transfer time.
		if err := s.closeRecurring(txCtx, d, now); err != nil {
			return err
		}

		if subsumed {
			// The year the autorenew already added stands in for the
			// transfer period; its charge shifts to the gaining registrar
			// via the grace cancellation below.
			if err := s.closeGracePeriod(txCtx, autorenewGrace, now, history.ID); err != nil {
				return err
			}
		} else {
			quote, err := s.fees.Quote(txCtx, fees.QuoteInput{
				TLD:    t,
				Label:  firstLabel(d.Name),
				Reason: domain.ReasonTransfer,
				Years:  transferYears,
				At:     now,
			})
			if err != nil {
				return err
			}

			graceEnd := now.Add(t.TransferGracePeriod)
			charge := domain.NewOneTime(domain.ReasonTransfer, d, gaining,
				quote.Total, transferYears, now, graceEnd, history.ID)
			if err := s.billing.Create(txCtx, charge); err != nil {
				return fmt.Errorf("create transfer billing event: %w", err)
			}
			grace := domain.NewGracePeriod(domain.GraceTransfer, d.RepoID, gaining, graceEnd, &charge.ID)
			if err := s.grace.Create(txCtx, grace); err != nil {
				return fmt.Errorf("open transfer grace period: %w", err)
			}

			d.ExpirationTime = d.ExpirationTime.AddDate(transferYears, 0, 0)
		}

		d.SponsorID = gaining
		if err := s.openAutorenew(txCtx, d, gaining, domain.RenewalPriceDefault, nil, history.ID); err != nil {
			return err
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		result = &TransferResult{
			DomainName:     d.Name,
			Status:         domain.TransferStatusClientApproved,
			ExpirationTime: d.ExpirationTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "transfer approved",
		slog.String("domain", result.DomainName),
		slog.Time("new_expiration", result.ExpirationTime),
	)
	return result, nil
}
