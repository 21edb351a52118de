package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// TransferCancel withdraws a pending transfer request. Unlike approve and
// reject, cancellation belongs to the gaining registrar that asked for the
// transfer in the first place.
func (s *Service) TransferCancel(ctx context.Context, in TransferResolveInput) (*TransferResult, error) {
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

		if !d.ExistsAt(now) {
			return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotFound)
		}
		if !t.PhaseAt(now).AllowsMutations() {
			return fmt.Errorf("TLD %s is in predelegation: %w", t.Name, domain.ErrPolicyViolation)
		}
		if !d.HasPendingTransfer() {
			return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotPendingTransfer)
		}
		if !c.Superuser && d.TransferData.GainingRegistrarID != c.RegistrarID {
			return fmt.Errorf("registrar %s did not request this transfer: %w",
				c.RegistrarID, domain.ErrNotAuthorized)
		}

		history := domain.NewHistoryEntry(domain.HistoryDomainTransferCancel, d, c.RegistrarID, now, c.Superuser)
		history.Records = []domain.TransactionRecord{{
			TLD: t.Name, ReportingTime: now, Field: domain.FieldTransferCancelled, Amount: 1,
		}}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		if err := s.resolveTransferEntities(txCtx, d, now, history.ID,
			domain.TransferStatusClientCancelled, true); err != nil {
			return err
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		result = &TransferResult{
			DomainName:     d.Name,
			Status:         domain.TransferStatusClientCancelled,
			ExpirationTime: d.ExpirationTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "transfer cancelled", slog.String("domain", result.DomainName))
	return result, nil
}
