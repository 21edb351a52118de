package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// TransferReject resolves a pending transfer against the gaining registrar.
// Only the losing (current sponsoring) registrar may reject; everything
// created speculatively for the automatic server approval is discarded.
func (s *Service) TransferReject(ctx context.Context, in TransferResolveInput) (*TransferResult, error) {
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

		history := domain.NewHistoryEntry(domain.HistoryDomainTransferReject, d, c.RegistrarID, now, c.Superuser)
		history.Records = []domain.TransactionRecord{{
			TLD: t.Name, ReportingTime: now, Field: domain.FieldTransferRejected, Amount: 1,
		}}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		if err := s.resolveTransferEntities(txCtx, d, now, history.ID,
			domain.TransferStatusClientRejected, true); err != nil {
			return err
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		result = &TransferResult{
			DomainName:     d.Name,
			Status:         domain.TransferStatusClientRejected,
			ExpirationTime: d.ExpirationTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "transfer rejected", slog.String("domain", result.DomainName))
	return result, nil
}
