package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// resolveTransferEntities finalizes a pending transfer's bookkeeping: the
// speculative server-approve entities created at request time are discarded,
// the transfer status is recorded, PENDING_TRANSFER is cleared, and both
// registrars are notified when notify is set. Callers that approve the
// transfer create the real billing entities afterwards.
func (s *Service) resolveTransferEntities(ctx context.Context, d *domain.Domain,
	now time.Time, historyID uuid.UUID, status domain.TransferStatus, notify bool) error {

	td := d.TransferData
	if td == nil || td.Status != domain.TransferStatusPending {
		return fmt.Errorf("domain %s: %w", d.Name, domain.ErrNotPendingTransfer)
	}

	if td.ServerApproveBillingEventID != nil {
		if err := s.billing.Delete(ctx, *td.ServerApproveBillingEventID); err != nil {
			return fmt.Errorf("discard server-approve billing event: %w", err)
		}
		td.ServerApproveBillingEventID = nil
	}
	if td.ServerApproveAutorenewID != nil {
		if err := s.billing.Delete(ctx, *td.ServerApproveAutorenewID); err != nil {
			return fmt.Errorf("discard server-approve recurring event: %w", err)
		}
		td.ServerApproveAutorenewID = nil
	}
	for _, pollID := range td.ServerApprovePollMessageIDs {
		if err := s.poll.Retract(ctx, pollID); err != nil {
			return err
		}
	}
	td.ServerApprovePollMessageIDs = nil

	td.Status = status
	d.Statuses.Remove(domain.StatusPendingTransfer)

	if notify {
		payload := domain.TransferResponse{
			DomainName:           d.Name,
			TransferStatus:       status,
			GainingRegistrarID:   td.GainingRegistrarID,
			LosingRegistrarID:    td.LosingRegistrarID,
			TransferRequestAt:    td.TransferRequestTime,
			ExpectedResolutionAt: td.PendingTransferExpirationTime,
			ResolvedAt:           now,
		}
		for _, registrarID := range []string{td.GainingRegistrarID, td.LosingRegistrarID} {
			msg := domain.NewOneTimePoll(registrarID, d, now,
				transferMessage(status), historyID)
			msg.Transfer = &payload
			if err := s.poll.Enqueue(ctx, msg); err != nil {
				return err
			}
		}
	}
	return nil
}

func transferMessage(status domain.TransferStatus) string {
	switch status {
	case domain.TransferStatusClientApproved:
		return "Transfer approved."
	case domain.TransferStatusClientRejected:
		return "Transfer rejected."
	case domain.TransferStatusClientCancelled:
		return "Transfer cancelled."
	case domain.TransferStatusServerCancelled:
		return "Transfer cancelled by the registry."
	}
	return "Transfer resolved."
}
