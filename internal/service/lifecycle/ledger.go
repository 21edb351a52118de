package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/domain"
)

// closeGracePeriod removes a grace period. If it still references an unbilled
// event, the rollback emits a Cancellation dated at the closure instant so the
// registrar is never charged for the reversed mutation.
func (s *Service) closeGracePeriod(ctx context.Context, g *domain.GracePeriod,
	now time.Time, historyID uuid.UUID) error {

	if g.BillingEventID != nil {
		target, err := s.billing.Get(ctx, *g.BillingEventID)
		if err != nil {
			return fmt.Errorf("get grace period billing event: %w", err)
		}
		if target.Type == domain.BillingOneTime && target.BillingTime.After(now) {
			cancellation := domain.NewCancellation(target, now, target.BillingTime, historyID)
			if err := s.billing.Create(ctx, cancellation); err != nil {
				return fmt.Errorf("create cancellation: %w", err)
			}
		}
	}

	if err := s.grace.Delete(ctx, g.ID); err != nil {
		return fmt.Errorf("delete grace period: %w", err)
	}
	return nil
}

// closeRecurring closes the domain's current autorenew Recurring event at
// endTime and reconciles its poll message. The domain's references are
// cleared; callers open a replacement when the domain lives on.
func (s *Service) closeRecurring(ctx context.Context, d *domain.Domain, endTime time.Time) error {
	if d.AutorenewID == nil {
		return nil
	}

	recurring, err := s.billing.Get(ctx, *d.AutorenewID)
	if err != nil {
		return fmt.Errorf("get recurring event: %w", err)
	}
	if err := recurring.CloseRecurrence(endTime); err != nil {
		return err
	}
	if err := s.billing.UpdateRecurrenceEnd(ctx, recurring.ID, recurring.RecurrenceEndTime); err != nil {
		return fmt.Errorf("close recurring event: %w", err)
	}

	if d.AutorenewPollID != nil {
		if err := s.poll.HandleRecurringClosed(ctx, *d.AutorenewPollID, endTime); err != nil {
			return err
		}
	}

	d.AutorenewID = nil
	d.AutorenewPollID = nil
	return nil
}

// openAutorenew creates a fresh Recurring event anchored at the domain's
// expiration for the given registrar, plus its autorenew poll message, and
// records both on the domain.
func (s *Service) openAutorenew(ctx context.Context, d *domain.Domain, registrarID string,
	behavior domain.RenewalPriceBehavior, price *domain.Money, historyID uuid.UUID) error {

	recurring := domain.NewRecurring(d, registrarID, d.ExpirationTime, behavior, price, historyID)
	if err := s.billing.Create(ctx, recurring); err != nil {
		return fmt.Errorf("create recurring event: %w", err)
	}

	pollMsg := domain.NewAutorenewPoll(registrarID, d, d.ExpirationTime, recurring.ID, historyID)
	if err := s.poll.Enqueue(ctx, pollMsg); err != nil {
		return err
	}

	d.AutorenewID = &recurring.ID
	d.AutorenewPollID = &pollMsg.ID
	return nil
}

// findGrace returns the first active grace period of the given type, nil when
// none is open.
func findGrace(periods []*domain.GracePeriod, typ domain.GracePeriodType) *domain.GracePeriod {
	for _, g := range periods {
		if g.Type == typ {
			return g
		}
	}
	return nil
}
