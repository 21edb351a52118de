// Package poll implements the per-registrar notification queue: enqueue,
// poll, acknowledge, and the autorenew message bookkeeping performed when a
// Recurring billing event closes.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/pkg/clock"
	"github.com/juniorpayne/registry-core/pkg/ctxutil"
)

type pollRepo interface {
	Create(ctx context.Context, m *domain.PollMessage) error
	Get(ctx context.Context, id uuid.UUID) (*domain.PollMessage, error)
	GetNextVisible(ctx context.Context, registrarID string, asOf time.Time) (*domain.PollMessage, error)
	Update(ctx context.Context, m *domain.PollMessage) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service implements the poll message queue.
type Service struct {
	messages pollRepo
	clock    clock.Clock
	log      *slog.Logger
}

func NewService(log *slog.Logger, messages pollRepo, clk clock.Clock) *Service {
	return &Service{
		messages: messages,
		clock:    clk,
		log:      log.With("service", "poll"),
	}
}

// Enqueue stores a message for later delivery.
func (s *Service) Enqueue(ctx context.Context, m *domain.PollMessage) error {
	if err := s.messages.Create(ctx, m); err != nil {
		return fmt.Errorf("enqueue poll message: %w", err)
	}
	return nil
}

// Poll returns the calling registrar's earliest undelivered message with an
// event time at or before now, or nil when the queue is empty.
func (s *Service) Poll(ctx context.Context) (*domain.PollMessage, error) {
	registrarID, ok := ctxutil.RegistrarIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrNotAuthorized
	}
	m, err := s.messages.GetNextVisible(ctx, registrarID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("poll: %w", err)
	}
	return m, nil
}

// Ack acknowledges a delivered message, removing it from the queue. Only the
// addressed registrar may acknowledge, and only once the message is visible.
func (s *Service) Ack(ctx context.Context, id uuid.UUID) error {
	registrarID, ok := ctxutil.RegistrarIDFromCtx(ctx)
	if !ok {
		return domain.ErrNotAuthorized
	}

	m, err := s.messages.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get poll message: %w", err)
	}
	if m.RegistrarID != registrarID {
		return fmt.Errorf("poll message %s: %w", id, domain.ErrNotAuthorized)
	}
	if !m.VisibleAt(s.clock.Now()) {
		return fmt.Errorf("poll message %s is not yet visible: %w", id, domain.ErrNotFound)
	}

	if err := s.messages.Delete(ctx, id); err != nil {
		return fmt.Errorf("ack poll message: %w", err)
	}
	return nil
}

// Retract removes a message regardless of addressee; used when the event a
// speculative message announced will never happen.
func (s *Service) Retract(ctx context.Context, id uuid.UUID) error {
	if err := s.messages.Delete(ctx, id); err != nil {
		return fmt.Errorf("retract poll message: %w", err)
	}
	return nil
}

// HandleRecurringClosed adjusts the autorenew poll message after its parent
// Recurring event closed at closeTime. The obsolete future occurrence is
// dropped, but an undelivered occurrence strictly in the past is preserved
// with its end time clamped, so the registrar still learns about an autorenew
// that actually happened.
func (s *Service) HandleRecurringClosed(ctx context.Context, pollID uuid.UUID, closeTime time.Time) error {
	m, err := s.messages.Get(ctx, pollID)
	if err != nil {
		return fmt.Errorf("get autorenew poll message: %w", err)
	}

	if m.EventTime.Before(closeTime) {
		m.AutorenewEndTime = closeTime
		if err := s.messages.Update(ctx, m); err != nil {
			return fmt.Errorf("close autorenew poll message: %w", err)
		}
		return nil
	}

	if err := s.messages.Delete(ctx, pollID); err != nil {
		return fmt.Errorf("delete autorenew poll message: %w", err)
	}
	return nil
}
