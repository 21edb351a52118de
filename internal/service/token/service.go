// Package token implements allocation token validation, redemption, and
// schedule management.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/juniorpayne/registry-core/internal/domain"
)

type tokenRepo interface {
	Get(ctx context.Context, tok string) (*domain.AllocationToken, error)
	GetForUpdate(ctx context.Context, tok string) (*domain.AllocationToken, error)
	Create(ctx context.Context, a *domain.AllocationToken) error
	Update(ctx context.Context, a *domain.AllocationToken) error
}

// Service implements the allocation token ledger.
type Service struct {
	tokens tokenRepo
	log    *slog.Logger
}

func NewService(log *slog.Logger, tokens tokenRepo) *Service {
	return &Service{
		tokens: tokens,
		log:    log.With("service", "token"),
	}
}

// Validate checks a token against the redemption rules, in order: the token
// exists; a SINGLE_USE token is unredeemed; the status as of now is VALID;
// a domain binding matches the requested name; the TLD and registrar are on
// the allow lists. The row is locked so a concurrent redemption serializes.
func (s *Service) Validate(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error) {
	return s.validate(ctx, tok, domainName, tld, registrarID, now, true)
}

// Check runs the same rules without locking the row; used by the read-only
// check flow to report token applicability.
func (s *Service) Check(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time) (*domain.AllocationToken, error) {
	return s.validate(ctx, tok, domainName, tld, registrarID, now, false)
}

func (s *Service) validate(ctx context.Context, tok, domainName, tld, registrarID string, now time.Time, lock bool) (*domain.AllocationToken, error) {
	var a *domain.AllocationToken
	var err error
	if lock {
		a, err = s.tokens.GetForUpdate(ctx, tok)
	} else {
		a, err = s.tokens.Get(ctx, tok)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("token %q not found: %w", tok, domain.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	if a.Type == domain.TokenSingleUse && a.Redeemed() {
		return nil, fmt.Errorf("token %q already redeemed: %w", tok, domain.ErrTokenInvalid)
	}

	switch status := a.StatusAt(now); status {
	case domain.TokenValid:
	case domain.TokenNotStarted:
		return nil, fmt.Errorf("token %q has no active promotion: %w", tok, domain.ErrTokenInvalid)
	default:
		return nil, fmt.Errorf("token %q promotion has ended: %w", tok, domain.ErrTokenInvalid)
	}

	if a.BoundDomainName != "" && a.BoundDomainName != domainName {
		return nil, fmt.Errorf("token %q invalid for domain %s: %w", tok, domainName, domain.ErrTokenInvalid)
	}
	if !a.AllowsTLD(tld) {
		return nil, fmt.Errorf("token %q invalid for TLD %s: %w", tok, tld, domain.ErrTokenInvalid)
	}
	if !a.AllowsRegistrar(registrarID) {
		return nil, fmt.Errorf("token %q invalid for registrar %s: %w", tok, registrarID, domain.ErrTokenInvalid)
	}

	return a, nil
}

// Redeem consumes a validated token. SINGLE_USE tokens record the history
// entry that consumed them; UNLIMITED_USE and PACKAGE tokens are never marked
// but still gate the discount per invocation.
func (s *Service) Redeem(ctx context.Context, a *domain.AllocationToken, historyID uuid.UUID) error {
	if a.Type != domain.TokenSingleUse {
		return nil
	}
	if a.Redeemed() {
		return fmt.Errorf("token %q already redeemed: %w", a.Token, domain.ErrTokenInvalid)
	}
	a.RedemptionHistoryID = &historyID
	if err := s.tokens.Update(ctx, a); err != nil {
		return fmt.Errorf("mark token redeemed: %w", err)
	}
	s.log.InfoContext(ctx, "token redeemed",
		slog.String("token", a.Token),
		slog.String("history_entry_id", historyID.String()))
	return nil
}

// CreateToken installs a new token after validating its schedule.
func (s *Service) CreateToken(ctx context.Context, a *domain.AllocationToken) error {
	if !a.Type.IsValid() {
		return domain.NewValidationError("type", "unknown token type")
	}
	if a.StatusSchedule.Len() > 0 {
		if err := domain.ValidateTokenStatusSchedule(a.StatusSchedule); err != nil {
			return err
		}
	}
	if err := s.tokens.Create(ctx, a); err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// InstallSchedule replaces a token's status schedule. The replacement must be
// monotonic and must agree with the currently installed schedule about the
// status as of now; rewriting the present is a policy violation.
func (s *Service) InstallSchedule(ctx context.Context, tok string, schedule domain.TimedTransitions[domain.TokenStatus], now time.Time) error {
	if err := domain.ValidateTokenStatusSchedule(schedule); err != nil {
		return err
	}

	a, err := s.tokens.GetForUpdate(ctx, tok)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	if current := a.StatusAt(now); schedule.ValueAt(now) != current {
		return fmt.Errorf("schedule changes status as of now (%s): %w",
			current, domain.ErrPolicyViolation)
	}

	a.StatusSchedule = schedule
	if err := s.tokens.Update(ctx, a); err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	return nil
}
