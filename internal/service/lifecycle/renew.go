package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
)

// Renew extends a registration by whole years. The caller-supplied current
// expiration must match the stored one exactly; a mismatch is its own failure
// so stale clients are distinguishable from unknown domains.
func (s *Service) Renew(ctx context.Context, in RenewInput) (*RenewResult, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var result *RenewResult

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		d, t, err := s.loadDomainAndTLD(txCtx, in.DomainName)
		if err != nil {
			return err
		}

		if err := s.checkPreconditions(txCtx, d, t, c, now,
			domain.StatusPendingDelete,
			domain.StatusClientRenewProhibited,
			domain.StatusServerRenewProhibited,
		); err != nil {
			return err
		}

		if !in.CurrentExpiration.Equal(d.ExpirationTime) {
			return fmt.Errorf("declared expiration %s, stored %s: %w",
				in.CurrentExpiration.Format(time.RFC3339),
				d.ExpirationTime.Format(time.RFC3339),
				domain.ErrExpirationMismatch)
		}

		history := domain.NewHistoryEntry(domain.HistoryDomainRenew, d, c.RegistrarID, now, c.Superuser)

		tok, err := s.resolveRenewToken(txCtx, d, in.AllocationToken, c, now)
		if err != nil {
			return err
		}

		var recurring *domain.BillingEvent
		if d.AutorenewID != nil {
			if recurring, err = s.billing.Get(txCtx, *d.AutorenewID); err != nil {
				return fmt.Errorf("get recurring event: %w", err)
			}
		}

		quote, err := s.fees.Quote(txCtx, fees.QuoteInput{
			TLD:              t,
			Label:            firstLabel(d.Name),
			Reason:           domain.ReasonRenew,
			Years:            in.Years,
			At:               now,
			Recurring:        recurring,
			Token:            tok,
			DeclaredCurrency: in.Currency,
		})
		if err != nil {
			return err
		}

		// The history entry anchors every mutation below.
		graceEnd := now.Add(t.RenewGracePeriod)
		history.Records = []domain.TransactionRecord{{
			TLD:           t.Name,
			ReportingTime: graceEnd,
			Field:         domain.FieldNetRenewsPerYear,
			PeriodYears:   in.Years,
			Amount:        1,
		}}
		if err := s.history.Create(txCtx, history); err != nil {
			return fmt.Errorf("create history entry: %w", err)
		}

		d.ExpirationTime = d.ExpirationTime.AddDate(in.Years, 0, 0)

		// Supersede the old autorenew commitment and anchor a new one at the
		// extended expiration.
		behavior, price := nextRenewalPricing(recurring, tok)
		if err := s.closeRecurring(txCtx, d, now); err != nil {
			return err
		}
		if err := s.openAutorenew(txCtx, d, c.RegistrarID, behavior, price, history.ID); err != nil {
			return err
		}

		charge := domain.NewOneTime(domain.ReasonRenew, d, c.RegistrarID,
			quote.Total, in.Years, now, graceEnd, history.ID)
		if err := s.billing.Create(txCtx, charge); err != nil {
			return fmt.Errorf("create renew billing event: %w", err)
		}
		grace := domain.NewGracePeriod(domain.GraceRenew, d.RepoID, c.RegistrarID, graceEnd, &charge.ID)
		if err := s.grace.Create(txCtx, grace); err != nil {
			return fmt.Errorf("open renew grace period: %w", err)
		}

		if tok != nil {
			if err := s.tokens.Redeem(txCtx, tok, history.ID); err != nil {
				return err
			}
			if tok.Type == domain.TokenPackage {
				token := tok.Token
				d.PackageTokenID = &token
			}
		}

		d.UpdatedAt = now
		if err := s.domains.Update(txCtx, d); err != nil {
			return fmt.Errorf("update domain: %w", err)
		}

		result = &RenewResult{
			DomainName:     d.Name,
			ExpirationTime: d.ExpirationTime,
			Cost:           quote.Total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "domain renewed",
		slog.String("domain", result.DomainName),
		slog.Int("years", in.Years),
		slog.Time("new_expiration", result.ExpirationTime),
		slog.String("cost", result.Cost.String()),
	)
	return result, nil
}

// resolveRenewToken handles the token argument of a renew: the sentinel
// detaches an attached PACKAGE token; anything else is validated for
// redemption. A domain carrying a PACKAGE token cannot be renewed without
// naming a token: the registrar either keeps using one or opts out with the
// sentinel.
func (s *Service) resolveRenewToken(ctx context.Context, d *domain.Domain,
	tok string, c caller, now time.Time) (*domain.AllocationToken, error) {

	switch tok {
	case "":
		if d.PackageTokenID != nil {
			return nil, fmt.Errorf("domain %s has package token %s attached: %w",
				d.Name, *d.PackageTokenID, domain.ErrTokenInvalid)
		}
		return nil, nil
	case domain.RemovePackageToken:
		if d.PackageTokenID == nil {
			return nil, fmt.Errorf("domain %s has no package token to remove: %w",
				d.Name, domain.ErrTokenInvalid)
		}
		d.PackageTokenID = nil
		return nil, nil
	default:
		return s.tokens.Validate(ctx, tok, d.Name, d.TLD, c.RegistrarID, now)
	}
}

// nextRenewalPricing decides the renewal price behavior of the replacement
// Recurring event: a redeemed token's policy wins, otherwise the behavior
// locked into the superseded recurrence carries forward.
func nextRenewalPricing(old *domain.BillingEvent, tok *domain.AllocationToken) (domain.RenewalPriceBehavior, *domain.Money) {
	if tok != nil && tok.RenewalPriceBehavior.IsValid() && tok.RenewalPriceBehavior != domain.RenewalPriceDefault {
		return tok.RenewalPriceBehavior, nil
	}
	if old != nil && old.RenewalPriceBehavior.IsValid() {
		return old.RenewalPriceBehavior, old.RenewalPrice
	}
	return domain.RenewalPriceDefault, nil
}
