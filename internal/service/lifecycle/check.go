package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/internal/service/fees"
)

// Check resolves availability, reservation tier, token applicability, and
// optionally a create-fee quote for each requested name. It mutates nothing.
func (s *Service) Check(ctx context.Context, in CheckInput) ([]CheckResult, error) {
	c, err := callerFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	results := make([]CheckResult, 0, len(in.Names))
	for _, name := range in.Names {
		res, err := s.checkOne(ctx, name, in, c, now)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) checkOne(ctx context.Context, name string, in CheckInput, c caller, now time.Time) (CheckResult, error) {
	res := CheckResult{Name: name}

	tldName := domain.ParentTLD(name)
	t, err := s.tlds.Get(ctx, tldName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			res.Reason = "Unknown TLD"
			return res, nil
		}
		return res, err
	}

	d, err := s.domains.GetByName(ctx, name)
	switch {
	case err == nil:
		if d.ExistsAt(now) {
			res.Reason = "In use"
			return res, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		return res, err
	}

	// Reservation: the most restrictive tier wins; ALLOWED_IN_SUNRISE only
	// blocks outside the sunrise phase.
	entries, err := s.reserved.ListReserved(ctx, tldName, firstLabel(name))
	if err != nil {
		return res, err
	}
	if winner := domain.MostRestrictive(entries); winner != nil {
		blocked := winner.Type != domain.ReservationAllowedInSunrise ||
			t.PhaseAt(now) != domain.PhaseSunrise
		if blocked {
			res.Reason = winner.Type.Message()
			return res, nil
		}
	}

	res.Available = true

	if in.AllocationToken != "" && in.AllocationToken != domain.RemovePackageToken {
		if _, err := s.tokens.Check(ctx, in.AllocationToken, name, tldName, c.RegistrarID, now); err == nil {
			res.TokenApplies = true
		} else if !errors.Is(err, domain.ErrTokenInvalid) {
			return res, err
		}
	}

	if in.WithFees {
		quote, err := s.fees.Quote(ctx, fees.QuoteInput{
			TLD:              t,
			Label:            firstLabel(name),
			Reason:           domain.ReasonCreate,
			Years:            1,
			At:               now,
			DeclaredCurrency: in.Currency,
		})
		if err != nil {
			return res, err
		}
		res.Fee = &quote.Total
		res.Premium = quote.Premium
	}

	return res, nil
}
