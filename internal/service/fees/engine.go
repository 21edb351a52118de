// Package fees computes the monetary cost of registry operations from TLD
// cost schedules, premium list pricing, EAP surcharges, and token discounts.
package fees

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juniorpayne/registry-core/internal/domain"
)

type premiumSource interface {
	GetPremium(ctx context.Context, tld, label, currency string) (*domain.PremiumEntry, error)
}

type reservedSource interface {
	ListReserved(ctx context.Context, tld, label string) ([]domain.ReservedEntry, error)
}

// Engine resolves operation costs. It is read-only; flows decide what to do
// with the quote.
type Engine struct {
	premiums premiumSource
	reserved reservedSource
	log      *slog.Logger
}

func NewEngine(log *slog.Logger, premiums premiumSource, reserved reservedSource) *Engine {
	return &Engine{
		premiums: premiums,
		reserved: reserved,
		log:      log.With("service", "fees"),
	}
}

// QuoteInput describes one priced operation.
type QuoteInput struct {
	TLD    *domain.TLD
	Label  string // first label of the domain name
	Reason domain.BillingReason
	Years  int
	At     time.Time

	// Recurring is the domain's governing autorenew event; its renewal price
	// behavior overrides live premium pricing for RENEW quotes.
	Recurring *domain.BillingEvent

	// Token, when present and valid, contributes its discount.
	Token *domain.AllocationToken

	// DeclaredCurrency is the client-declared currency, empty to skip the check.
	DeclaredCurrency string
}

// Quote is the priced result.
type Quote struct {
	Total    domain.Money
	Premium  bool // premium pricing applied
	EAPFee   domain.Money
	Currency string
}

// Quote prices the operation. Currency mismatches and unknown reasons fail
// with ErrValidation.
func (e *Engine) Quote(ctx context.Context, in QuoteInput) (Quote, error) {
	if in.DeclaredCurrency != "" && in.DeclaredCurrency != in.TLD.Currency {
		return Quote{}, domain.NewValidationError("currency",
			fmt.Sprintf("declared currency %s does not match TLD currency %s",
				in.DeclaredCurrency, in.TLD.Currency))
	}

	switch in.Reason {
	case domain.ReasonCreate, domain.ReasonRenew, domain.ReasonTransfer:
		return e.quotePeriod(ctx, in)
	case domain.ReasonRestore:
		// restore charges the fixed restore cost plus one standard renew year
		renewIn := in
		renewIn.Reason = domain.ReasonRenew
		renewIn.Years = 1
		renew, err := e.quotePeriod(ctx, renewIn)
		if err != nil {
			return Quote{}, err
		}
		return Quote{
			Total:    in.TLD.RestoreCost.Add(renew.Total),
			Premium:  renew.Premium,
			Currency: in.TLD.Currency,
		}, nil
	case domain.ReasonServerStatus:
		return Quote{Total: in.TLD.ServerStatusCost, Currency: in.TLD.Currency}, nil
	}
	return Quote{}, domain.NewValidationError("reason", "unknown billing reason")
}

// quotePeriod prices a whole-year operation: per-year price resolved once at
// the query time, premium and discount rules applied, years summed.
func (e *Engine) quotePeriod(ctx context.Context, in QuoteInput) (Quote, error) {
	if err := domain.ValidateRegistrationPeriod(in.Years); err != nil {
		return Quote{}, err
	}

	perYear, isPremium, err := e.perYearPrice(ctx, in)
	if err != nil {
		return Quote{}, err
	}

	total := perYear.MulInt(in.Years)

	if in.Token != nil && !in.Token.DiscountFraction.IsZero() {
		if !isPremium || in.Token.DiscountPremiums {
			discountYears := in.Token.DiscountYears
			if discountYears <= 0 || discountYears > in.Years {
				discountYears = in.Years
			}
			discount := perYear.MulInt(discountYears).MulFraction(in.Token.DiscountFraction)
			total = total.Sub(discount)
		}
	}

	q := Quote{Total: total, Premium: isPremium, Currency: in.TLD.Currency}

	// EAP surcharge applies once per create, not per year.
	if in.Reason == domain.ReasonCreate {
		q.EAPFee = in.TLD.EAPFeeAt(in.At)
		q.Total = q.Total.Add(q.EAPFee)
	}
	return q, nil
}

// perYearPrice resolves the per-year cost honoring the renewal price behavior
// locked into the governing Recurring event: the behavior is a property of the
// recurrence, never recomputed from the current premium catalog.
func (e *Engine) perYearPrice(ctx context.Context, in QuoteInput) (domain.Money, bool, error) {
	if in.Reason == domain.ReasonRenew && in.Recurring != nil {
		switch in.Recurring.RenewalPriceBehavior {
		case domain.RenewalPriceNonPremium:
			return in.TLD.RenewCostAt(in.At), false, nil
		case domain.RenewalPriceSpecified:
			if in.Recurring.RenewalPrice == nil {
				return domain.Money{}, false, domain.NewValidationError("renewal_price",
					"recurring event declares SPECIFIED behavior without a price")
			}
			return *in.Recurring.RenewalPrice, false, nil
		}
	}

	var base domain.Money
	switch in.Reason {
	case domain.ReasonCreate:
		base = in.TLD.CreateCostAt(in.At)
	default:
		// renew and transfer both charge the renew schedule
		base = in.TLD.RenewCostAt(in.At)
	}

	entry, err := e.premiums.GetPremium(ctx, in.TLD.Name, in.Label, in.TLD.Currency)
	if err != nil {
		return domain.Money{}, false, fmt.Errorf("premium lookup: %w", err)
	}
	if entry == nil {
		return base, false, nil
	}

	allowed, err := e.premiumAllowed(ctx, in.TLD.Name, in.Label)
	if err != nil {
		return domain.Money{}, false, err
	}
	if !allowed {
		return base, false, nil
	}

	if in.Reason == domain.ReasonCreate {
		return entry.CreatePrice, true, nil
	}
	return entry.RenewPrice, true, nil
}

// premiumAllowed checks whether the reserved list suppresses premium pricing
// for this label.
func (e *Engine) premiumAllowed(ctx context.Context, tld, label string) (bool, error) {
	entries, err := e.reserved.ListReserved(ctx, tld, label)
	if err != nil {
		return false, fmt.Errorf("reserved lookup: %w", err)
	}
	winner := domain.MostRestrictive(entries)
	if winner == nil {
		return true, nil
	}
	return winner.AllowPremium, nil
}
